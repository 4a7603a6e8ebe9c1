package urltable

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScheme(t *testing.T) {
	tests := []struct {
		scheme  string
		wantErr bool
	}{
		{scheme: "app"},
		{scheme: "data2"},
		{scheme: "my-app+v1.x"},
		{scheme: "", wantErr: true},
		{scheme: "1app", wantErr: true},
		{scheme: "app://", wantErr: true},
		{scheme: "a b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			err := ValidateScheme(tt.scheme)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTables_Writes(t *testing.T) {
	tables := New()

	require.NoError(t, tables.AddStandardScheme("App", SchemeWithHost))
	require.NoError(t, tables.AddSecureScheme("app"))
	require.NoError(t, tables.AddCSPBypassingScheme("app"))
	require.NoError(t, tables.AddCORSEnabledScheme("app"))
	require.NoError(t, tables.AddFetchScheme("app"))
	require.NoError(t, tables.RegisterWebSafeScheme("app"))
	require.NoError(t, tables.SetCustomServiceWorkerSchemes([]string{"app", "other"}))

	assert.True(t, tables.IsStandard("app"))
	assert.True(t, tables.IsSecure("APP"))
	assert.True(t, tables.IsCSPBypassing("app"))
	assert.True(t, tables.IsCORSEnabled("app"))
	assert.True(t, tables.IsFetchEnabled("app"))
	assert.True(t, tables.IsWebSafe("app"))
	assert.Equal(t, []string{"app", "other"}, tables.ServiceWorkerSchemes())

	require.NoError(t, tables.SetCustomServiceWorkerSchemes([]string{"x"}))
	assert.Equal(t, []string{"x"}, tables.ServiceWorkerSchemes())
}

func TestTables_BuiltIns(t *testing.T) {
	tables := New()
	assert.True(t, tables.IsStandard("https"))
	assert.True(t, tables.IsSecure("https"))
	assert.False(t, tables.IsSecure("http"))
	assert.False(t, tables.IsStandard("app"))
}

func TestTables_Freeze(t *testing.T) {
	tables := New()
	tables.Freeze()
	assert.True(t, tables.IsFrozen())

	err := tables.AddStandardScheme("late", SchemeWithHost)
	assert.ErrorIs(t, err, ErrFrozen)
	assert.False(t, tables.IsStandard("late"))

	assert.ErrorIs(t, tables.AddSecureScheme("late"), ErrFrozen)
	assert.ErrorIs(t, tables.SetCustomServiceWorkerSchemes([]string{"late"}), ErrFrozen)
	assert.False(t, tables.IsSecure("late"))

	tables.Reset()
	assert.False(t, tables.IsFrozen())
	assert.NoError(t, tables.AddSecureScheme("late"))
}

func TestTables_Canonicalize(t *testing.T) {
	tables := New()
	require.NoError(t, tables.AddStandardScheme("app", SchemeWithHost))

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "standard scheme lowercases host", raw: "APP://Bundle/index.html", want: "app://bundle/index.html"},
		{name: "standard scheme adds root path", raw: "app://bundle", want: "app://bundle/"},
		{name: "opaque form on standard scheme", raw: "app:bundle/main.js", want: "app://bundle/main.js"},
		{name: "unicode host", raw: "app://bücher/x", want: "app://xn--bcher-kva/x"},
		{name: "non-standard scheme untouched", raw: "foo:bar", want: "foo:bar"},
		{name: "missing host", raw: "app:///x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			got, err := tables.Canonicalize(u)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
