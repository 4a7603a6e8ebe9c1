package jobfactory

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTransport string

func (n namedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Status: string(n)}, nil
}

func newFactory() *JobFactory {
	return New(map[string]http.RoundTripper{"https": namedTransport("builtin")})
}

func TestJobFactory_SetProtocolHandler(t *testing.T) {
	f := newFactory()

	assert.False(t, f.HasProtocolHandler("app"))
	assert.False(t, f.IsHandledProtocol("app"))

	f.SetProtocolHandler("app", namedTransport("custom"))
	assert.True(t, f.HasProtocolHandler("APP"))
	assert.True(t, f.IsHandledProtocol("app"))

	f.SetProtocolHandler("app", nil)
	assert.False(t, f.HasProtocolHandler("app"))
	assert.False(t, f.IsHandledProtocol("app"))
}

func TestJobFactory_BuiltinsAreNotCustomHandlers(t *testing.T) {
	f := newFactory()

	assert.False(t, f.HasProtocolHandler("https"))
	assert.True(t, f.IsHandledProtocol("https"))

	f.SetProtocolHandler("https", nil)
	assert.True(t, f.IsHandledProtocol("https"), "removing a custom handler leaves the built-in")
}

func TestJobFactory_Intercept(t *testing.T) {
	f := newFactory()

	assert.True(t, f.InterceptProtocol("https", namedTransport("override")))
	assert.False(t, f.InterceptProtocol("https", namedTransport("second")))
	assert.True(t, f.IsIntercepted("https"))

	rt, err := f.Resolve("https")
	require.NoError(t, err)
	assert.Equal(t, namedTransport("override"), rt)

	assert.True(t, f.UninterceptProtocol("https"))
	assert.False(t, f.UninterceptProtocol("https"))

	rt, err = f.Resolve("https")
	require.NoError(t, err)
	assert.Equal(t, namedTransport("builtin"), rt)
}

func TestJobFactory_IsCustomized(t *testing.T) {
	f := newFactory()
	assert.False(t, f.IsCustomized("https"), "built-in only")
	assert.False(t, f.IsCustomized("app"), "unknown")

	f.SetProtocolHandler("app", namedTransport("custom"))
	assert.True(t, f.IsCustomized("APP"))

	f.InterceptProtocol("https", namedTransport("override"))
	assert.True(t, f.IsCustomized("https"))

	f.UninterceptProtocol("https")
	assert.False(t, f.IsCustomized("https"))
}

func TestJobFactory_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *JobFactory)
		scheme    string
		expected  http.RoundTripper
		wantError bool
	}{
		{
			name:     "built-in",
			setup:    func(f *JobFactory) {},
			scheme:   "https",
			expected: namedTransport("builtin"),
		},
		{
			name:     "custom over built-in",
			setup:    func(f *JobFactory) { f.SetProtocolHandler("https", namedTransport("custom")) },
			scheme:   "https",
			expected: namedTransport("custom"),
		},
		{
			name: "interceptor over custom",
			setup: func(f *JobFactory) {
				f.SetProtocolHandler("app", namedTransport("custom"))
				f.InterceptProtocol("app", namedTransport("override"))
			},
			scheme:   "app",
			expected: namedTransport("override"),
		},
		{
			name:      "unknown",
			setup:     func(f *JobFactory) {},
			scheme:    "nope",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFactory()
			tt.setup(f)
			rt, err := f.Resolve(tt.scheme)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrUnknownScheme)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rt)
		})
	}
}

func TestJobFactory_Snapshot(t *testing.T) {
	f := newFactory()
	f.SetProtocolHandler("b", namedTransport("b"))
	f.SetProtocolHandler("a", namedTransport("a"))
	f.InterceptProtocol("https", namedTransport("o"))

	assert.Equal(t, Snapshot{
		Builtin:     []string{"https"},
		Registered:  []string{"a", "b"},
		Intercepted: []string{"https"},
	}, f.Snapshot())
}

func TestDefaultBuiltins_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	f := New(DefaultBuiltins(http.DefaultTransport))
	rt, err := f.Resolve("file")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "file://"+filepath.ToSlash(path), nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", body.String())
}
