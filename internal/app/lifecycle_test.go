package app

import (
	"testing"

	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/stretchr/testify/assert"
)

func TestLifecycle_SetReady(t *testing.T) {
	tables := urltable.New()
	l := NewLifecycle(tables)

	var calls []string
	l.WhenReady(func() { calls = append(calls, "first") })
	l.WhenReady(func() { calls = append(calls, "second") })

	assert.False(t, l.IsReady())
	assert.Empty(t, calls)

	l.SetReady()
	assert.True(t, l.IsReady())
	assert.True(t, tables.IsFrozen())
	assert.Equal(t, []string{"first", "second"}, calls)

	l.SetReady()
	assert.Len(t, calls, 2, "listeners must only run once")

	l.WhenReady(func() { calls = append(calls, "late") })
	assert.Equal(t, []string{"first", "second", "late"}, calls)
}
