package app

import (
	"sync"

	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Lifecycle tracks the application's early-init window. Once ready, the
// process-wide URL tables are frozen.
type Lifecycle struct {
	mu        sync.Mutex
	ready     bool
	tables    *urltable.Tables
	listeners []func()
}

var (
	current     *Lifecycle
	currentOnce sync.Once
)

// Current returns the process lifecycle, bound to the default URL tables
func Current() *Lifecycle {
	currentOnce.Do(func() {
		current = NewLifecycle(urltable.Default())
	})
	return current
}

// NewLifecycle creates a lifecycle that freezes tables when ready
func NewLifecycle(tables *urltable.Tables) *Lifecycle {
	return &Lifecycle{tables: tables}
}

// IsReady reports whether SetReady has been called
func (l *Lifecycle) IsReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// SetReady ends the early-init window, freezes the URL tables and runs the
// ready listeners in registration order. Later calls are no-ops.
func (l *Lifecycle) SetReady() {
	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		return
	}
	l.ready = true
	listeners := l.listeners
	l.listeners = nil
	l.mu.Unlock()

	if l.tables != nil {
		l.tables.Freeze()
	}
	logger.Infoln("application is ready")
	for _, fn := range listeners {
		fn()
	}
}

// WhenReady runs fn once the application is ready; immediately if it already is
func (l *Lifecycle) WhenReady(fn func()) {
	l.mu.Lock()
	if !l.ready {
		l.listeners = append(l.listeners, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn()
}
