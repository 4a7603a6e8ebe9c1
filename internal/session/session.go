// Package session models browsing contexts. Each Context has its own job
// factory living on the shared I/O runner and, once requested, its own
// protocol controller.
package session

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/imposter-project/imposter-protocol/internal/jobfactory"
	"github.com/imposter-project/imposter-protocol/internal/protocol"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// DefaultPartition names the default session
const DefaultPartition = ""

// Options configures a Manager
type Options struct {
	IO      *taskrunner.Runner
	Control *taskrunner.Runner
	Isolate protocol.Isolate
	Tables  *urltable.Tables

	// UpstreamTimeout bounds upstream fetches; zero means no timeout
	UpstreamTimeout time.Duration
}

// Manager owns the sessions of the process, keyed by partition
type Manager struct {
	opts     Options
	mu       sync.Mutex
	sessions map[string]*Context
}

func NewManager(opts Options) *Manager {
	if opts.Tables == nil {
		opts.Tables = urltable.Default()
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Context),
	}
}

// Default returns the default session
func (m *Manager) Default() *Context {
	return m.FromPartition(DefaultPartition)
}

// FromPartition returns the session of partition, creating it on first use
func (m *Manager) FromPartition(partition string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx, ok := m.sessions[partition]; ok {
		return ctx
	}
	ctx := m.newContext(partition)
	m.sessions[partition] = ctx
	logger.Debugf("created session for partition %q", partition)
	return ctx
}

// Protocol returns the protocol controller of partition's session
func (m *Manager) Protocol(partition string) *protocol.Controller {
	return m.FromPartition(partition).Protocol()
}

// Partitions lists the partitions with a session
func (m *Manager) Partitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	partitions := make([]string, 0, len(m.sessions))
	for partition := range m.sessions {
		partitions = append(partitions, partition)
	}
	sort.Strings(partitions)
	return partitions
}

// Lookup returns an existing session without creating one
func (m *Manager) Lookup(partition string) (*Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.sessions[partition]
	return ctx, ok
}

// Destroy destroys every session
func (m *Manager) Destroy() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Context)
	m.mu.Unlock()

	for _, ctx := range sessions {
		ctx.Destroy()
	}
}

func (m *Manager) newContext(partition string) *Context {
	upstream := newUpstream(m.opts.UpstreamTimeout)
	getter := &requestContextGetter{
		io: m.opts.IO,
		delegate: &strategy.Delegate{
			Upstream:        upstream,
			SessionUpstream: m.upstreamOf,
		},
	}
	// the factory belongs to the I/O runner from the start
	m.opts.IO.RunAndWait(func() {
		getter.factory = jobfactory.New(jobfactory.DefaultBuiltins(upstream))
	})
	return &Context{
		partition: partition,
		getter:    getter,
		upstream:  upstream,
		manager:   m,
		released:  make(chan struct{}),
	}
}

func (m *Manager) upstreamOf(partition string) (http.RoundTripper, bool) {
	ctx, ok := m.Lookup(partition)
	if !ok {
		return nil, false
	}
	return ctx.upstream, true
}

func newUpstream(timeout time.Duration) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}
	return transport
}
