// Package jobfactory maps URL schemes to the round trippers that produce
// responses for them. A JobFactory belongs to one session and must only be
// used from that session's I/O runner.
package jobfactory

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/imposter-project/imposter-protocol/internal/urltable"
)

// ErrUnknownScheme is returned when no handler services a scheme
var ErrUnknownScheme = errors.New("unknown url scheme")

// JobFactory resolves a scheme to its handler. Interceptors take precedence
// over custom handlers, which take precedence over the built-in handlers.
type JobFactory struct {
	builtins     map[string]http.RoundTripper
	handlers     map[string]http.RoundTripper
	interceptors map[string]http.RoundTripper
}

// New creates a factory with the given built-in handlers. The built-in map is
// copied and never modified.
func New(builtins map[string]http.RoundTripper) *JobFactory {
	f := &JobFactory{
		builtins:     make(map[string]http.RoundTripper, len(builtins)),
		handlers:     make(map[string]http.RoundTripper),
		interceptors: make(map[string]http.RoundTripper),
	}
	for scheme, rt := range builtins {
		f.builtins[urltable.Canonical(scheme)] = rt
	}
	return f
}

// DefaultBuiltins returns the built-in handlers: http and https over
// transport, and file from the local filesystem.
func DefaultBuiltins(transport http.RoundTripper) map[string]http.RoundTripper {
	return map[string]http.RoundTripper{
		"http":  transport,
		"https": transport,
		"file":  http.NewFileTransport(http.Dir("/")),
	}
}

// SetProtocolHandler installs handler as the custom handler for scheme,
// replacing any existing one. A nil handler removes it.
func (f *JobFactory) SetProtocolHandler(scheme string, handler http.RoundTripper) bool {
	scheme = urltable.Canonical(scheme)
	if handler == nil {
		delete(f.handlers, scheme)
		return true
	}
	f.handlers[scheme] = handler
	return true
}

// HasProtocolHandler reports whether a custom handler is installed
func (f *JobFactory) HasProtocolHandler(scheme string) bool {
	_, ok := f.handlers[urltable.Canonical(scheme)]
	return ok
}

// IsHandledProtocol reports whether a custom or built-in handler services scheme
func (f *JobFactory) IsHandledProtocol(scheme string) bool {
	scheme = urltable.Canonical(scheme)
	if _, ok := f.handlers[scheme]; ok {
		return true
	}
	_, ok := f.builtins[scheme]
	return ok
}

// InterceptProtocol overlays handler on scheme. It returns false if the
// scheme is already intercepted.
func (f *JobFactory) InterceptProtocol(scheme string, handler http.RoundTripper) bool {
	scheme = urltable.Canonical(scheme)
	if _, ok := f.interceptors[scheme]; ok {
		return false
	}
	f.interceptors[scheme] = handler
	return true
}

// UninterceptProtocol removes an override. It returns false if there was none.
func (f *JobFactory) UninterceptProtocol(scheme string) bool {
	scheme = urltable.Canonical(scheme)
	if _, ok := f.interceptors[scheme]; !ok {
		return false
	}
	delete(f.interceptors, scheme)
	return true
}

// IsIntercepted reports whether an override is installed
func (f *JobFactory) IsIntercepted(scheme string) bool {
	_, ok := f.interceptors[urltable.Canonical(scheme)]
	return ok
}

// IsCustomized reports whether a custom handler or an override services
// scheme, as opposed to a built-in handler or nothing.
func (f *JobFactory) IsCustomized(scheme string) bool {
	return f.HasProtocolHandler(scheme) || f.IsIntercepted(scheme)
}

// Resolve returns the handler that services scheme
func (f *JobFactory) Resolve(scheme string) (http.RoundTripper, error) {
	scheme = urltable.Canonical(scheme)
	if rt, ok := f.interceptors[scheme]; ok {
		return rt, nil
	}
	if rt, ok := f.handlers[scheme]; ok {
		return rt, nil
	}
	if rt, ok := f.builtins[scheme]; ok {
		return rt, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
}

// Snapshot describes the factory's schemes
type Snapshot struct {
	Builtin     []string `json:"builtin"`
	Registered  []string `json:"registered"`
	Intercepted []string `json:"intercepted"`
}

// Snapshot lists the schemes of each kind in sorted order
func (f *JobFactory) Snapshot() Snapshot {
	return Snapshot{
		Builtin:     sortedKeys(f.builtins),
		Registered:  sortedKeys(f.handlers),
		Intercepted: sortedKeys(f.interceptors),
	}
}

func sortedKeys(m map[string]http.RoundTripper) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
