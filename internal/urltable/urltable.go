// Package urltable holds the process-wide URL parsing and web-security tables
// consulted when a request URL is parsed.
//
// Writes are only legal before the application signals ready. Freeze closes
// the tables and any later write is rejected with ErrFrozen.
package urltable

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/imposter-project/imposter-protocol/pkg/logger"
	"github.com/imposter-project/imposter-protocol/pkg/utils"
	"golang.org/x/net/idna"
)

// SchemeType describes the authority component of a standard scheme
type SchemeType int

const (
	SchemeWithHost SchemeType = iota
	SchemeWithHostAndPort
	SchemeWithoutAuthority
)

var (
	// ErrFrozen is returned for writes after Freeze
	ErrFrozen = errors.New("url tables are frozen")

	schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)
)

// Tables is the URL parser and security policy store
type Tables struct {
	mu sync.RWMutex

	frozen         bool
	standard       map[string]SchemeType
	secure         []string
	cspBypassing   []string
	corsEnabled    []string
	fetchEnabled   []string
	webSafe        map[string]bool
	serviceWorkers []string
}

var defaultTables = New()

// Default returns the process-wide tables
func Default() *Tables {
	return defaultTables
}

// New creates tables preloaded with the built-in schemes
func New() *Tables {
	t := &Tables{}
	t.reset()
	return t
}

func (t *Tables) reset() {
	t.frozen = false
	t.standard = map[string]SchemeType{
		"http":  SchemeWithHostAndPort,
		"https": SchemeWithHostAndPort,
		"ws":    SchemeWithHostAndPort,
		"wss":   SchemeWithHostAndPort,
		"ftp":   SchemeWithHostAndPort,
		"file":  SchemeWithHost,
	}
	t.secure = []string{"https", "wss"}
	t.cspBypassing = nil
	t.corsEnabled = []string{"http", "https"}
	t.fetchEnabled = []string{"http", "https"}
	t.webSafe = map[string]bool{"http": true, "https": true, "ws": true, "wss": true, "ftp": true, "data": true}
	t.serviceWorkers = nil
}

// Reset restores the built-in state and unfreezes the tables; test use only
func (t *Tables) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// ValidateScheme checks a scheme against the URL parser's syntax rules
func ValidateScheme(scheme string) error {
	if !schemePattern.MatchString(scheme) {
		return fmt.Errorf("invalid scheme: %q", scheme)
	}
	return nil
}

// Canonical returns the lowercase form of a scheme
func Canonical(scheme string) string {
	return strings.ToLower(scheme)
}

// Freeze closes the tables to further writes
func (t *Tables) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.frozen {
		logger.Debugln("url tables frozen")
	}
	t.frozen = true
}

// IsFrozen reports whether Freeze has been called
func (t *Tables) IsFrozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

func (t *Tables) write(op, scheme string, fn func(s string)) error {
	if err := ValidateScheme(scheme); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		logger.Errorf("rejected %s for scheme %s after url tables were frozen", op, scheme)
		return fmt.Errorf("%s %s: %w", op, scheme, ErrFrozen)
	}
	fn(Canonical(scheme))
	return nil
}

func appendUnique(list []string, scheme string) []string {
	if utils.StringSliceContainsElement(list, scheme) {
		return list
	}
	return append(list, scheme)
}

// AddStandardScheme registers a scheme that is parsed with an authority
func (t *Tables) AddStandardScheme(scheme string, schemeType SchemeType) error {
	return t.write("AddStandardScheme", scheme, func(s string) {
		t.standard[s] = schemeType
	})
}

// AddSecureScheme marks the scheme as a secure origin
func (t *Tables) AddSecureScheme(scheme string) error {
	return t.write("AddSecureScheme", scheme, func(s string) {
		t.secure = appendUnique(t.secure, s)
	})
}

// AddCSPBypassingScheme exempts the scheme from Content-Security-Policy
func (t *Tables) AddCSPBypassingScheme(scheme string) error {
	return t.write("AddCSPBypassingScheme", scheme, func(s string) {
		t.cspBypassing = appendUnique(t.cspBypassing, s)
	})
}

// AddCORSEnabledScheme permits the scheme as a CORS scheme
func (t *Tables) AddCORSEnabledScheme(scheme string) error {
	return t.write("AddCORSEnabledScheme", scheme, func(s string) {
		t.corsEnabled = appendUnique(t.corsEnabled, s)
	})
}

// AddFetchScheme records the scheme as reachable by the Fetch API. It has no
// effect on URL parsing.
func (t *Tables) AddFetchScheme(scheme string) error {
	return t.write("AddFetchScheme", scheme, func(s string) {
		t.fetchEnabled = appendUnique(t.fetchEnabled, s)
	})
}

// RegisterWebSafeScheme allows child processes to request URLs of the scheme
func (t *Tables) RegisterWebSafeScheme(scheme string) error {
	return t.write("RegisterWebSafeScheme", scheme, func(s string) {
		t.webSafe[s] = true
	})
}

// SetCustomServiceWorkerSchemes replaces the set of service-worker-capable schemes
func (t *Tables) SetCustomServiceWorkerSchemes(schemes []string) error {
	for _, s := range schemes {
		if err := ValidateScheme(s); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		logger.Errorf("rejected SetCustomServiceWorkerSchemes after url tables were frozen")
		return fmt.Errorf("SetCustomServiceWorkerSchemes: %w", ErrFrozen)
	}
	t.serviceWorkers = t.serviceWorkers[:0:0]
	for _, s := range schemes {
		t.serviceWorkers = append(t.serviceWorkers, Canonical(s))
	}
	return nil
}

func (t *Tables) contains(list func() []string, scheme string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return utils.StringSliceContainsElement(list(), Canonical(scheme))
}

// IsStandard reports whether the scheme is parsed with an authority
func (t *Tables) IsStandard(scheme string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.standard[Canonical(scheme)]
	return ok
}

func (t *Tables) IsSecure(scheme string) bool {
	return t.contains(func() []string { return t.secure }, scheme)
}

func (t *Tables) IsCSPBypassing(scheme string) bool {
	return t.contains(func() []string { return t.cspBypassing }, scheme)
}

func (t *Tables) IsCORSEnabled(scheme string) bool {
	return t.contains(func() []string { return t.corsEnabled }, scheme)
}

func (t *Tables) IsFetchEnabled(scheme string) bool {
	return t.contains(func() []string { return t.fetchEnabled }, scheme)
}

// IsWebSafe reports whether child processes may request the scheme
func (t *Tables) IsWebSafe(scheme string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.webSafe[Canonical(scheme)]
}

// ServiceWorkerSchemes returns a copy of the service-worker-capable schemes
func (t *Tables) ServiceWorkerSchemes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.serviceWorkers...)
}

// Canonicalize normalises a URL according to the tables. Standard schemes
// must carry a host, which is lowercased and converted to its ASCII form.
func (t *Tables) Canonicalize(u *url.URL) (*url.URL, error) {
	out := *u
	out.Scheme = Canonical(u.Scheme)
	if !t.IsStandard(out.Scheme) {
		return &out, nil
	}
	if out.Opaque != "" {
		// app:foo/bar on a standard scheme is parsed as app://foo/bar
		host, path, _ := strings.Cut(out.Opaque, "/")
		out.Opaque = ""
		out.Host = host
		out.Path = "/" + path
	}
	if out.Host == "" && out.Scheme != "file" {
		return nil, fmt.Errorf("url %s has no host for standard scheme %s", u.String(), out.Scheme)
	}
	if out.Host != "" {
		hostname, port := out.Hostname(), out.Port()
		ascii := "[" + hostname + "]"
		if !strings.Contains(hostname, ":") {
			var err error
			if ascii, err = idna.Lookup.ToASCII(hostname); err != nil {
				return nil, fmt.Errorf("invalid host %q: %w", hostname, err)
			}
		}
		out.Host = ascii
		if port != "" {
			out.Host = ascii + ":" + port
		}
	}
	if out.Path == "" {
		out.Path = "/"
	}
	return &out, nil
}
