package schemes

import (
	"errors"
	"fmt"
	"sync"

	"github.com/imposter-project/imposter-protocol/internal/app"
	"github.com/imposter-project/imposter-protocol/internal/cmdline"
	"github.com/imposter-project/imposter-protocol/internal/metrics"
	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
	"github.com/imposter-project/imposter-protocol/pkg/utils"
)

var (
	// ErrNotReady is returned when schemes are registered after the app is ready
	ErrNotReady = errors.New("protocol.registerSchemesAsPrivileged should be called before app is ready")

	// ErrNoSchemes is returned for an empty scheme list
	ErrNoSchemes = errors.New("at least one scheme must be provided")
)

// ReadyChecker reports whether the application has left its early-init window
type ReadyChecker interface {
	IsReady() bool
}

// Registry records privileged scheme declarations
type Registry struct {
	mu              sync.Mutex
	tables          *urltable.Tables
	commandLine     *cmdline.CommandLine
	lifecycle       ReadyChecker
	standardSchemes []string
	privileged      []string
}

// SchemeStatus is how the URL tables treat a privileged scheme
type SchemeStatus struct {
	Scheme          string `json:"scheme"`
	Standard        bool   `json:"standard"`
	WebSafe         bool   `json:"webSafe"`
	Secure          bool   `json:"secure"`
	BypassCSP       bool   `json:"bypassCSP"`
	CORSEnabled     bool   `json:"corsEnabled"`
	SupportFetchAPI bool   `json:"supportFetchAPI"`
	ServiceWorkers  bool   `json:"allowServiceWorkers"`
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(urltable.Default(), cmdline.ForCurrentProcess(), app.Current())
	})
	return defaultRegistry
}

// NewRegistry creates a registry writing to the given tables and command line
func NewRegistry(tables *urltable.Tables, commandLine *cmdline.CommandLine, lifecycle ReadyChecker) *Registry {
	return &Registry{
		tables:      tables,
		commandLine: commandLine,
		lifecycle:   lifecycle,
	}
}

// GetStandardSchemes returns the schemes of the last standard registration
func (r *Registry) GetStandardSchemes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.standardSchemes...)
}

// RegisterSchemesAsPrivileged grants privileges to schemes. It must be called
// before the application is ready; afterwards ErrNotReady is returned and
// nothing is changed.
//
// A standard registration replaces the published standard scheme list with
// the whole input, but earlier registrations remain standard in the URL tables.
func (r *Registry) RegisterSchemesAsPrivileged(schemes []string, privileges Privileges) error {
	if r.lifecycle != nil && r.lifecycle.IsReady() {
		return ErrNotReady
	}
	if len(schemes) == 0 {
		return ErrNoSchemes
	}
	for _, scheme := range schemes {
		if err := urltable.ValidateScheme(scheme); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	requested := make(map[string]bool)
	for _, scheme := range schemes {
		if privileges.Standard {
			if err := r.tables.AddStandardScheme(scheme, urltable.SchemeWithHost); err != nil {
				return err
			}
			if err := r.tables.RegisterWebSafeScheme(scheme); err != nil {
				return err
			}
			requested[cmdline.StandardSchemes] = true
		}
		if privileges.Secure {
			if err := r.tables.AddSecureScheme(scheme); err != nil {
				return err
			}
			requested[cmdline.SecureSchemes] = true
		}
		if privileges.BypassCSP {
			if err := r.tables.AddCSPBypassingScheme(scheme); err != nil {
				return err
			}
			requested[cmdline.BypassCSPSchemes] = true
		}
		if privileges.CORSEnabled {
			if err := r.tables.AddCORSEnabledScheme(scheme); err != nil {
				return err
			}
			requested[cmdline.CORSSchemes] = true
		}
		if privileges.SupportFetchAPI {
			// no parser effect; recorded for introspection and propagation
			if err := r.tables.AddFetchScheme(scheme); err != nil {
				return err
			}
			requested[cmdline.FetchSchemes] = true
		}
	}

	if privileges.AllowServiceWorkers {
		if err := r.tables.SetCustomServiceWorkerSchemes(schemes); err != nil {
			return err
		}
		requested[cmdline.ServiceWorkerSchemes] = true
	}

	if privileges.Standard {
		r.standardSchemes = append([]string{}, schemes...)
	}
	r.track(schemes)
	propagate(r.commandLine, requested, schemes)
	metrics.AddPrivilegedSchemes(len(schemes))

	logger.Infof("registered privileged schemes %v - privileges:%+v", schemes, privileges)
	return nil
}

// ApplyFromCommandLine reapplies the scheme switches found on a child
// process's command line to the URL tables. Switches are not appended again.
func (r *Registry) ApplyFromCommandLine(cl *cmdline.CommandLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range cmdline.SchemeSwitches {
		schemes := parseSwitch(cl, name)
		if len(schemes) == 0 {
			continue
		}
		logger.Debugf("applying --%s=%v from command line", name, schemes)

		var err error
		switch name {
		case cmdline.StandardSchemes:
			err = r.each(schemes, func(s string) error {
				if err := r.tables.AddStandardScheme(s, urltable.SchemeWithHost); err != nil {
					return err
				}
				return r.tables.RegisterWebSafeScheme(s)
			})
			if err == nil {
				r.standardSchemes = schemes
			}
		case cmdline.SecureSchemes:
			err = r.each(schemes, r.tables.AddSecureScheme)
		case cmdline.BypassCSPSchemes:
			err = r.each(schemes, r.tables.AddCSPBypassingScheme)
		case cmdline.CORSSchemes:
			err = r.each(schemes, r.tables.AddCORSEnabledScheme)
		case cmdline.FetchSchemes:
			err = r.each(schemes, r.tables.AddFetchScheme)
		case cmdline.ServiceWorkerSchemes:
			err = r.tables.SetCustomServiceWorkerSchemes(schemes)
		}
		if err != nil {
			return fmt.Errorf("failed to apply --%s: %w", name, err)
		}
		r.track(schemes)
	}
	return nil
}

func (r *Registry) track(schemes []string) {
	for _, s := range schemes {
		s = urltable.Canonical(s)
		if !utils.StringSliceContainsElement(r.privileged, s) {
			r.privileged = append(r.privileged, s)
		}
	}
}

// Describe reports the URL table state of every scheme declared privileged,
// in declaration order.
func (r *Registry) Describe() []SchemeStatus {
	r.mu.Lock()
	privileged := append([]string(nil), r.privileged...)
	r.mu.Unlock()

	serviceWorkers := r.tables.ServiceWorkerSchemes()
	statuses := make([]SchemeStatus, 0, len(privileged))
	for _, s := range privileged {
		statuses = append(statuses, SchemeStatus{
			Scheme:          s,
			Standard:        r.tables.IsStandard(s),
			WebSafe:         r.tables.IsWebSafe(s),
			Secure:          r.tables.IsSecure(s),
			BypassCSP:       r.tables.IsCSPBypassing(s),
			CORSEnabled:     r.tables.IsCORSEnabled(s),
			SupportFetchAPI: r.tables.IsFetchEnabled(s),
			ServiceWorkers:  utils.StringSliceContainsElement(serviceWorkers, s),
		})
	}
	return statuses
}

func (r *Registry) each(schemes []string, fn func(string) error) error {
	for _, s := range schemes {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}
