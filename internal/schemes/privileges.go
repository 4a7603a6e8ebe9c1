package schemes

// Privileges are the web-platform privileges granted to a scheme
type Privileges struct {
	Standard            bool
	Secure              bool
	BypassCSP           bool
	AllowServiceWorkers bool
	SupportFetchAPI     bool
	CORSEnabled         bool
}

// DefaultPrivileges grants everything, as when no options are supplied
func DefaultPrivileges() Privileges {
	return Privileges{
		Standard:            true,
		Secure:              true,
		BypassCSP:           true,
		AllowServiceWorkers: true,
		SupportFetchAPI:     true,
		CORSEnabled:         true,
	}
}

// Options is a partial set of privileges; unset fields keep their default
type Options struct {
	Standard            *bool `yaml:"standard,omitempty" json:"standard,omitempty"`
	Secure              *bool `yaml:"secure,omitempty" json:"secure,omitempty"`
	BypassCSP           *bool `yaml:"bypassCSP,omitempty" json:"bypassCSP,omitempty"`
	AllowServiceWorkers *bool `yaml:"allowServiceWorkers,omitempty" json:"allowServiceWorkers,omitempty"`
	SupportFetchAPI     *bool `yaml:"supportFetchAPI,omitempty" json:"supportFetchAPI,omitempty"`
	CORSEnabled         *bool `yaml:"corsEnabled,omitempty" json:"corsEnabled,omitempty"`
}

// Privileges resolves the options over DefaultPrivileges. A nil receiver
// yields the defaults.
func (o *Options) Privileges() Privileges {
	p := DefaultPrivileges()
	if o == nil {
		return p
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Standard, o.Standard)
	set(&p.Secure, o.Secure)
	set(&p.BypassCSP, o.BypassCSP)
	set(&p.AllowServiceWorkers, o.AllowServiceWorkers)
	set(&p.SupportFetchAPI, o.SupportFetchAPI)
	set(&p.CORSEnabled, o.CORSEnabled)
	return p
}
