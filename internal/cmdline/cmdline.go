package cmdline

import (
	"os"
	"strings"
	"sync"
)

// Switches carrying privileged scheme lists to child processes
const (
	StandardSchemes      = "standard-schemes"
	SecureSchemes        = "secure-schemes"
	BypassCSPSchemes     = "bypass-csp-schemes"
	CORSSchemes          = "cors-schemes"
	FetchSchemes         = "fetch-schemes"
	ServiceWorkerSchemes = "service-worker-schemes"
)

// SchemeSwitches lists the scheme switches in the order they are appended
var SchemeSwitches = []string{
	StandardSchemes,
	SecureSchemes,
	BypassCSPSchemes,
	CORSSchemes,
	FetchSchemes,
	ServiceWorkerSchemes,
}

const switchPrefix = "--"

// CommandLine is a process argv with `--name=value` switches. Appending a
// switch that already exists overrides its value for lookups; both
// occurrences remain in Argv, as a child parses the last one.
type CommandLine struct {
	mu       sync.RWMutex
	argv     []string
	switches map[string]string
}

var (
	current     *CommandLine
	currentOnce sync.Once
)

// ForCurrentProcess returns the command line of this process
func ForCurrentProcess() *CommandLine {
	currentOnce.Do(func() {
		current = New(os.Args)
	})
	return current
}

// New parses argv; argv[0] is the program
func New(argv []string) *CommandLine {
	cl := &CommandLine{switches: make(map[string]string)}
	cl.argv = append(cl.argv, argv...)
	for i, arg := range argv {
		if i == 0 {
			continue
		}
		if arg == switchPrefix {
			break
		}
		if name, value, ok := parseSwitch(arg); ok {
			cl.switches[name] = value
		}
	}
	return cl
}

func parseSwitch(arg string) (string, string, bool) {
	if !strings.HasPrefix(arg, switchPrefix) {
		return "", "", false
	}
	name, value, _ := strings.Cut(strings.TrimPrefix(arg, switchPrefix), "=")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), value, true
}

// AppendSwitchASCII appends --name=value
func (cl *CommandLine) AppendSwitchASCII(name, value string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	name = strings.ToLower(name)
	arg := switchPrefix + name
	if value != "" {
		arg += "=" + value
	}
	cl.argv = append(cl.argv, arg)
	cl.switches[name] = value
}

// HasSwitch reports whether the switch is present
func (cl *CommandLine) HasSwitch(name string) bool {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	_, ok := cl.switches[strings.ToLower(name)]
	return ok
}

// GetSwitchValueASCII returns the switch value, or empty if absent
func (cl *CommandLine) GetSwitchValueASCII(name string) string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.switches[strings.ToLower(name)]
}

// Argv returns a copy of the full argument list
func (cl *CommandLine) Argv() []string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return append([]string(nil), cl.argv...)
}

// CopySwitchesTo appends the named switches present on cl to dst, for
// building the argv of a child process.
func (cl *CommandLine) CopySwitchesTo(dst []string, names ...string) []string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	for _, name := range names {
		name = strings.ToLower(name)
		value, ok := cl.switches[name]
		if !ok {
			continue
		}
		arg := switchPrefix + name
		if value != "" {
			arg += "=" + value
		}
		dst = append(dst, arg)
	}
	return dst
}
