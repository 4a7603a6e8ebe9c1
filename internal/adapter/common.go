package adapter

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/imposter-project/imposter-protocol/internal/app"
	"github.com/imposter-project/imposter-protocol/internal/cmdline"
	"github.com/imposter-project/imposter-protocol/internal/config"
	"github.com/imposter-project/imposter-protocol/internal/jsruntime"
	"github.com/imposter-project/imposter-protocol/internal/schemes"
	"github.com/imposter-project/imposter-protocol/internal/script"
	"github.com/imposter-project/imposter-protocol/internal/session"
	"github.com/imposter-project/imposter-protocol/internal/system"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
	"github.com/imposter-project/imposter-protocol/pkg/utils"
)

// Imposter is the assembled application: the control and I/O runners, the
// scheme registry, the sessions and the script engine.
type Imposter struct {
	Config     *config.ImposterConfig
	Configs    []config.Config
	InstanceID string

	Control   *taskrunner.Runner
	IO        *taskrunner.Runner
	Runtime   *jsruntime.Runtime
	Tables    *urltable.Tables
	CmdLine   *cmdline.CommandLine
	Lifecycle *app.Lifecycle
	Registry  *schemes.Registry
	Sessions  *session.Manager
	Engine    *script.Engine

	shutdownOnce sync.Once
}

// Options overrides the process-wide state an Imposter binds to
type Options struct {
	Tables      *urltable.Tables
	CommandLine *cmdline.CommandLine
	Lifecycle   *app.Lifecycle
}

// InitialiseImposter performs common initialisation tasks for all adapters
func InitialiseImposter(configDirArg string) *Imposter {
	logger.Infoln("starting imposter-protocol...")

	imposterConfig := config.LoadImposterConfig()
	configDirs := getConfigDirs(configDirArg, imposterConfig)

	var configs []config.Config
	for _, configDir := range configDirs {
		if info, err := os.Stat(configDir); os.IsNotExist(err) || !info.IsDir() {
			panic("Specified path is not a valid directory")
		}
		cfgs, err := config.LoadConfig(configDir)
		if err != nil {
			panic(fmt.Sprintf("failed to load config from %s: %v", configDir, err))
		}
		configs = append(configs, cfgs...)
	}

	imposter, err := NewImposter(imposterConfig, configs, Options{})
	if err != nil {
		panic(err)
	}
	if err := imposter.Boot(); err != nil {
		imposter.Shutdown()
		panic(err)
	}
	return imposter
}

func getConfigDirs(configDirArg string, imposterConfig *config.ImposterConfig) []string {
	if configDirArg != "" {
		return utils.SplitList(configDirArg)
	}
	if len(imposterConfig.ConfigDirs) == 0 {
		panic("Config directory path must be provided either as an argument or via IMPOSTER_CONFIG_DIR environment variable")
	}
	return imposterConfig.ConfigDirs
}

// NewImposter wires the application without starting it
func NewImposter(imposterConfig *config.ImposterConfig, configs []config.Config, opts Options) (*Imposter, error) {
	var upstreamTimeout time.Duration
	if imposterConfig.UpstreamTimeout != "" {
		var err error
		if upstreamTimeout, err = time.ParseDuration(imposterConfig.UpstreamTimeout); err != nil {
			return nil, fmt.Errorf("invalid upstream timeout %q: %w", imposterConfig.UpstreamTimeout, err)
		}
	}
	if imposterConfig.LogLevel != "" {
		logger.SetLevel(logger.ParseLevel(imposterConfig.LogLevel))
	}

	if opts.Tables == nil {
		opts.Tables = urltable.Default()
	}
	if opts.CommandLine == nil {
		opts.CommandLine = cmdline.ForCurrentProcess()
	}
	if opts.Lifecycle == nil {
		opts.Lifecycle = app.Current()
	}

	control := taskrunner.New("control")
	io := taskrunner.New("io")
	runtime := jsruntime.New(control)
	registry := schemes.NewRegistry(opts.Tables, opts.CommandLine, opts.Lifecycle)
	sessions := session.NewManager(session.Options{
		IO:              io,
		Control:         control,
		Isolate:         runtime,
		Tables:          opts.Tables,
		UpstreamTimeout: upstreamTimeout,
	})

	return &Imposter{
		Config:     imposterConfig,
		Configs:    configs,
		InstanceID: system.GenerateInstanceID(),
		Control:    control,
		IO:         io,
		Runtime:    runtime,
		Tables:     opts.Tables,
		CmdLine:    opts.CommandLine,
		Lifecycle:  opts.Lifecycle,
		Registry:   registry,
		Sessions:   sessions,
		Engine:     script.NewEngine(runtime, registry, opts.Lifecycle, sessions),
	}, nil
}

// Boot declares privileged schemes and runs scripts during the early-init
// window, signals ready, then installs the configured protocol handlers.
func (i *Imposter) Boot() error {
	// a child process inherits its parent's privileged schemes as switches
	if err := i.Registry.ApplyFromCommandLine(i.CmdLine); err != nil {
		return err
	}

	for _, cfg := range i.Configs {
		for _, ps := range cfg.PrivilegedSchemes {
			if err := i.Registry.RegisterSchemesAsPrivileged(ps.Schemes, ps.Privileges.Privileges()); err != nil {
				return fmt.Errorf("failed to register privileged schemes %v: %w", ps.Schemes, err)
			}
		}
	}

	for _, cfg := range i.Configs {
		for _, file := range cfg.Scripts {
			path, err := cfg.ResolvePath(file)
			if err != nil {
				return fmt.Errorf("failed to validate script file path: %w", err)
			}
			if err := i.Engine.RunFile(path); err != nil {
				return err
			}
		}
	}

	if !i.Control.RunAndWait(i.Lifecycle.SetReady) {
		return errors.New("control runner is stopped")
	}

	return i.installProtocols()
}

// Shutdown destroys the sessions and stops the runners
func (i *Imposter) Shutdown() {
	i.shutdownOnce.Do(func() {
		logger.Infoln("shutting down imposter-protocol")
		i.Control.RunAndWait(i.Sessions.Destroy)
		i.IO.Stop()
		i.Control.Stop()
	})
}
