// Package script exposes the protocol API to JavaScript. Scripts run on the
// control runner while holding the runtime's isolate.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/app"
	"github.com/imposter-project/imposter-protocol/internal/jsruntime"
	"github.com/imposter-project/imposter-protocol/internal/protocol"
	"github.com/imposter-project/imposter-protocol/internal/schemes"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Sessions resolves the protocol controller of a session partition
type Sessions interface {
	Protocol(partition string) *protocol.Controller
}

// Engine is a script runtime with the protocol, app, session and console
// globals installed.
type Engine struct {
	runtime   *jsruntime.Runtime
	registry  *schemes.Registry
	lifecycle *app.Lifecycle
	sessions  Sessions
}

func NewEngine(runtime *jsruntime.Runtime, registry *schemes.Registry, lifecycle *app.Lifecycle, sessions Sessions) *Engine {
	e := &Engine{
		runtime:   runtime,
		registry:  registry,
		lifecycle: lifecycle,
		sessions:  sessions,
	}
	runtime.Do(func(vm *goja.Runtime) {
		vm.Set("console", buildConsole())
		vm.Set("protocol", e.buildModuleProtocol(vm))
		vm.Set("app", e.buildApp(vm))
		vm.Set("session", e.buildSession(vm))
	})
	return e
}

// RunFile executes a script file on the control runner
func (e *Engine) RunFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file %s: %w", path, err)
	}
	logger.Infof("executing script from file %s", path)
	return e.RunString(filepath.Base(path), string(content))
}

// RunString executes script source on the control runner
func (e *Engine) RunString(name, src string) error {
	logger.Tracef("script content: %s", src)

	var err error
	if !e.runtime.Control().RunAndWait(func() {
		err = e.runtime.RunString(name, src)
	}) {
		return errors.New("control runner is stopped")
	}
	return err
}

// onReady schedules fn on the control runner once the app is ready
func (e *Engine) onReady(fn func(vm *goja.Runtime)) {
	e.lifecycle.WhenReady(func() {
		e.runtime.Post(fn)
	})
}
