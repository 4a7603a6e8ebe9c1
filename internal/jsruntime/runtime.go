// Package jsruntime wraps a goja runtime bound to the control runner. The
// runtime's mutex is the isolate lock: it is held while any script code runs.
package jsruntime

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Runtime is a goja VM owned by the control runner
type Runtime struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	control *taskrunner.Runner
}

// New creates a runtime whose callbacks are scheduled on control
func New(control *taskrunner.Runner) *Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return &Runtime{vm: vm, control: control}
}

// Lock acquires the isolate
func (r *Runtime) Lock() {
	r.mu.Lock()
}

// Unlock releases the isolate
func (r *Runtime) Unlock() {
	r.mu.Unlock()
}

// VM returns the underlying runtime; only use it while holding the isolate
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

func (r *Runtime) Control() *taskrunner.Runner {
	return r.control
}

// Do runs fn while holding the isolate
func (r *Runtime) Do(fn func(vm *goja.Runtime)) {
	r.Lock()
	defer r.Unlock()
	fn(r.vm)
}

// Post schedules fn on the control runner, holding the isolate while it runs
func (r *Runtime) Post(fn func(vm *goja.Runtime)) bool {
	return r.control.PostTask(func() {
		r.Do(fn)
	})
}

// RunString evaluates a script while holding the isolate
func (r *Runtime) RunString(name, src string) (err error) {
	r.Do(func(vm *goja.Runtime) {
		_, err = vm.RunScript(name, src)
	})
	if err != nil {
		if jsErr, ok := err.(*goja.Exception); ok {
			return fmt.Errorf("script %s failed: %v", name, jsErr.Value())
		}
		return fmt.Errorf("script %s failed: %w", name, err)
	}
	logger.Debugf("script %s completed successfully", name)
	return nil
}

// Call invokes fn and logs a thrown exception. The isolate must be held.
func Call(vm *goja.Runtime, what string, fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	result, err := fn(goja.Undefined(), args...)
	if err != nil {
		if jsErr, ok := err.(*goja.Exception); ok {
			logger.Errorf("[Script] %s threw: %v", what, jsErr.Value())
		} else {
			logger.Errorf("[Script] %s failed: %v", what, err)
		}
		return nil, err
	}
	return result, nil
}

// Settle runs fn as a top-level call, so promise reactions queued by fn run
// before Settle returns. The isolate must be held.
func Settle(vm *goja.Runtime, fn func()) {
	wrapped, _ := goja.AssertFunction(vm.ToValue(func(goja.FunctionCall) goja.Value {
		fn()
		return goja.Undefined()
	}))
	_, _ = Call(vm, "promise settlement", wrapped)
}
