package script

import (
	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/jsruntime"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

func (e *Engine) buildApp(vm *goja.Runtime) map[string]interface{} {
	obj := make(map[string]interface{})

	obj["isReady"] = func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(e.lifecycle.IsReady())
	}

	// whenReady returns a promise and optionally takes a listener
	obj["whenReady"] = func(call goja.FunctionCall) goja.Value {
		promise, resolve, _ := vm.NewPromise()
		fn, hasListener := goja.AssertFunction(call.Argument(0))
		e.onReady(func(vm *goja.Runtime) {
			if hasListener {
				_, _ = jsruntime.Call(vm, "whenReady listener", fn)
			}
			jsruntime.Settle(vm, func() {
				resolve(goja.Undefined())
			})
		})
		return vm.ToValue(promise)
	}

	obj["on"] = func(call goja.FunctionCall) goja.Value {
		event := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("listener must be a function"))
		}
		if event != "ready" {
			logger.Debugf("ignoring listener for unsupported app event %s", event)
			return goja.Undefined()
		}
		e.onReady(func(vm *goja.Runtime) {
			_, _ = jsruntime.Call(vm, "ready listener", fn)
		})
		return goja.Undefined()
	}
	return obj
}
