package script

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/jsruntime"
	"github.com/imposter-project/imposter-protocol/internal/protocol"
	"github.com/imposter-project/imposter-protocol/internal/schemes"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// buildModuleProtocol is the global protocol object: the default session's
// operations plus the process-wide scheme registry.
func (e *Engine) buildModuleProtocol(vm *goja.Runtime) map[string]interface{} {
	obj := e.buildProtocol(vm, e.sessions.Protocol(""))

	obj["registerSchemesAsPrivileged"] = func(call goja.FunctionCall) goja.Value {
		list, ok := jsruntime.StringSlice(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("schemes must be an array of strings"))
		}
		if err := e.registry.RegisterSchemesAsPrivileged(list, privilegesFrom(call.Argument(1))); err != nil {
			jsruntime.Throw(vm, err.Error())
		}
		return goja.Undefined()
	}
	obj["getStandardSchemes"] = func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(e.registry.GetStandardSchemes())
	}
	return obj
}

// buildProtocol is the per-session protocol object
func (e *Engine) buildProtocol(vm *goja.Runtime, ctrl *protocol.Controller) map[string]interface{} {
	obj := make(map[string]interface{})

	for _, kind := range strategy.Kinds {
		name := strings.ToUpper(kind.String()[:1]) + kind.String()[1:]
		obj["register"+name+"Protocol"] = e.installer(vm, ctrl, kind, ctrl.Register)
		obj["intercept"+name+"Protocol"] = e.installer(vm, ctrl, kind, ctrl.Intercept)
	}

	obj["unregisterProtocol"] = func(call goja.FunctionCall) goja.Value {
		ctrl.Unregister(schemeArg(vm, call), completion(vm, call.Argument(1)))
		return goja.Undefined()
	}
	obj["uninterceptProtocol"] = func(call goja.FunctionCall) goja.Value {
		ctrl.Unintercept(schemeArg(vm, call), completion(vm, call.Argument(1)))
		return goja.Undefined()
	}
	obj["isProtocolHandled"] = func(call goja.FunctionCall) goja.Value {
		scheme := schemeArg(vm, call)
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("isProtocolHandled requires a callback"))
		}
		ctrl.IsProtocolHandled(scheme, func(handled bool) {
			_, _ = jsruntime.Call(vm, "isProtocolHandled callback", fn, vm.ToValue(handled))
		})
		return goja.Undefined()
	}
	return obj
}

type install func(kind strategy.Kind, scheme string, factory strategy.UserFactory, cb protocol.CompletionCallback)

func (e *Engine) installer(vm *goja.Runtime, ctrl *protocol.Controller, kind strategy.Kind, fn install) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		scheme := schemeArg(vm, call)
		handler, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("handler must be a function"))
		}
		fn(kind, scheme, e.userFactory(kind, handler), completion(vm, call.Argument(2)))
		return goja.Undefined()
	}
}

// userFactory runs handler on the control runner for each request and hands
// the converted reply to the waiting job.
func (e *Engine) userFactory(kind strategy.Kind, handler goja.Callable) strategy.UserFactory {
	return func(req *strategy.Request, done strategy.Done) {
		posted := e.runtime.Post(func(vm *goja.Runtime) {
			callback := func(call goja.FunctionCall) goja.Value {
				reply, err := convertReply(kind, call.Argument(0))
				if err != nil {
					logger.Warnf("invalid %s protocol reply for %s: %v", kind, req.URL, err)
					done(strategy.ErrorReply{Code: strategy.NetErrorFailed})
					return goja.Undefined()
				}
				done(reply)
				return goja.Undefined()
			}
			if _, err := jsruntime.Call(vm, "protocol handler", handler, vm.ToValue(requestObject(vm, req)), vm.ToValue(callback)); err != nil {
				done(err)
			}
		})
		if !posted {
			done(strategy.ErrorReply{Code: strategy.NetErrorAborted})
		}
	}
}

func schemeArg(vm *goja.Runtime, call goja.FunctionCall) string {
	arg := call.Argument(0)
	if jsruntime.IsMissing(arg) {
		panic(vm.NewTypeError("scheme must be a string"))
	}
	return arg.String()
}

// completion adapts an optional script callback. It is invoked by the
// completion reporter, which already holds the isolate.
func completion(vm *goja.Runtime, v goja.Value) protocol.CompletionCallback {
	if jsruntime.IsMissing(v) {
		return nil
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(vm.NewTypeError("completion must be a function"))
	}
	return func(err error) {
		arg := goja.Null()
		if err != nil {
			arg = jsruntime.NewError(vm, err.Error())
		}
		_, _ = jsruntime.Call(vm, "protocol completion", fn, arg)
	}
}

func privilegesFrom(v goja.Value) schemes.Privileges {
	opts := &schemes.Options{}
	for name, dst := range map[string]**bool{
		"standard":            &opts.Standard,
		"secure":              &opts.Secure,
		"bypassCSP":           &opts.BypassCSP,
		"allowServiceWorkers": &opts.AllowServiceWorkers,
		"supportFetchAPI":     &opts.SupportFetchAPI,
		"corsEnabled":         &opts.CORSEnabled,
	} {
		if prop := jsruntime.Property(v, name); prop != nil {
			b := prop.ToBoolean()
			*dst = &b
		}
	}
	return opts.Privileges()
}
