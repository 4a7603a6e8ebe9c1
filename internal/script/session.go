package script

import (
	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/jsruntime"
)

func (e *Engine) buildSession(vm *goja.Runtime) map[string]interface{} {
	obj := make(map[string]interface{})
	obj["defaultSession"] = map[string]interface{}{
		"partition": "",
		"protocol":  e.buildProtocol(vm, e.sessions.Protocol("")),
	}
	obj["fromPartition"] = func(call goja.FunctionCall) goja.Value {
		partition := ""
		if arg := call.Argument(0); !jsruntime.IsMissing(arg) {
			partition = arg.String()
		}
		return vm.ToValue(map[string]interface{}{
			"partition": partition,
			"protocol":  e.buildProtocol(vm, e.sessions.Protocol(partition)),
		})
	}
	return obj
}
