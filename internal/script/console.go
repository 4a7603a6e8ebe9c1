package script

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

func buildConsole() map[string]interface{} {
	console := make(map[string]interface{})

	console["log"] = consoleFunc(logger.Infof)
	console["info"] = consoleFunc(logger.Infof)
	console["debug"] = consoleFunc(logger.Debugf)
	console["warn"] = consoleFunc(logger.Warnf)
	console["error"] = consoleFunc(logger.Errorf)

	return console
}

func consoleFunc(logf func(format string, v ...interface{})) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		logf("[Script] %s", strings.Join(parts, " "))
		return goja.Undefined()
	}
}
