package jsruntime

import (
	"fmt"

	"github.com/dop251/goja"
)

// NewError creates a JS Error with the given message
func NewError(vm *goja.Runtime, message string) goja.Value {
	obj, err := vm.New(vm.Get("Error"), vm.ToValue(message))
	if err != nil {
		return vm.NewGoError(fmt.Errorf("%s", message))
	}
	return obj
}

// Throw raises a JS Error from inside a Go function called by script code
func Throw(vm *goja.Runtime, message string) {
	panic(NewError(vm, message))
}

// IsMissing reports whether v is absent, undefined or null
func IsMissing(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// Property returns the named property of obj or nil if obj is not an object
func Property(v goja.Value, name string) goja.Value {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	prop := obj.Get(name)
	if IsMissing(prop) {
		return nil
	}
	return prop
}

// IsObject reports whether v is a non-null object
func IsObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

// StringProperty returns the named property as a string, or "" if absent
func StringProperty(v goja.Value, name string) string {
	prop := Property(v, name)
	if prop == nil {
		return ""
	}
	return prop.String()
}

// IntProperty returns the named property as an int, or 0 if absent
func IntProperty(v goja.Value, name string) int {
	prop := Property(v, name)
	if prop == nil {
		return 0
	}
	return int(prop.ToInteger())
}

// StringMap converts a plain object of scalars to a map of strings
func StringMap(v goja.Value) map[string]string {
	if IsMissing(v) {
		return nil
	}
	exported, ok := v.Export().(map[string]interface{})
	if !ok {
		return nil
	}
	result := make(map[string]string, len(exported))
	for key, value := range exported {
		result[key] = fmt.Sprint(value)
	}
	return result
}

// StringSlice converts an array of strings
func StringSlice(v goja.Value) ([]string, bool) {
	if IsMissing(v) {
		return nil, false
	}
	switch exported := v.Export().(type) {
	case []string:
		return exported, true
	case []interface{}:
		result := make([]string, 0, len(exported))
		for _, item := range exported {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	}
	return nil, false
}

// Bytes converts an ArrayBuffer, typed array or array of numbers to bytes
func Bytes(v goja.Value) ([]byte, bool) {
	if IsMissing(v) {
		return nil, false
	}
	switch exported := v.Export().(type) {
	case goja.ArrayBuffer:
		return append([]byte(nil), exported.Bytes()...), true
	case []byte:
		return append([]byte(nil), exported...), true
	case []interface{}:
		result := make([]byte, 0, len(exported))
		for _, item := range exported {
			switch n := item.(type) {
			case int64:
				result = append(result, byte(n))
			case float64:
				result = append(result, byte(n))
			default:
				return nil, false
			}
		}
		return result, true
	}
	return nil, false
}
