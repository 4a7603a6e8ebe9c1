package jsruntime

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	control := taskrunner.New("control")
	t.Cleanup(control.Stop)
	return New(control)
}

func TestRuntime_RunString(t *testing.T) {
	rt := newRuntime(t)

	require.NoError(t, rt.RunString("ok.js", "var answer = 6 * 7;"))
	rt.Do(func(vm *goja.Runtime) {
		assert.Equal(t, int64(42), vm.Get("answer").ToInteger())
	})

	err := rt.RunString("throws.js", `throw new Error("broken")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	err = rt.RunString("syntax.js", "var = ;")
	assert.Error(t, err)
}

func TestRuntime_Post(t *testing.T) {
	rt := newRuntime(t)

	var onControl bool
	rt.Post(func(vm *goja.Runtime) {
		onControl = rt.Control().RunsTasksInCurrentSequence()
	})
	rt.Control().Flush()
	assert.True(t, onControl)
}

func TestNewError(t *testing.T) {
	rt := newRuntime(t)
	rt.Do(func(vm *goja.Runtime) {
		vm.Set("err", NewError(vm, "The scheme has been registered"))
		v, err := vm.RunString(`err instanceof Error && err.message`)
		require.NoError(t, err)
		assert.Equal(t, "The scheme has been registered", v.String())
	})
}

func TestThrow(t *testing.T) {
	rt := newRuntime(t)
	rt.Do(func(vm *goja.Runtime) {
		vm.Set("fail", func(call goja.FunctionCall) goja.Value {
			Throw(vm, "nope")
			return goja.Undefined()
		})
		v, err := vm.RunString(`try { fail(); "not thrown" } catch (e) { e.message }`)
		require.NoError(t, err)
		assert.Equal(t, "nope", v.String())
	})
}

func TestConversions(t *testing.T) {
	rt := newRuntime(t)
	rt.Do(func(vm *goja.Runtime) {
		eval := func(src string) goja.Value {
			v, err := vm.RunString(src)
			require.NoError(t, err)
			return v
		}

		obj := eval(`({mimeType: "text/html", statusCode: 201, headers: {"X-A": "1", "X-B": 2}})`)
		assert.Equal(t, "text/html", StringProperty(obj, "mimeType"))
		assert.Equal(t, 201, IntProperty(obj, "statusCode"))
		assert.Equal(t, "", StringProperty(obj, "missing"))
		assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, StringMap(Property(obj, "headers")))
		assert.Nil(t, Property(eval(`"str"`), "length"))

		schemes, ok := StringSlice(eval(`["app", "assets"]`))
		require.True(t, ok)
		assert.Equal(t, []string{"app", "assets"}, schemes)
		_, ok = StringSlice(eval(`["app", 1]`))
		assert.False(t, ok)

		for _, src := range []string{
			`new Uint8Array([1, 2, 3, 4]).buffer`,
			`new Uint8Array([1, 2, 3, 4])`,
			`[1, 2, 3, 4]`,
		} {
			data, ok := Bytes(eval(src))
			require.True(t, ok, src)
			assert.Equal(t, []byte{1, 2, 3, 4}, data, src)
		}
		_, ok = Bytes(eval(`"text"`))
		assert.False(t, ok)
	})
}

func TestSettle(t *testing.T) {
	rt := newRuntime(t)

	var resolve func()
	rt.Do(func(vm *goja.Runtime) {
		promise, res, _ := vm.NewPromise()
		resolve = func() { res(goja.Undefined()) }
		require.NoError(t, vm.Set("pending", promise))
	})
	require.NoError(t, rt.RunString("then.js", `var settled = false; pending.then(function() { settled = true; });`))

	rt.Do(func(vm *goja.Runtime) {
		Settle(vm, resolve)
		assert.True(t, vm.Get("settled").ToBoolean())
	})
}
