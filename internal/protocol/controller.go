// Package protocol implements the per-session protocol controller. Every
// operation is applied to the session's job factory on its I/O runner, and
// the result is reported back on the control runner.
package protocol

import (
	"sync/atomic"
	"weak"

	"github.com/imposter-project/imposter-protocol/internal/metrics"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Controller owns the register/intercept operations of one session
type Controller struct {
	getter  RequestContextGetter
	control *taskrunner.Runner
	isolate Isolate
	life    *lifetime
}

// lifetime is the token replies hold weakly; it is cleared on Destroy
type lifetime struct {
	ctrl atomic.Pointer[Controller]
}

// NewController creates a controller replying on control. isolate may be nil
// when no scripting runtime is involved.
func NewController(getter RequestContextGetter, control *taskrunner.Runner, isolate Isolate) *Controller {
	c := &Controller{
		getter:  getter,
		control: control,
		isolate: isolate,
		life:    &lifetime{},
	}
	c.life.ctrl.Store(c)
	return c
}

// Register installs factory under strategy kind as the handler of scheme.
// It fails with Registered if any handler, custom or built-in, already
// services the scheme.
func (c *Controller) Register(kind strategy.Kind, scheme string, factory strategy.UserFactory, cb CompletionCallback) {
	c.post(&PendingOperation{Scheme: scheme, Kind: Register, Strategy: kind, Factory: factory, Completion: cb})
}

// Unregister removes the custom handler of scheme
func (c *Controller) Unregister(scheme string, cb CompletionCallback) {
	c.post(&PendingOperation{Scheme: scheme, Kind: Unregister, Completion: cb})
}

// Intercept overlays factory on whatever handler services scheme
func (c *Controller) Intercept(kind strategy.Kind, scheme string, factory strategy.UserFactory, cb CompletionCallback) {
	c.post(&PendingOperation{Scheme: scheme, Kind: Intercept, Strategy: kind, Factory: factory, Completion: cb})
}

// Unintercept removes the override of scheme
func (c *Controller) Unintercept(scheme string, cb CompletionCallback) {
	c.post(&PendingOperation{Scheme: scheme, Kind: Unintercept, Completion: cb})
}

// IsProtocolHandled reports through cb whether a custom or built-in handler
// services scheme.
func (c *Controller) IsProtocolHandled(scheme string, cb func(handled bool)) {
	if cb == nil {
		logger.Errorf("isProtocolHandled called without a callback for scheme %s", scheme)
		return
	}
	if c.life == nil {
		logger.Warnf("isProtocolHandled called on destroyed protocol controller - scheme:%s", scheme)
		return
	}
	getter := c.getter
	token := weak.Make(c.life)

	taskrunner.PostTaskAndReplyWithResult(getter.IORunner(), func() bool {
		factory := getter.JobFactory()
		return factory != nil && factory.IsHandledProtocol(scheme)
	}, func(handled bool) {
		ctrl := resolve(token)
		if ctrl == nil {
			metrics.RecordDroppedReply(queryOperation)
			return
		}
		ctrl.withIsolate(func() {
			cb(handled)
		})
	}, c.control)
}

// Destroy detaches the controller. Replies to operations still in flight
// are discarded.
func (c *Controller) Destroy() {
	if c.life == nil {
		return
	}
	c.life.ctrl.Store(nil)
	c.life = nil
	logger.Traceln("protocol controller destroyed")
}

func (c *Controller) post(op *PendingOperation) {
	if c.life == nil {
		logger.Warnf("%s called on destroyed protocol controller - scheme:%s", op.Kind, op.Scheme)
		return
	}
	getter := c.getter
	token := weak.Make(c.life)

	ioOp := *op
	ioOp.Completion = nil

	logger.Debugf("posting %s of scheme %s to I/O runner", op.Kind, op.Scheme)
	taskrunner.PostTaskAndReplyWithResult(getter.IORunner(), func() ProtocolError {
		return Execute(getter, &ioOp)
	}, func(status ProtocolError) {
		ctrl := resolve(token)
		if ctrl == nil {
			logger.Debugf("discarding %s reply for scheme %s - controller destroyed", op.Kind, op.Scheme)
			metrics.RecordDroppedReply(op.Kind.String())
			return
		}
		ctrl.complete(op, status)
	}, c.control)
}

func (c *Controller) complete(op *PendingOperation, status ProtocolError) {
	if status != OK {
		logger.Debugf("%s of scheme %s failed: %s", op.Kind, op.Scheme, status.Error())
	} else {
		logger.Debugf("%s of scheme %s succeeded", op.Kind, op.Scheme)
	}
	ReportCompletion(c.isolate, op.Completion, status)
}

func (c *Controller) withIsolate(fn func()) {
	if c.isolate != nil {
		c.isolate.Lock()
		defer c.isolate.Unlock()
	}
	fn()
}

func resolve(token weak.Pointer[lifetime]) *Controller {
	life := token.Value()
	if life == nil {
		return nil
	}
	return life.ctrl.Load()
}
