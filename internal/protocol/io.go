package protocol

import (
	"github.com/imposter-project/imposter-protocol/internal/metrics"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Execute applies op to the getter's job factory. It must run on the getter's
// I/O runner and performs exactly one factory mutation.
func Execute(getter RequestContextGetter, op *PendingOperation) ProtocolError {
	status := execute(getter, op)
	logger.Tracef("executed %s of scheme %s on I/O runner - status:%s", op.Kind, op.Scheme, status)
	metrics.RecordOperation(op.Kind.String(), status.String())
	return status
}

func execute(getter RequestContextGetter, op *PendingOperation) ProtocolError {
	factory := getter.JobFactory()
	if factory == nil {
		return Fail
	}

	switch op.Kind {
	case Register:
		if factory.IsHandledProtocol(op.Scheme) {
			return Registered
		}
		if !factory.SetProtocolHandler(op.Scheme, op.handler(getter)) {
			return Fail
		}
		return OK

	case Unregister:
		if !factory.HasProtocolHandler(op.Scheme) {
			return NotRegistered
		}
		if !factory.SetProtocolHandler(op.Scheme, nil) {
			return Fail
		}
		return OK

	case Intercept:
		if !factory.InterceptProtocol(op.Scheme, op.handler(getter)) {
			return Intercepted
		}
		return OK

	case Unintercept:
		if !factory.UninterceptProtocol(op.Scheme) {
			return NotIntercepted
		}
		return OK
	}

	logger.Errorf("unsupported operation %s for scheme %s", op.Kind, op.Scheme)
	return Fail
}
