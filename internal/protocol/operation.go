package protocol

import (
	"net/http"

	"github.com/imposter-project/imposter-protocol/internal/jobfactory"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
)

// OperationKind identifies what a PendingOperation does to the job factory
type OperationKind int

const (
	Register OperationKind = iota
	Intercept
	Unregister
	Unintercept
)

// queryOperation labels isProtocolHandled in metrics; it mutates nothing and
// never reaches Execute.
const queryOperation = "is_protocol_handled"

func (k OperationKind) String() string {
	switch k {
	case Register:
		return "register"
	case Intercept:
		return "intercept"
	case Unregister:
		return "unregister"
	case Unintercept:
		return "unintercept"
	}
	return "unknown"
}

// CompletionCallback receives nil on success or a ProtocolError
type CompletionCallback func(err error)

// PendingOperation is one controller call travelling to the I/O runner and back
type PendingOperation struct {
	Scheme     string
	Kind       OperationKind
	Strategy   strategy.Kind
	Factory    strategy.UserFactory
	Completion CompletionCallback
}

// RequestContextGetter gives access to a session's network state. JobFactory
// and Delegate must only be used on the I/O runner.
type RequestContextGetter interface {
	IORunner() *taskrunner.Runner
	JobFactory() *jobfactory.JobFactory
	Delegate() *strategy.Delegate
}

func (op *PendingOperation) handler(getter RequestContextGetter) http.RoundTripper {
	return strategy.NewHandler(op.Strategy, op.Factory, getter.Delegate())
}
