package jobfactory

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// ErrUnavailable is returned when the factory has been released
var ErrUnavailable = errors.New("job factory is unavailable")

// Transport sends requests through a job factory. The handler is resolved on
// the I/O runner and the job itself runs on the calling goroutine.
type Transport struct {
	Runner  *taskrunner.Runner
	Factory func() *JobFactory
	Tables  *urltable.Tables
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tables := t.Tables
	if tables == nil {
		tables = urltable.Default()
	}
	u, err := tables.Canonicalize(req.URL)
	if err != nil {
		return nil, err
	}

	var handler http.RoundTripper
	var resolveErr error
	ran := t.Runner.RunAndWait(func() {
		factory := t.Factory()
		if factory == nil {
			resolveErr = ErrUnavailable
			return
		}
		handler, resolveErr = factory.Resolve(u.Scheme)
	})
	if !ran {
		return nil, fmt.Errorf("%s runner stopped: %w", t.Runner.Name(), ErrUnavailable)
	}
	if resolveErr != nil {
		return nil, resolveErr
	}

	out := req.Clone(req.Context())
	out.URL = u
	out.Host = u.Host
	logger.Tracef("dispatching %s %s", out.Method, u)
	return handler.RoundTrip(out)
}
