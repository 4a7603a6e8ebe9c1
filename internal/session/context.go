package session

import (
	"net/http"
	"sync"

	"github.com/imposter-project/imposter-protocol/internal/jobfactory"
	"github.com/imposter-project/imposter-protocol/internal/protocol"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/internal/taskrunner"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Context is one browsing context
type Context struct {
	partition string
	getter    *requestContextGetter
	upstream  http.RoundTripper
	manager   *Manager

	mu         sync.Mutex
	controller *protocol.Controller
	released   chan struct{}
	destroyed  bool
}

func (c *Context) Partition() string {
	return c.partition
}

// RequestContextGetter returns the handle operations use to reach the job factory
func (c *Context) RequestContextGetter() protocol.RequestContextGetter {
	return c.getter
}

// Protocol returns the session's controller, creating it on first use
func (c *Context) Protocol() *protocol.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		opts := c.manager.opts
		c.controller = protocol.NewController(c.getter, opts.Control, opts.Isolate)
	}
	return c.controller
}

// Client returns an HTTP client whose requests are served by this session's
// job factory.
func (c *Context) Client() *http.Client {
	return &http.Client{
		Transport: &jobfactory.Transport{
			Runner:  c.getter.io,
			Factory: c.getter.JobFactory,
			Tables:  c.manager.opts.Tables,
		},
	}
}

// IsCustomized reports whether a registered or intercepting handler of this
// session services scheme.
func (c *Context) IsCustomized(scheme string) bool {
	var customized bool
	c.getter.io.RunAndWait(func() {
		if factory := c.getter.JobFactory(); factory != nil {
			customized = factory.IsCustomized(scheme)
		}
	})
	return customized
}

// Snapshot lists the schemes handled by this session
func (c *Context) Snapshot() jobfactory.Snapshot {
	var snapshot jobfactory.Snapshot
	c.getter.io.RunAndWait(func() {
		if factory := c.getter.JobFactory(); factory != nil {
			snapshot = factory.Snapshot()
		}
	})
	return snapshot
}

// Destroy destroys the controller and releases the job factory on the I/O
// runner, replying on the control runner. Operations already posted to the
// I/O runner still run against the getter but find no factory.
func (c *Context) Destroy() {
	c.mu.Lock()
	if c.controller != nil {
		c.controller.Destroy()
		c.controller = nil
	}
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	release := func() {
		c.getter.factory = nil
	}
	released := func() {
		logger.Debugf("released job factory of partition %q", c.partition)
		close(c.released)
	}
	if control := c.manager.opts.Control; control != nil {
		c.getter.io.PostTaskAndReply(release, released, control)
	} else {
		c.getter.io.PostTask(func() {
			release()
			released()
		})
	}
	logger.Debugf("destroyed session for partition %q", c.partition)
}

// Released is closed once the job factory has been released after Destroy
func (c *Context) Released() <-chan struct{} {
	return c.released
}

// requestContextGetter is shared by the session and its in-flight
// operations; factory is only touched on the I/O runner.
type requestContextGetter struct {
	io       *taskrunner.Runner
	factory  *jobfactory.JobFactory
	delegate *strategy.Delegate
}

func (g *requestContextGetter) IORunner() *taskrunner.Runner {
	return g.io
}

func (g *requestContextGetter) JobFactory() *jobfactory.JobFactory {
	return g.factory
}

func (g *requestContextGetter) Delegate() *strategy.Delegate {
	return g.delegate
}
