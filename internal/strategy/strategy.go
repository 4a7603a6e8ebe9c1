// Package strategy implements the request jobs bound to custom protocol
// handlers. Each Kind interprets the user factory's reply differently.
package strategy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/imposter-project/imposter-protocol/internal/metrics"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Kind selects how a handler's reply is turned into a response
type Kind int

const (
	String Kind = iota
	Buffer
	File
	Http
	Stream
)

// Kinds lists every strategy in declaration order
var Kinds = []Kind{String, Buffer, File, Http, Stream}

var kindNames = map[Kind]string{
	String: "string",
	Buffer: "buffer",
	File:   "file",
	Http:   "http",
	Stream: "stream",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a strategy name such as "buffer" to a Kind
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown protocol type: %s", name)
}

// ErrFailed is returned when a handler replies with an error or an unusable value
var ErrFailed = errors.New("protocol handler failed")

// Request is what a user factory sees of an incoming request
type Request struct {
	ID         string
	Method     string
	URL        string
	Referrer   string
	Headers    map[string]string
	UploadData []UploadData
}

// UploadData is one element of a request body
type UploadData struct {
	Bytes []byte
}

// Done delivers a user factory's reply. Only the first call is used.
type Done func(reply any)

// UserFactory produces the reply for a request, calling done exactly once
type UserFactory func(req *Request, done Done)

// Delegate carries what jobs need from their session
type Delegate struct {
	// Upstream performs fetches for Http replies, bypassing custom handlers
	Upstream http.RoundTripper

	// SessionUpstream resolves the upstream of a named session, if set
	SessionUpstream func(name string) (http.RoundTripper, bool)
}

func (d *Delegate) upstream(session string) http.RoundTripper {
	if d == nil {
		return http.DefaultTransport
	}
	if session != "" && d.SessionUpstream != nil {
		if rt, ok := d.SessionUpstream(session); ok {
			return rt
		}
		logger.Warnf("unknown session %s for http reply - using default upstream", session)
	}
	if d.Upstream == nil {
		return http.DefaultTransport
	}
	return d.Upstream
}

type handler struct {
	kind     Kind
	factory  UserFactory
	delegate *Delegate
}

// NewHandler binds a strategy and a user factory into a round tripper
func NewHandler(kind Kind, factory UserFactory, delegate *Delegate) http.RoundTripper {
	return &handler{kind: kind, factory: factory, delegate: delegate}
}

func (h *handler) RoundTrip(r *http.Request) (*http.Response, error) {
	req, err := newRequest(r)
	if err != nil {
		return nil, err
	}
	logger.Debugf("starting %s job %s - method:%s, url:%s", h.kind, req.ID, req.Method, req.URL)

	var (
		replies   = make(chan any, 1)
		once      sync.Once
		mu        sync.Mutex
		cancelled bool
	)
	h.factory(req, func(reply any) {
		once.Do(func() {
			mu.Lock()
			defer mu.Unlock()
			if cancelled {
				discardReply(reply)
				return
			}
			replies <- reply
		})
	})

	var reply any
	select {
	case reply = <-replies:
	case <-r.Context().Done():
		mu.Lock()
		cancelled = true
		select {
		case pending := <-replies:
			discardReply(pending)
		default:
		}
		mu.Unlock()
		logger.Debugf("%s job %s cancelled: %v", h.kind, req.ID, r.Context().Err())
		metrics.RecordJob(h.kind.String(), "cancelled")
		return nil, r.Context().Err()
	}

	resp, err := h.respond(r, reply)
	if err != nil {
		logger.Warnf("%s job %s failed - url:%s: %v", h.kind, req.ID, req.URL, err)
		metrics.RecordJob(h.kind.String(), "failed")
		return nil, err
	}
	logger.Debugf("finished %s job %s - status:%d", h.kind, req.ID, resp.StatusCode)
	metrics.RecordJob(h.kind.String(), "ok")
	return resp, nil
}

func (h *handler) respond(r *http.Request, reply any) (*http.Response, error) {
	if err := replyError(reply); err != nil {
		return nil, err
	}
	switch h.kind {
	case String:
		return stringResponse(r, reply)
	case Buffer:
		return bufferResponse(r, reply)
	case File:
		return fileResponse(r, reply)
	case Http:
		return httpResponse(r, reply, h.delegate)
	case Stream:
		return streamResponse(r, reply)
	default:
		return nil, fmt.Errorf("%w: unsupported strategy %s", ErrFailed, h.kind)
	}
}

// discardReply releases a reply that no job will consume
func discardReply(reply any) {
	var data any = reply
	switch v := reply.(type) {
	case StreamReply:
		data = v.Data
	case *StreamReply:
		data = v.Data
	}
	if c, ok := data.(io.Closer); ok {
		_ = c.Close()
	}
}

func replyError(reply any) error {
	switch v := reply.(type) {
	case nil:
		return fmt.Errorf("%w: empty reply", ErrFailed)
	case ErrorReply:
		return fmt.Errorf("%w: handler returned error code %d", ErrFailed, v.Code)
	case *ErrorReply:
		return fmt.Errorf("%w: handler returned error code %d", ErrFailed, v.Code)
	case error:
		return fmt.Errorf("%w: %w", ErrFailed, v)
	}
	return nil
}

func newRequest(r *http.Request) (*Request, error) {
	req := &Request{
		ID:       uuid.NewString(),
		Method:   r.Method,
		URL:      r.URL.String(),
		Referrer: r.Referer(),
		Headers:  make(map[string]string, len(r.Header)),
	}
	for name := range r.Header {
		req.Headers[name] = r.Header.Get(name)
	}
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(data))
		if len(data) > 0 {
			req.UploadData = []UploadData{{Bytes: data}}
		}
	}
	return req, nil
}

func newResponse(r *http.Request, statusCode int, headers map[string]string, body io.ReadCloser, length int64) *http.Response {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	resp := &http.Response{
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          body,
		ContentLength: length,
		Request:       r,
	}
	for key, value := range headers {
		resp.Header.Set(key, value)
	}
	return resp
}
