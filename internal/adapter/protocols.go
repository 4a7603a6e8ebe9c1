package adapter

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/imposter-project/imposter-protocol/internal/config"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// installProtocols registers or intercepts the handlers declared in config
// and waits for every operation to complete.
func (i *Imposter) installProtocols() error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, cfg := range i.Configs {
		for _, p := range cfg.Protocols {
			kind, err := strategy.ParseKind(p.Type)
			if err != nil {
				return err
			}
			factory, err := staticFactory(&cfg, kind, p.Response)
			if err != nil {
				return fmt.Errorf("protocol %s: %w", p.Scheme, err)
			}

			op := "register"
			if p.Intercept {
				op = "intercept"
			}
			done := func(err error) {
				defer wg.Done()
				if err != nil {
					logger.Errorf("failed to %s %s protocol %s on session %q: %v", op, kind, p.Scheme, p.Session, err)
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s %s: %w", op, p.Scheme, err))
					mu.Unlock()
					return
				}
				logger.Infof("%sed %s protocol %s on session %q", op, kind, p.Scheme, p.Session)
			}

			wg.Add(1)
			partition, intercept, scheme := p.Session, p.Intercept, p.Scheme
			posted := i.Control.PostTask(func() {
				ctrl := i.Sessions.Protocol(partition)
				if intercept {
					ctrl.Intercept(kind, scheme, factory, done)
				} else {
					ctrl.Register(kind, scheme, factory, done)
				}
			})
			if !posted {
				wg.Done()
				return errors.New("control runner is stopped")
			}
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}

// staticFactory builds a handler that answers every request with the
// configured response. File-backed content is read per request.
func staticFactory(cfg *config.Config, kind strategy.Kind, resp config.Response) (strategy.UserFactory, error) {
	var file string
	if resp.File != "" {
		var err error
		if file, err = cfg.ResolvePath(resp.File); err != nil {
			return nil, fmt.Errorf("failed to validate response file path: %w", err)
		}
	}

	content := func() ([]byte, error) {
		if file == "" {
			return []byte(resp.Content), nil
		}
		return os.ReadFile(file)
	}

	switch kind {
	case strategy.String:
		return func(_ *strategy.Request, done strategy.Done) {
			data, err := content()
			if err != nil {
				logger.Errorf("error reading response file %s: %v", file, err)
				done(strategy.ErrorReply{Code: strategy.NetErrorFailed})
				return
			}
			done(strategy.StringReply{
				MimeType:   resp.MimeType,
				Charset:    resp.Charset,
				Data:       string(data),
				StatusCode: resp.StatusCode,
				Headers:    resp.Headers,
			})
		}, nil

	case strategy.Buffer:
		return func(_ *strategy.Request, done strategy.Done) {
			data, err := content()
			if err != nil {
				logger.Errorf("error reading response file %s: %v", file, err)
				done(strategy.ErrorReply{Code: strategy.NetErrorFailed})
				return
			}
			done(strategy.BufferReply{
				MimeType:   resp.MimeType,
				Data:       data,
				StatusCode: resp.StatusCode,
				Headers:    resp.Headers,
			})
		}, nil

	case strategy.File:
		if file == "" {
			return nil, errors.New("file protocol requires response.file")
		}
		return func(_ *strategy.Request, done strategy.Done) {
			done(strategy.FileReply{Path: file, StatusCode: resp.StatusCode, Headers: resp.Headers})
		}, nil

	case strategy.Http:
		if resp.URL == "" {
			return nil, errors.New("http protocol requires response.url")
		}
		return func(req *strategy.Request, done strategy.Done) {
			reply := strategy.HttpReply{URL: resp.URL, Method: resp.Method, Headers: resp.Headers}
			if len(req.UploadData) > 0 {
				reply.UploadData = &req.UploadData[0]
			}
			done(reply)
		}, nil

	case strategy.Stream:
		return func(_ *strategy.Request, done strategy.Done) {
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					logger.Errorf("error opening response file %s: %v", file, err)
					done(strategy.ErrorReply{Code: strategy.NetErrorFailed})
					return
				}
				done(strategy.StreamReply{StatusCode: resp.StatusCode, Headers: resp.Headers, Data: f})
				return
			}
			done(strategy.StreamReply{StatusCode: resp.StatusCode, Headers: resp.Headers, Data: strings.NewReader(resp.Content)})
		}, nil
	}
	return nil, fmt.Errorf("unsupported protocol type %s", kind)
}
