package strategy

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Network error codes used in ErrorReply
const (
	NetErrorFailed  = -2
	NetErrorAborted = -3
)

// ErrorReply fails the job with a network error code
type ErrorReply struct {
	Code int
}

// StringReply is the reply of a String handler; a bare string is also accepted
type StringReply struct {
	MimeType   string
	Charset    string
	Data       string
	StatusCode int
	Headers    map[string]string
}

// BufferReply is the reply of a Buffer handler; a bare []byte is also accepted
type BufferReply struct {
	MimeType   string
	Data       []byte
	StatusCode int
	Headers    map[string]string
}

// FileReply is the reply of a File handler; a bare path is also accepted
type FileReply struct {
	Path       string
	StatusCode int
	Headers    map[string]string
}

// HttpReply describes the upstream request made by an Http handler
type HttpReply struct {
	URL        string
	Method     string
	Session    string
	Headers    map[string]string
	UploadData *UploadData
}

// StreamReply is the reply of a Stream handler; a bare io.Reader is also accepted
type StreamReply struct {
	StatusCode int
	Headers    map[string]string
	Data       io.Reader
}

const (
	defaultStringMimeType = "text/plain"
	defaultCharset        = "utf-8"
	defaultBinaryMimeType = "application/octet-stream"
)

func unexpected(kind Kind, reply any) error {
	return fmt.Errorf("%w: unexpected %s reply of type %T", ErrFailed, kind, reply)
}

func stringResponse(r *http.Request, reply any) (*http.Response, error) {
	var sr StringReply
	switch v := reply.(type) {
	case string:
		sr.Data = v
	case StringReply:
		sr = v
	case *StringReply:
		sr = *v
	default:
		return nil, unexpected(String, reply)
	}
	mimeType := sr.MimeType
	if mimeType == "" {
		mimeType = defaultStringMimeType
	}
	charset := sr.Charset
	if charset == "" {
		charset = defaultCharset
	}
	resp := newResponse(r, sr.StatusCode, sr.Headers, io.NopCloser(strings.NewReader(sr.Data)), int64(len(sr.Data)))
	setContentType(resp, mimeType+"; charset="+charset)
	return resp, nil
}

func bufferResponse(r *http.Request, reply any) (*http.Response, error) {
	var br BufferReply
	switch v := reply.(type) {
	case []byte:
		br.Data = v
	case BufferReply:
		br = v
	case *BufferReply:
		br = *v
	default:
		return nil, unexpected(Buffer, reply)
	}
	mimeType := br.MimeType
	if mimeType == "" {
		mimeType = defaultBinaryMimeType
	}
	resp := newResponse(r, br.StatusCode, br.Headers, io.NopCloser(bytes.NewReader(br.Data)), int64(len(br.Data)))
	setContentType(resp, mimeType)
	return resp, nil
}

func fileResponse(r *http.Request, reply any) (*http.Response, error) {
	var fr FileReply
	switch v := reply.(type) {
	case string:
		fr.Path = v
	case FileReply:
		fr = v
	case *FileReply:
		fr = *v
	default:
		return nil, unexpected(File, reply)
	}
	if fr.Path == "" {
		return nil, fmt.Errorf("%w: file reply has no path", ErrFailed)
	}

	f, err := os.Open(fr.Path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Errorf("response file not found: %s", fr.Path)
			return newResponse(r, http.StatusNotFound, fr.Headers, http.NoBody, 0), nil
		}
		return nil, fmt.Errorf("%w: error opening response file %s: %w", ErrFailed, fr.Path, err)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		logger.Errorf("response file is not a regular file: %s", fr.Path)
		return newResponse(r, http.StatusNotFound, fr.Headers, http.NoBody, 0), nil
	}

	resp := newResponse(r, fr.StatusCode, fr.Headers, f, info.Size())
	ext := filepath.Ext(fr.Path)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = defaultBinaryMimeType
	}
	if setContentType(resp, contentType) {
		logger.Debugf("inferred Content-Type %s from file extension %s", contentType, ext)
	}
	return resp, nil
}

func httpResponse(r *http.Request, reply any, delegate *Delegate) (*http.Response, error) {
	var hr HttpReply
	switch v := reply.(type) {
	case HttpReply:
		hr = v
	case *HttpReply:
		hr = *v
	default:
		return nil, unexpected(Http, reply)
	}
	if hr.URL == "" {
		return nil, fmt.Errorf("%w: http reply has no url", ErrFailed)
	}
	method := hr.Method
	if method == "" {
		method = r.Method
	}
	var body io.Reader
	if hr.UploadData != nil {
		body = bytes.NewReader(hr.UploadData.Bytes)
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), strings.ToUpper(method), hr.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid upstream request: %w", ErrFailed, err)
	}
	for key, value := range hr.Headers {
		upstreamReq.Header.Set(key, value)
	}

	logger.Debugf("fetching upstream %s %s", upstreamReq.Method, hr.URL)
	resp, err := delegate.upstream(hr.Session).RoundTrip(upstreamReq)
	if err != nil {
		return nil, fmt.Errorf("%w: upstream fetch of %s: %w", ErrFailed, hr.URL, err)
	}
	resp.Request = r
	return resp, nil
}

func streamResponse(r *http.Request, reply any) (*http.Response, error) {
	var sr StreamReply
	switch v := reply.(type) {
	case StreamReply:
		sr = v
	case *StreamReply:
		sr = *v
	case io.Reader:
		sr.Data = v
	default:
		return nil, unexpected(Stream, reply)
	}
	if sr.Data == nil {
		return nil, fmt.Errorf("%w: stream reply has no data", ErrFailed)
	}
	body, ok := sr.Data.(io.ReadCloser)
	if !ok {
		body = io.NopCloser(sr.Data)
	}
	return newResponse(r, sr.StatusCode, sr.Headers, body, -1), nil
}

// setContentType sets Content-Type unless the reply's headers already did
func setContentType(resp *http.Response, contentType string) bool {
	if resp.Header.Get("Content-Type") != "" {
		return false
	}
	resp.Header.Set("Content-Type", contentType)
	return true
}
