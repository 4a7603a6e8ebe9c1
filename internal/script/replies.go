package script

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
	"github.com/imposter-project/imposter-protocol/internal/jsruntime"
	"github.com/imposter-project/imposter-protocol/internal/strategy"
)

// requestObject is the request passed to script protocol handlers
func requestObject(vm *goja.Runtime, req *strategy.Request) map[string]interface{} {
	uploadData := make([]interface{}, 0, len(req.UploadData))
	for _, data := range req.UploadData {
		uploadData = append(uploadData, map[string]interface{}{
			"bytes": vm.NewArrayBuffer(append([]byte(nil), data.Bytes...)),
		})
	}
	return map[string]interface{}{
		"id":         req.ID,
		"method":     req.Method,
		"url":        req.URL,
		"referrer":   req.Referrer,
		"headers":    req.Headers,
		"uploadData": uploadData,
	}
}

// convertReply turns a script handler's reply into the strategy's reply type.
// It runs on the control runner, so stream data is read eagerly.
func convertReply(kind strategy.Kind, v goja.Value) (any, error) {
	if jsruntime.IsMissing(v) {
		return nil, nil
	}
	if code, ok := v.Export().(int64); ok {
		return strategy.ErrorReply{Code: int(code)}, nil
	}
	if errVal := jsruntime.Property(v, "error"); errVal != nil {
		return strategy.ErrorReply{Code: int(errVal.ToInteger())}, nil
	}

	switch kind {
	case strategy.String:
		if !jsruntime.IsObject(v) {
			return v.String(), nil
		}
		return &strategy.StringReply{
			MimeType:   jsruntime.StringProperty(v, "mimeType"),
			Charset:    jsruntime.StringProperty(v, "charset"),
			Data:       jsruntime.StringProperty(v, "data"),
			StatusCode: jsruntime.IntProperty(v, "statusCode"),
			Headers:    jsruntime.StringMap(jsruntime.Property(v, "headers")),
		}, nil

	case strategy.Buffer:
		if data, ok := toBytes(v); ok {
			return data, nil
		}
		data, ok := toBytes(jsruntime.Property(v, "data"))
		if !ok {
			return nil, fmt.Errorf("buffer reply has no data")
		}
		return &strategy.BufferReply{
			MimeType:   jsruntime.StringProperty(v, "mimeType"),
			Data:       data,
			StatusCode: jsruntime.IntProperty(v, "statusCode"),
			Headers:    jsruntime.StringMap(jsruntime.Property(v, "headers")),
		}, nil

	case strategy.File:
		if !jsruntime.IsObject(v) {
			return v.String(), nil
		}
		return &strategy.FileReply{
			Path:       jsruntime.StringProperty(v, "path"),
			StatusCode: jsruntime.IntProperty(v, "statusCode"),
			Headers:    jsruntime.StringMap(jsruntime.Property(v, "headers")),
		}, nil

	case strategy.Http:
		reply := &strategy.HttpReply{
			URL:     jsruntime.StringProperty(v, "url"),
			Method:  jsruntime.StringProperty(v, "method"),
			Session: jsruntime.StringProperty(v, "session"),
			Headers: jsruntime.StringMap(jsruntime.Property(v, "headers")),
		}
		if upload := jsruntime.Property(v, "uploadData"); upload != nil {
			data, ok := toBytes(jsruntime.Property(upload, "data"))
			if !ok {
				return nil, fmt.Errorf("http reply uploadData has no data")
			}
			reply.UploadData = &strategy.UploadData{Bytes: data}
		}
		return reply, nil

	case strategy.Stream:
		if !jsruntime.IsObject(v) || jsruntime.Property(v, "data") == nil {
			data, err := drain(v)
			if err != nil {
				return nil, err
			}
			return data, nil
		}
		data, err := drain(jsruntime.Property(v, "data"))
		if err != nil {
			return nil, err
		}
		return &strategy.StreamReply{
			StatusCode: jsruntime.IntProperty(v, "statusCode"),
			Headers:    jsruntime.StringMap(jsruntime.Property(v, "headers")),
			Data:       data,
		}, nil
	}
	return nil, fmt.Errorf("unsupported strategy %s", kind)
}

// toBytes accepts binary values and strings
func toBytes(v goja.Value) ([]byte, bool) {
	if data, ok := jsruntime.Bytes(v); ok {
		return data, true
	}
	if v != nil && goja.IsString(v) {
		return []byte(v.String()), true
	}
	return nil, false
}

// drain reads a stream source completely. Accepted sources are strings,
// binary values, arrays of chunks and objects with a read() method returning
// a chunk or null at the end.
func drain(v goja.Value) (io.Reader, error) {
	if jsruntime.IsMissing(v) {
		return nil, fmt.Errorf("stream reply has no data")
	}
	if data, ok := toBytes(v); ok {
		return bytes.NewReader(data), nil
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return strings.NewReader(v.String()), nil
	}
	if read, ok := goja.AssertFunction(obj.Get("read")); ok {
		var buf bytes.Buffer
		for {
			chunk, err := read(obj)
			if err != nil {
				return nil, fmt.Errorf("stream read failed: %w", err)
			}
			if jsruntime.IsMissing(chunk) {
				break
			}
			data, ok := toBytes(chunk)
			if !ok {
				return nil, fmt.Errorf("unsupported stream chunk: %v", chunk)
			}
			buf.Write(data)
		}
		return &buf, nil
	}
	if obj.ClassName() == "Array" {
		var buf bytes.Buffer
		length := int(obj.Get("length").ToInteger())
		for i := 0; i < length; i++ {
			data, ok := toBytes(obj.Get(fmt.Sprint(i)))
			if !ok {
				return nil, fmt.Errorf("unsupported stream chunk at index %d", i)
			}
			buf.Write(data)
		}
		return &buf, nil
	}
	return nil, fmt.Errorf("unsupported stream data")
}
