package protocol

// Isolate is the exclusive execution right of a scripting runtime
type Isolate interface {
	Lock()
	Unlock()
}

// ReportCompletion delivers status to cb while holding the isolate. A nil
// callback discards the result.
func ReportCompletion(isolate Isolate, cb CompletionCallback, status ProtocolError) {
	if cb == nil {
		return
	}
	if isolate != nil {
		isolate.Lock()
		defer isolate.Unlock()
	}
	cb(status.Err())
}
