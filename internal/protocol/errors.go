package protocol

import "fmt"

// ProtocolError is the status of a protocol controller operation
type ProtocolError int

const (
	OK ProtocolError = iota
	Fail
	Registered
	NotRegistered
	Intercepted
	NotIntercepted
)

var protocolErrorMessages = map[ProtocolError]string{
	Fail:           "Failed to manipulate protocol factory",
	Registered:     "The scheme has been registered",
	NotRegistered:  "The scheme has not been registered",
	Intercepted:    "The scheme has been intercepted",
	NotIntercepted: "The scheme has not been intercepted",
}

var protocolErrorNames = map[ProtocolError]string{
	OK:             "ok",
	Fail:           "fail",
	Registered:     "registered",
	NotRegistered:  "not_registered",
	Intercepted:    "intercepted",
	NotIntercepted: "not_intercepted",
}

// Error returns the fixed user-facing message of the status
func (e ProtocolError) Error() string {
	if e == OK {
		return ""
	}
	if msg, ok := protocolErrorMessages[e]; ok {
		return msg
	}
	return protocolErrorMessages[Fail]
}

// String returns the status name used in logs and metrics
func (e ProtocolError) String() string {
	if name, ok := protocolErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ProtocolError(%d)", int(e))
}

// Err returns nil for OK and the status itself otherwise
func (e ProtocolError) Err() error {
	if e == OK {
		return nil
	}
	return e
}
