package protocol

import "fmt"

// MalformedFrameError reports a frame that could not be classified as a
// response or notification envelope. Malformed frames are logged and dropped;
// they never terminate the connection.
type MalformedFrameError struct {
	Reason string
	Cause  error
}

func (e *MalformedFrameError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed frame: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

func (e *MalformedFrameError) Unwrap() error { return e.Cause }

// IsAuthErrorCode reports whether a code indicates an authentication failure
// that should invalidate the stored credential.
func IsAuthErrorCode(code ErrorCode) bool {
	return code == CodeAuthenticationFailed
}
