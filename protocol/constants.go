package protocol

// --- Message Type (Method Name) Constants ---
// These align with the JSON-RPC 'method' field names the camera service accepts.

const (
	// Session
	MethodAuthenticate = "authenticate"
	MethodPing         = "ping"

	// Devices
	MethodListDevices     = "list-devices"
	MethodGetDeviceStatus = "get-device-status"

	// Recording control
	MethodStartRecording = "start-recording"
	MethodStopRecording  = "stop-recording"
	MethodTakeSnapshot   = "take-snapshot"

	// File management
	MethodListRecordings  = "list-recordings"
	MethodListSnapshots   = "list-snapshots"
	MethodGetFileInfo     = "get-file-info"
	MethodDeleteRecording = "delete-recording"
	MethodDeleteSnapshot  = "delete-snapshot"

	// Server state
	MethodGetServerInfo   = "get-server-info"
	MethodGetSystemStatus = "get-system-status"
	MethodGetStorageInfo  = "get-storage-info"
	MethodGetMetrics      = "get-metrics"

	// Event subscription
	MethodSubscribeEvents   = "subscribe-events"
	MethodUnsubscribeEvents = "unsubscribe-events"
)

// Push-event method names (server-initiated notifications).
const (
	EventCameraStatusChanged    = "camera-status-changed"
	EventRecordingStatusChanged = "recording-status-changed"
	EventStorageStatusChanged   = "storage-status-changed"
)

// ErrorCode identifies a JSON-RPC or application error condition.
type ErrorCode int

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     ErrorCode = -32700
	CodeInvalidRequest ErrorCode = -32600
	CodeMethodNotFound ErrorCode = -32601
	CodeInvalidParams  ErrorCode = -32602
	CodeInternalError  ErrorCode = -32603
)

// Application error codes reserved by the camera service.
const (
	CodeAuthenticationFailed    ErrorCode = -32001
	CodeInsufficientPermissions ErrorCode = -32002
	CodeRecordingConflict       ErrorCode = -32003
	CodeStorageLow              ErrorCode = -32004
	CodeStorageCritical         ErrorCode = -32005
)

// String returns a short name for well-known codes.
func (c ErrorCode) String() string {
	switch c {
	case CodeParseError:
		return "parse-error"
	case CodeInvalidRequest:
		return "invalid-request"
	case CodeMethodNotFound:
		return "method-not-found"
	case CodeInvalidParams:
		return "invalid-params"
	case CodeInternalError:
		return "internal-error"
	case CodeAuthenticationFailed:
		return "authentication-failed"
	case CodeInsufficientPermissions:
		return "insufficient-permissions"
	case CodeRecordingConflict:
		return "recording-conflict"
	case CodeStorageLow:
		return "storage-low"
	case CodeStorageCritical:
		return "storage-critical"
	}
	return "unknown"
}
