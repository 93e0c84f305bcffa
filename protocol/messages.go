package protocol

// --- Session ---

// AuthenticateParams carries the bearer credential for the authenticate call.
type AuthenticateParams struct {
	Token    string `json:"auth_token"`
	ClientID string `json:"client_id,omitempty"`
}

// AuthenticateResult describes the established session.
type AuthenticateResult struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// --- Devices ---

// Device describes one camera known to the service.
type Device struct {
	ID         string `json:"device"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
	FPS        int    `json:"fps,omitempty"`
	StreamURL  string `json:"stream_url,omitempty"`
}

// DeviceList is the result of list-devices.
type DeviceList struct {
	Devices []Device `json:"devices"`
	Total   int      `json:"total,omitempty"`
}

// DeviceStatusParams selects a device for get-device-status.
type DeviceStatusParams struct {
	Device string `json:"device"`
}

// DeviceStatus is the result of get-device-status.
type DeviceStatus struct {
	Device    string `json:"device"`
	Status    string `json:"status"`
	Recording bool   `json:"recording"`
	Uptime    int64  `json:"uptime,omitempty"`
}

// --- Recording control ---

// StartRecordingParams starts a recording on a device. Duration of zero means
// unbounded; Format is optional.
type StartRecordingParams struct {
	Device   string `json:"device"`
	Duration int    `json:"duration,omitempty"`
	Format   string `json:"format,omitempty"`
}

// StopRecordingParams stops an active recording.
type StopRecordingParams struct {
	Device string `json:"device"`
}

// RecordingAck acknowledges a start/stop-recording call.
type RecordingAck struct {
	Device    string `json:"device"`
	Filename  string `json:"filename,omitempty"`
	Status    string `json:"status"`
	StartedAt string `json:"start_time,omitempty"`
}

// SnapshotParams takes a still image from a device. Filename and Format are
// optional; the service picks defaults when they are empty.
type SnapshotParams struct {
	Device   string `json:"device"`
	Filename string `json:"filename,omitempty"`
	Format   string `json:"format,omitempty"`
}

// SnapshotResult describes a captured snapshot.
type SnapshotResult struct {
	Device      string `json:"device"`
	Filename    string `json:"filename"`
	TakenAt     string `json:"timestamp,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// --- File management ---

// ListFilesParams pages through recordings or snapshots.
type ListFilesParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// FileInfo describes one stored recording or snapshot. DownloadURL is opaque
// to the client; it is fetched over plain HTTP, not the RPC channel.
type FileInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"file_size"`
	CreatedAt   string `json:"created_time,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// FileList is the result of list-recordings and list-snapshots.
type FileList struct {
	Files  []FileInfo `json:"files"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// FileParams selects a single file by name.
type FileParams struct {
	Filename string `json:"filename"`
}

// --- Server state ---

// ServerInfo is the result of get-server-info.
type ServerInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
	MaxCameras   int      `json:"max_cameras,omitempty"`
}

// SystemStatus is the result of get-system-status.
type SystemStatus struct {
	Status     string            `json:"status"`
	Uptime     float64           `json:"uptime,omitempty"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// StorageInfo is the result of get-storage-info.
type StorageInfo struct {
	TotalBytes     int64   `json:"total_space"`
	UsedBytes      int64   `json:"used_space"`
	AvailableBytes int64   `json:"available_space"`
	UsedPercent    float64 `json:"used_percent,omitempty"`
	Threshold      string  `json:"threshold_status,omitempty"`
}

// Metrics is the result of get-metrics.
type Metrics struct {
	ActiveConnections int64   `json:"active_connections"`
	RequestsTotal     int64   `json:"requests_total"`
	ErrorsTotal       int64   `json:"errors_total,omitempty"`
	AvgResponseTimeMs float64 `json:"average_response_time,omitempty"`
}

// SubscribeEventsParams selects push-event topics.
type SubscribeEventsParams struct {
	Topics []string `json:"topics"`
}

// SubscribeEventsResult acknowledges a subscription change.
type SubscribeEventsResult struct {
	Subscribed []string `json:"subscribed"`
}

// --- Push-event payloads ---

// CameraStatusEvent is the payload of camera-status-changed.
type CameraStatusEvent struct {
	Device string `json:"device"`
	Status string `json:"status"`
}

// RecordingStatusEvent is the payload of recording-status-changed.
type RecordingStatusEvent struct {
	Device   string `json:"device"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
}

// StorageStatusEvent is the payload of storage-status-changed.
type StorageStatusEvent struct {
	Status      string  `json:"status"`
	UsedPercent float64 `json:"used_percent,omitempty"`
}
