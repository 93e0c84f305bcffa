package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lensbridge/camlink/protocol"
)

// callDecoded performs a Call and decodes its result payload into target.
// A nil target discards the result.
func (c *clientImpl) callDecoded(ctx context.Context, method string, params interface{}, target interface{}, opts ...CallOption) error {
	raw, err := c.Call(ctx, method, params, opts...)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := protocol.DecodePayload(raw, target); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// Authenticate exchanges the token with the server. On success the token
// becomes the stored credential for subsequent authenticated calls; on an
// auth rejection any previously stored credential is cleared.
func (c *clientImpl) Authenticate(ctx context.Context, token string) (*protocol.AuthenticateResult, error) {
	c.auth.SetCredential(token)

	params := protocol.AuthenticateParams{
		Token:    token,
		ClientID: c.instanceID,
	}
	var result protocol.AuthenticateResult
	if err := c.callDecoded(ctx, protocol.MethodAuthenticate, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) Ping(ctx context.Context) error {
	return c.callDecoded(ctx, protocol.MethodPing, nil, nil)
}

func (c *clientImpl) ListDevices(ctx context.Context) ([]protocol.Device, error) {
	var result protocol.DeviceList
	if err := c.callDecoded(ctx, protocol.MethodListDevices, nil, &result); err != nil {
		return nil, err
	}
	return result.Devices, nil
}

func (c *clientImpl) GetDeviceStatus(ctx context.Context, device string) (*protocol.DeviceStatus, error) {
	params := protocol.DeviceStatusParams{Device: device}
	var result protocol.DeviceStatus
	if err := c.callDecoded(ctx, protocol.MethodGetDeviceStatus, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartRecording begins recording on a camera. Requires authentication.
func (c *clientImpl) StartRecording(ctx context.Context, params protocol.StartRecordingParams) (*protocol.RecordingAck, error) {
	var result protocol.RecordingAck
	if err := c.callDecoded(ctx, protocol.MethodStartRecording, params, &result, RequireAuth()); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopRecording stops an active recording. Requires authentication.
func (c *clientImpl) StopRecording(ctx context.Context, device string) (*protocol.RecordingAck, error) {
	params := protocol.StopRecordingParams{Device: device}
	var result protocol.RecordingAck
	if err := c.callDecoded(ctx, protocol.MethodStopRecording, params, &result, RequireAuth()); err != nil {
		return nil, err
	}
	return &result, nil
}

// TakeSnapshot captures a still image. A generated filename is used when
// the caller leaves it empty. Requires authentication.
func (c *clientImpl) TakeSnapshot(ctx context.Context, params protocol.SnapshotParams) (*protocol.SnapshotResult, error) {
	if params.Filename == "" {
		params.Filename = fmt.Sprintf("snapshot-%s-%s.jpg",
			params.Device, uuid.New().String()[:8])
	}
	var result protocol.SnapshotResult
	if err := c.callDecoded(ctx, protocol.MethodTakeSnapshot, params, &result, RequireAuth()); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) ListRecordings(ctx context.Context, limit, offset int) (*protocol.FileList, error) {
	params := protocol.ListFilesParams{Limit: limit, Offset: offset}
	var result protocol.FileList
	if err := c.callDecoded(ctx, protocol.MethodListRecordings, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) ListSnapshots(ctx context.Context, limit, offset int) (*protocol.FileList, error) {
	params := protocol.ListFilesParams{Limit: limit, Offset: offset}
	var result protocol.FileList
	if err := c.callDecoded(ctx, protocol.MethodListSnapshots, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) GetFileInfo(ctx context.Context, filename string) (*protocol.FileInfo, error) {
	params := protocol.FileParams{Filename: filename}
	var result protocol.FileInfo
	if err := c.callDecoded(ctx, protocol.MethodGetFileInfo, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteRecording removes a stored recording. Requires authentication.
func (c *clientImpl) DeleteRecording(ctx context.Context, filename string) error {
	params := protocol.FileParams{Filename: filename}
	return c.callDecoded(ctx, protocol.MethodDeleteRecording, params, nil, RequireAuth())
}

// DeleteSnapshot removes a stored snapshot. Requires authentication.
func (c *clientImpl) DeleteSnapshot(ctx context.Context, filename string) error {
	params := protocol.FileParams{Filename: filename}
	return c.callDecoded(ctx, protocol.MethodDeleteSnapshot, params, nil, RequireAuth())
}

func (c *clientImpl) GetServerInfo(ctx context.Context) (*protocol.ServerInfo, error) {
	var result protocol.ServerInfo
	if err := c.callDecoded(ctx, protocol.MethodGetServerInfo, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) GetSystemStatus(ctx context.Context) (*protocol.SystemStatus, error) {
	var result protocol.SystemStatus
	if err := c.callDecoded(ctx, protocol.MethodGetSystemStatus, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) GetStorageInfo(ctx context.Context) (*protocol.StorageInfo, error) {
	var result protocol.StorageInfo
	if err := c.callDecoded(ctx, protocol.MethodGetStorageInfo, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) GetMetrics(ctx context.Context) (*protocol.Metrics, error) {
	var result protocol.Metrics
	if err := c.callDecoded(ctx, protocol.MethodGetMetrics, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *clientImpl) SubscribeEvents(ctx context.Context, topics []string) error {
	params := protocol.SubscribeEventsParams{Topics: topics}
	return c.callDecoded(ctx, protocol.MethodSubscribeEvents, params, nil)
}

func (c *clientImpl) UnsubscribeEvents(ctx context.Context, topics []string) error {
	params := protocol.SubscribeEventsParams{Topics: topics}
	return c.callDecoded(ctx, protocol.MethodUnsubscribeEvents, params, nil)
}
