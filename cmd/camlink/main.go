// Command camlink is a diagnostic CLI for the camera service. It exercises
// the RPC client from the terminal: listing devices, driving recordings,
// downloading files, and tailing push events.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lensbridge/camlink/client"
	"github.com/lensbridge/camlink/files"
	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/protocol"
)

var (
	serverFlag  string
	tokenFlag   string
	timeoutFlag time.Duration
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "camlink",
	Short: "camlink - camera service diagnostic client",
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List cameras known to the server",
	RunE:  runDevices,
}

var statusCmd = &cobra.Command{
	Use:   "status <device>",
	Short: "Show live status for one camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure a round trip to the server",
	RunE:  runPing,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Control recordings",
}

var recordStartCmd = &cobra.Command{
	Use:   "start <device>",
	Short: "Start recording on a camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordStart,
}

var recordStopCmd = &cobra.Command{
	Use:   "stop <device>",
	Short: "Stop recording on a camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordStop,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <device>",
	Short: "Capture a still image from a camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List stored recordings",
	RunE:  runRecordings,
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored snapshots",
	RunE:  runSnapshots,
}

var downloadCmd = &cobra.Command{
	Use:   "download <filename>",
	Short: "Download a stored file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show server, system, and storage information",
	RunE:  runInfo,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to push events and print them until interrupted",
	RunE:  runWatch,
}

var (
	durationFlag int
	formatFlag   string
	outputFlag   string
	limitFlag    int
	offsetFlag   int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "ws://localhost:8080/ws", "server websocket URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", os.Getenv("CAMLINK_TOKEN"), "bearer token (defaults to $CAMLINK_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 15*time.Second, "per-call timeout")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log client internals to stderr")

	recordStartCmd.Flags().IntVar(&durationFlag, "duration", 0, "recording duration in seconds (0 = until stopped)")
	recordStartCmd.Flags().StringVar(&formatFlag, "format", "", "container format")
	downloadCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output path (defaults to the filename)")

	for _, cmd := range []*cobra.Command{recordingsCmd, snapshotsCmd} {
		cmd.Flags().IntVar(&limitFlag, "limit", 50, "maximum entries to return")
		cmd.Flags().IntVar(&offsetFlag, "offset", 0, "entries to skip")
	}

	recordCmd.AddCommand(recordStartCmd, recordStopCmd)
	rootCmd.AddCommand(devicesCmd, statusCmd, pingCmd, recordCmd, snapshotCmd,
		recordingsCmd, snapshotsCmd, downloadCmd, infoCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect builds a client, connects it, and authenticates when a token is
// present. Callers must Close the returned client.
func connect(ctx context.Context) (client.Client, error) {
	opts := []client.Option{
		client.WithRequestTimeout(timeoutFlag),
	}
	if verboseFlag {
		opts = append(opts, client.WithLogger(logx.NewLogger("[camlink] ")))
	}

	c, err := client.New(serverFlag, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	if tokenFlag != "" {
		if _, err := c.Authenticate(ctx, tokenFlag); err != nil {
			c.Close()
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}
	return c, nil
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	devices, err := c.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No cameras found.")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%-20s %-10s %s\n", d.ID, d.Status, d.Name)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	status, err := c.GetDeviceStatus(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(status)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	start := time.Now()
	if err := c.Ping(ctx); err != nil {
		return err
	}
	fmt.Printf("pong in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runRecordStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	ack, err := c.StartRecording(ctx, protocol.StartRecordingParams{
		Device:   args[0],
		Duration: durationFlag,
		Format:   formatFlag,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recording started on %s: %s\n", args[0], ack.Filename)
	return nil
}

func runRecordStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	ack, err := c.StopRecording(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("recording stopped on %s: %s\n", args[0], ack.Filename)
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.TakeSnapshot(ctx, protocol.SnapshotParams{Device: args[0]})
	if err != nil {
		return err
	}
	fmt.Printf("snapshot captured: %s\n", result.Filename)
	if result.DownloadURL != "" {
		fmt.Printf("download: %s\n", result.DownloadURL)
	}
	return nil
}

func runRecordings(cmd *cobra.Command, args []string) error {
	return runFileList(cmd, func(ctx context.Context, c client.Client) (*protocol.FileList, error) {
		return c.ListRecordings(ctx, limitFlag, offsetFlag)
	})
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	return runFileList(cmd, func(ctx context.Context, c client.Client) (*protocol.FileList, error) {
		return c.ListSnapshots(ctx, limitFlag, offsetFlag)
	})
}

func runFileList(cmd *cobra.Command, list func(context.Context, client.Client) (*protocol.FileList, error)) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	page, err := list(ctx, c)
	if err != nil {
		return err
	}
	if len(page.Files) == 0 {
		fmt.Println("No files.")
		return nil
	}
	for _, f := range page.Files {
		fmt.Printf("%-40s %12d  %s\n", f.Filename, f.Size, f.CreatedAt)
	}
	fmt.Printf("%d of %d\n", len(page.Files), page.Total)
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.GetFileInfo(ctx, args[0])
	if err != nil {
		return err
	}
	if info.DownloadURL == "" {
		return fmt.Errorf("server returned no download URL for %s", args[0])
	}

	dest := outputFlag
	if dest == "" {
		dest = filepath.Base(info.Filename)
	}

	fc := files.NewClient(httpOrigin(serverFlag), files.WithTokenSource(func() (string, bool) {
		return tokenFlag, tokenFlag != ""
	}))
	written, err := fc.SaveTo(ctx, info.DownloadURL, dest)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%d bytes)\n", dest, written)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	server, err := c.GetServerInfo(ctx)
	if err != nil {
		return err
	}
	system, err := c.GetSystemStatus(ctx)
	if err != nil {
		return err
	}
	storage, err := c.GetStorageInfo(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Server:  %s %s\n", server.Name, server.Version)
	fmt.Printf("System:  %s (uptime %.0fs)\n", system.Status, system.Uptime)
	fmt.Printf("Storage: %d/%d bytes used (%.1f%%)\n", storage.UsedBytes, storage.TotalBytes, storage.UsedPercent)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, event := range []string{
		protocol.EventCameraStatusChanged,
		protocol.EventRecordingStatusChanged,
		protocol.EventStorageStatusChanged,
	} {
		event := event
		c.OnNotification(event, func(n *protocol.Notification) error {
			data, err := json.Marshal(n.Params)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %-26s %s\n", time.Now().Format(time.RFC3339), n.Method, data)
			return nil
		})
	}

	topics := []string{
		protocol.EventCameraStatusChanged,
		protocol.EventRecordingStatusChanged,
		protocol.EventStorageStatusChanged,
	}
	if err := c.SubscribeEvents(ctx, topics); err != nil {
		return err
	}
	fmt.Println("watching events (ctrl-c to stop)")

	<-ctx.Done()
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// httpOrigin maps a ws(s) URL to its http(s) origin for file downloads.
func httpOrigin(wsURL string) string {
	switch {
	case len(wsURL) > 6 && wsURL[:6] == "wss://":
		return "https://" + wsURL[6:]
	case len(wsURL) > 5 && wsURL[:5] == "ws://":
		return "http://" + wsURL[5:]
	}
	return wsURL
}
