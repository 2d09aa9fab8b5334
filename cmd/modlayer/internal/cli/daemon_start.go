package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/watch"
	"github.com/albertocavalcante/modlayer/internal/log"
)

var daemonStartFlags struct {
	foreground bool
	logFile    string
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon process",
	Long: `Start the modlayer daemon process.

By default, the daemon runs in the background. Use --foreground to run
in the foreground for debugging.

The daemon listens on a Unix socket for client connections. Multiple
clients can connect simultaneously.

Examples:
  modlayer daemon start              # Start in background
  modlayer daemon start --foreground # Run in foreground (Ctrl+C to stop)
  modlayer daemon start --socket /tmp/modlayer.sock`,
	Args: cobra.NoArgs,
	RunE: runDaemonStart,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlags.foreground, "foreground", false,
		"Run in foreground (don't daemonize)")
	daemonStartCmd.Flags().StringVar(&daemonStartFlags.logFile, "log", "",
		"Log file path (default: <state_dir>/daemon.log)")

	daemonCmd.AddCommand(daemonStartCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	paths, err := getDaemonPaths()
	if err != nil {
		return err
	}

	status := daemon.GetStatus(paths)
	if status.Running {
		fmt.Printf("Daemon already running (PID: %d)\n", status.PID)
		return nil
	}
	if status.Stale {
		if _, err := daemon.CleanupStale(paths); err != nil {
			log.Warn("failed to clean up stale files", "error", err)
		}
	}

	if daemonStartFlags.foreground {
		return runDaemonForeground(paths)
	}
	return runDaemonBackground(paths)
}

// runDaemonForeground builds stale outputs, then serves the hot-reload
// pipeline and the socket until interrupted or asked to shut down.
func runDaemonForeground(paths *daemon.Paths) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}

	fmt.Printf("Starting daemon in foreground (PID: %d)\n", os.Getpid())
	fmt.Printf("Socket: %s\n", paths.Socket)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := watch.NewLogger(watch.LoggerConfig{Writer: os.Stdout, NoColor: true})
	report, err := a.Startup(ctx, false)
	app.LogReport(logger, report)
	if err != nil {
		if report == nil {
			return err
		}
		logger.Error(err)
	}

	pipe, err := a.NewPipeline(app.PipelineOptions{Logger: logger})
	if err != nil {
		return err
	}
	handler := daemon.NewHandler(daemon.PipelineBackend{Pipeline: pipe})
	a.OnReload(handler.ReloadHook())

	server := daemon.NewServer(daemon.ServerConfig{
		Paths:   paths,
		Version: Version,
		Handler: handler,
	})
	if err := server.Listen(); err != nil {
		_ = pipe.Close()
		return err
	}

	return serveDaemon(ctx, cancel, pipe, server)
}

// serveDaemon runs the pipeline and the server together. Either one
// stopping stops the other.
func serveDaemon(ctx context.Context, cancel context.CancelFunc, pipe *app.Pipeline, server *daemon.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return pipe.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return server.Serve(gctx)
	})
	return g.Wait()
}

// runDaemonBackground starts the daemon in a background process.
func runDaemonBackground(paths *daemon.Paths) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"daemon", "start", "--foreground"}
	if daemonSocket != "" {
		args = append(args, "--socket", daemonSocket)
	}
	if globalFlags.config != "" {
		args = append(args, "--config", globalFlags.config)
	}

	if err := paths.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create daemon directory: %w", err)
	}

	logPath := paths.Log
	if daemonStartFlags.logFile != "" {
		logPath = daemonStartFlags.logFile
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = daemonSysProcAttr()

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// The child keeps its own handle.
	_ = logFile.Close()

	// The startup build runs before the socket opens, so wait for the
	// socket rather than only the process.
	if !waitForSocket(paths, 10*time.Second) {
		if !daemon.IsProcessRunning(cmd.Process.Pid) {
			return fmt.Errorf("daemon failed to start (check %s for details)", logPath)
		}
		fmt.Printf("Daemon starting (PID: %d), still building\n", cmd.Process.Pid)
		fmt.Printf("Log: %s\n", logPath)
		return nil
	}

	status := daemon.GetStatus(paths)
	fmt.Printf("Daemon started (PID: %d)\n", status.PID)
	fmt.Printf("Socket: %s\n", paths.Socket)
	fmt.Printf("Log: %s\n", logPath)
	return nil
}

// waitForSocket waits until the daemon answers on its socket.
func waitForSocket(paths *daemon.Paths, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client, err := daemon.Connect(paths.Socket); err == nil {
			_ = client.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
