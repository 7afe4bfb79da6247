package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/touchmapd/touchmapd/internal/config"
	"github.com/touchmapd/touchmapd/internal/coordinator"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/ipc"
	"github.com/touchmapd/touchmapd/internal/logger"
	"github.com/touchmapd/touchmapd/internal/permission"
	"github.com/touchmapd/touchmapd/internal/tap"
)

var (
	configFile  string
	logLevel    string
	fileLogging bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the remapping daemon",
	Long: `Run the touch remapping daemon in the foreground. The daemon waits
for input access, learns the touch device from the first calibrated
touch, and remaps its events until stopped.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file path")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&fileLogging, "file-logging", false, "Mirror logs into a file")

	viper.BindPFlag("logging.log_level", runCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.file_logging", runCmd.Flags().Lookup("file-logging"))

	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		config.SetConfigPath(configFile)
	}
	if err := ensureConfig(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg := config.Get()

	if cfg.Logging.LogLevel != "" {
		logger.SetLevel(cfg.Logging.LogLevel)
	}
	if cfg.Logging.FileLogging {
		logFile, err := logger.EnableFileLogging(logFilePath())
		if err != nil {
			logger.Warnf("File logging disabled: %v", err)
		} else {
			defer logFile.Close()
		}
	}

	if running := alreadyRunning(); running {
		return fmt.Errorf("another touchmapd instance is already running")
	}

	displays, err := newDisplayProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up display geometry: %w", err)
	}

	coord := coordinator.New(cfg, permission.NewSystemChecker(), displays, func() (tap.Backend, error) {
		return tap.NewEvdevBackend(displays), nil
	})

	handler := newDaemonHandler(coord)
	sock, err := ipc.NewSocketServer(handler)
	if err != nil {
		return fmt.Errorf("failed to create control socket: %w", err)
	}
	if err := sock.Start(); err != nil {
		return fmt.Errorf("failed to start control socket: %w", err)
	}
	defer sock.Stop()

	// Cancelling startCtx abandons the permission wait on shutdown.
	startCtx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	startErr := make(chan error, 1)
	go func() { startErr <- coord.Start(startCtx) }()

	for {
		select {
		case err := <-startErr:
			if err != nil {
				return err
			}
			// Started; keep looping for signals and stop requests.
			startErr = nil

		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				// Permission may have been granted since the last poll.
				logger.Infof("Rechecking input access on SIGHUP: %s", coord.RecheckPermission())
				continue
			}
			logger.Infof("Received %s, shutting down", sig)
			cancelStart()
			return stopCoordinator(coord)

		case <-handler.stopRequested:
			logger.Info("Stop requested over control socket")
			cancelStart()
			return stopCoordinator(coord)
		}
	}
}

// Shutdown retry policy. A stop can briefly collide with an in-flight
// start (permission wait, create backoff) or a watchdog recreate; those
// finish once their context is cancelled, so the stop retries instead
// of abandoning shutdown with the tap still held.
const (
	stopRetryInterval = 100 * time.Millisecond
	stopTimeout       = 10 * time.Second
)

func stopCoordinator(coord *coordinator.Coordinator) error {
	deadline := time.Now().Add(stopTimeout)
	for {
		err := coord.Stop()
		if !errors.Is(err, coordinator.ErrBusy) {
			return err
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(stopRetryInterval)
	}
}

// daemonHandler is the daemon side of the control socket.
type daemonHandler struct {
	coord         *coordinator.Coordinator
	started       time.Time
	stopOnce      sync.Once
	stopRequested chan struct{}
}

func newDaemonHandler(coord *coordinator.Coordinator) *daemonHandler {
	return &daemonHandler{
		coord:         coord,
		started:       time.Now(),
		stopRequested: make(chan struct{}),
	}
}

func (h *daemonHandler) HandleStatus() (*ipc.StatusPayload, error) {
	st := h.coord.Status()

	payload := &ipc.StatusPayload{
		Running:       st.Running,
		Permission:    st.Permission.String(),
		Calibration:   st.Calibration.String(),
		SessionActive: st.SessionActive,
		Recorder:      st.Recorder,
		Watchdog: ipc.WatchdogPayload{
			Healthy:             st.Watchdog.Healthy,
			ConsecutiveFailures: st.Watchdog.ConsecutiveFailures,
			DisableCount:        st.Watchdog.DisableCount,
			LastHealthy:         st.Watchdog.LastHealthy,
		},
		Uptime:  time.Since(h.started),
		Version: Version,
	}
	if st.LearnedDevice != nil {
		id := int64(*st.LearnedDevice)
		payload.LearnedDevice = &id
	}
	return payload, nil
}

func (h *daemonHandler) HandleStop() error {
	h.stopOnce.Do(func() { close(h.stopRequested) })
	return nil
}

func (h *daemonHandler) HandleRecalibrate() error {
	return h.coord.Reset()
}

// newDisplayProvider picks the geometry source the config names.
func newDisplayProvider(cfg *config.Config) (display.Provider, error) {
	switch cfg.Display.Backend {
	case "static":
		return display.NewStaticProvider(cfg.Display), nil
	case "wlr-randr", "":
		return display.NewWlrRandrProvider(cfg.Display.TouchOutput)
	default:
		return nil, fmt.Errorf("unknown display backend %q", cfg.Display.Backend)
	}
}

// ensureConfig initializes config and writes the default file on first
// run.
func ensureConfig() error {
	if err := config.Init(); err != nil {
		return err
	}

	configPath := config.GetConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Infof("No config file found. Creating default config at %s", configPath)
		if err := config.Save(); err != nil {
			return err
		}
	}
	return nil
}

// alreadyRunning probes the control socket for a live daemon.
func alreadyRunning() bool {
	client, err := ipc.NewClientWithTimeout(500 * time.Millisecond)
	if err != nil {
		return false
	}
	return client.IsRunning()
}

func logFilePath() string {
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		return filepath.Join(stateDir, "touchmapd", "touchmapd.log")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/touchmapd.log"
	}
	return filepath.Join(home, ".local", "state", "touchmapd", "touchmapd.log")
}
