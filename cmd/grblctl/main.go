package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/grblctl/internal/config"
	"github.com/npratt/grblctl/internal/daemon"
	"github.com/npratt/grblctl/internal/events"
	"github.com/npratt/grblctl/internal/exec"
	"github.com/npratt/grblctl/internal/grbl"
	initcmd "github.com/npratt/grblctl/internal/init"
	"github.com/npratt/grblctl/internal/serialport"
	"github.com/npratt/grblctl/internal/shutdown"
)

var version = "dev"

// getDaemonClient creates a daemon client by finding daemon.json in the project.
func getDaemonClient() (*daemon.Client, error) {
	info, err := daemon.FindDaemonInfo("")
	if err != nil {
		return nil, fmt.Errorf("daemon not running: %w", err)
	}
	return daemon.NewClient(info.SocketPath), nil
}

// bindEventTriggers registers the configured event_triggers entries
// against the engine's trigger dispatcher.
func bindEventTriggers(e *grbl.Engine, entries []config.EventTriggerEntry, log *slog.Logger) {
	for _, entry := range entries {
		var kind grbl.TriggerKind
		switch entry.Kind {
		case "gcode":
			kind = grbl.TriggerGcode
		case "system":
			kind = grbl.TriggerSystem
		default:
			log.Warn("ignoring event trigger with unknown kind", "name", entry.Name, "kind", entry.Kind)
			continue
		}
		e.Bind(entry.Name, grbl.Binding{
			Kind:    kind,
			Command: entry.Command,
			Args:    entry.Args,
			Lines:   entry.Lines,
		})
	}
}

// tailLast reads and prints the last n lines from the event log.
func tailLast(path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(lines) == 0 {
		fmt.Println("No events yet")
		return nil
	}

	start := 0
	if len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		printEventLine(line)
	}
	return nil
}

// waitForFile waits for a file to be created and returns the opened file.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			file, err := os.Open(path)
			if err == nil {
				return file, nil
			}
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open file: %w", err)
			}
		}
	}
}

// tailFollow follows the event log and prints new lines as they appear.
func tailFollow(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Waiting for log file to be created...")
			file, err = waitForFile(ctx, path)
			if err != nil {
				return err
			}
		} else {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	fmt.Println("Following events (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					time.Sleep(100 * time.Millisecond)
					continue
				}
				return fmt.Errorf("read log: %w", err)
			}
			printEventLine(strings.TrimSuffix(line, "\n"))
		}
	}
}

// printEventLine prints a single event-log line in a human-readable form.
func printEventLine(line string) {
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		fmt.Println(line)
		return
	}

	timestamp := ""
	if ts, ok := event["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			timestamp = t.Format("15:04:05")
		} else {
			timestamp = ts
		}
	}

	eventType := ""
	if t, ok := event["type"].(string); ok {
		eventType = t
	}

	var detail string
	switch eventType {
	case "workflow:state":
		if state, ok := event["state"].(string); ok {
			detail = state
			if reason, ok := event["reason"].(string); ok && reason != "" {
				detail += " (" + reason + ")"
			}
		}
	case "controller:state":
		if state, ok := event["state"].(string); ok {
			detail = state
		}
	case "error":
		if msg, ok := event["message"].(string); ok {
			detail = msg
		}
	default:
		if msg, ok := event["message"].(string); ok {
			detail = msg
		} else if line, ok := event["line"].(string); ok {
			detail = line
		}
	}

	if detail != "" {
		fmt.Printf("[%s] %s: %s\n", timestamp, eventType, detail)
	} else {
		fmt.Printf("[%s] %s\n", timestamp, eventType)
	}
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("GRBLCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "grblctl",
		Short: "A host-side controller for Grbl-compatible CNC firmware",
		Long: `grblctl is a daemon that owns the serial connection to a
Grbl-compatible CNC controller: it tracks machine state, feeds and
sends G-code programs with character-counting flow control, and
exposes pause/resume/stop control and a live event stream over a
Unix socket.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .grblctl/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for daemon control")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("grblctl %s\n", version)
		},
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the grblctl daemon",
		Long: `Start the grblctl daemon, opening the configured serial port and
serving status/control requests over a Unix socket.

Use --daemon to run in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonMode := viper.GetBool(FlagDaemon)

			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}

			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if cmd.Flags().Changed(FlagLogFile) {
				cfg.Paths.Log = viper.GetString(FlagLogFile)
			}
			if cmd.Flags().Changed(FlagStateFile) {
				cfg.Paths.State = viper.GetString(FlagStateFile)
			}
			if cmd.Flags().Changed(FlagSocketPath) {
				cfg.Paths.Socket = viper.GetString(FlagSocketPath)
			}
			if cmd.Flags().Changed(FlagSerialPort) {
				cfg.Serial.Port = viper.GetString(FlagSerialPort)
			}
			if cmd.Flags().Changed(FlagSerialBaud) {
				cfg.Serial.Baud = viper.GetInt(FlagSerialBaud)
			}

			if cfg.Serial.Port == "" {
				return fmt.Errorf("no serial port configured (set serial.port in config.yaml or pass --%s)", FlagSerialPort)
			}

			projectRoot := daemon.FindProjectRoot("")
			cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			if daemonMode {
				client := daemon.NewClient(cfg.Paths.Socket)
				if client.IsRunning() {
					return fmt.Errorf("daemon already running (socket: %s)", cfg.Paths.Socket)
				}

				shouldExit, _, err := daemon.Daemonize(cfg)
				if err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
				if shouldExit {
					return nil
				}
			}

			grblctlDir := filepath.Dir(daemon.DaemonInfoPath(projectRoot))
			if err := os.MkdirAll(grblctlDir, 0755); err != nil {
				return fmt.Errorf("create .grblctl directory: %w", err)
			}

			logResult, err := SetupLogger(cfg.Paths.Log, logLevel, cfg.LogRotation, !daemonMode)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer func() { _ = logResult.Close() }()
			appLogger := logResult.Logger
			slog.SetDefault(appLogger)

			appLogger.Info("grblctl starting",
				"version", version,
				"serial_port", cfg.Serial.Port,
				"serial_baud", cfg.Serial.Baud,
				"socket", cfg.Paths.Socket,
				"daemon_mode", daemonMode,
			)

			port, err := serialport.Open(cfg.Serial.Port, cfg.Serial.Baud)
			if err != nil {
				return fmt.Errorf("open serial port: %w", err)
			}

			daemonInfo := &daemon.DaemonInfo{
				SocketPath: cfg.Paths.Socket,
				PIDPath:    cfg.Paths.PID,
				LogPath:    cfg.Paths.Log,
				StartTime:  time.Now(),
				PID:        os.Getpid(),
			}
			if err := daemon.WriteDaemonInfo(daemon.DaemonInfoPath(projectRoot), daemonInfo); err != nil {
				appLogger.Warn("failed to write daemon info", "error", err)
			}

			pidFile := daemon.NewPIDFile(cfg.Paths.PID)
			if err := pidFile.Write(); err != nil {
				appLogger.Warn("failed to write pid file", "error", err)
			}

			router := events.NewRouter(events.DefaultBufferSize)
			logSink := events.NewLogSink(cfg.Paths.Log)

			ctx := cmd.Context()
			sinkCtx, sinkCancel := context.WithCancel(ctx)

			logEvents := router.Subscribe()
			if err := logSink.Start(sinkCtx, logEvents); err != nil {
				sinkCancel()
				router.Close()
				_ = port.Close()
				return fmt.Errorf("start log sink: %w", err)
			}

			runner := exec.NewExecRunner()
			engine := grbl.Assemble(port, router, runner, appLogger)
			bindEventTriggers(engine, cfg.EventTriggers, appLogger)

			dmn := daemon.New(cfg, engine, appLogger)

			daemonCtx, daemonCancel := context.WithCancel(ctx)
			daemonDone := make(chan struct{})
			go func() {
				defer close(daemonDone)
				if err := dmn.Start(daemonCtx); err != nil {
					appLogger.Error("daemon server error", "error", err)
				}
			}()

			err = shutdown.RunWithGracefulShutdown(
				ctx,
				appLogger,
				cfg.Shutdown.GracefulTimeout,
				func(runCtx context.Context) error {
					return engine.Run(runCtx, port.Lines(), cfg.Workflow.TickInterval)
				},
				func(shutdownCtx context.Context) error {
					daemonCancel()
					<-daemonDone
					return nil
				},
			)

			sinkCancel()
			router.Close()
			_ = logSink.Stop()
			_ = pidFile.Remove()
			_ = daemon.RemoveDaemonInfo(daemon.DaemonInfoPath(projectRoot))

			return err
		},
	}

	startCmd.Flags().Bool(FlagDaemon, false, "Run as a background daemon")
	startCmd.Flags().String(FlagSerialPort, "", "Serial device path (e.g. /dev/ttyUSB0)")
	startCmd.Flags().Int(FlagSerialBaud, 0, "Serial baud rate (default from config, 115200)")
	startCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and machine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}

			status, err := client.Status()
			if err != nil {
				return err
			}

			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Workflow: %s\n", status.Workflow)
			if status.WorkflowReason != "" {
				fmt.Printf("Reason: %s\n", status.WorkflowReason)
			}
			fmt.Printf("Machine: %s (X%.3f Y%.3f Z%.3f)\n",
				status.Machine.State, status.Machine.MPosX, status.Machine.MPosY, status.Machine.MPosZ)
			if status.Sender.Total > 0 {
				fmt.Printf("Program: %s (%d/%d sent, %d acked)\n",
					status.Sender.Name, status.Sender.Sent, status.Sender.Total, status.Sender.Received)
			}
			if status.Feeder.Size > 0 {
				fmt.Printf("Feeder queue: %d\n", status.Feeder.Size)
			}
			fmt.Printf("Uptime: %s\n", status.Uptime)
			fmt.Printf("Started: %s\n", status.StartTime)
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause the running program",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Pause(); err != nil {
				return err
			}
			fmt.Println("Pause requested")
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused program",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Resume(); err != nil {
				return err
			}
			fmt.Println("Resume requested")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running program and shut down the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}

			force := viper.GetBool(FlagForce)
			if err := client.Stop(force); err != nil {
				return err
			}

			if force {
				fmt.Println("Stop requested - feed-hold issued; soft reset follows after 500ms if the machine is in Hold")
			} else {
				fmt.Println("Stop requested - daemon will settle to idle before shutting down")
			}
			return nil
		},
	}
	stopCmd.Flags().Bool(FlagForce, false, "Stop immediately without waiting for the machine to settle")
	stopCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	loadCmd := &cobra.Command{
		Use:   "load <file.nc>",
		Short: "Load a G-code program into the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			client, err := getDaemonClient()
			if err != nil {
				return err
			}

			name := filepath.Base(path)
			if err := client.LoadGcode(name, string(text)); err != nil {
				return err
			}
			fmt.Printf("Loaded %s\n", name)

			if viper.GetBool(FlagStart) {
				if err := client.Start(); err != nil {
					return err
				}
				fmt.Println("Started")
			}
			return nil
		},
	}
	loadCmd.Flags().Bool(FlagStart, false, "Start the program immediately after loading")
	loadCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent engine events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := viper.GetString(FlagLogFile)
			info, err := daemon.FindDaemonInfo("")
			if err == nil {
				logPath = info.LogPath
			} else {
				projectRoot := daemon.FindProjectRoot("")
				resolved, err := daemon.ResolvePaths(config.PathsConfig{Log: logPath}, projectRoot)
				if err == nil {
					logPath = resolved.Log
				}
			}

			count := viper.GetInt(FlagCount)
			follow := viper.GetBool(FlagFollow)

			if follow {
				return tailFollow(cmd.Context(), logPath)
			}
			return tailLast(logPath, count)
		},
	}
	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	eventsCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a .grblctl project directory",
		Long: `Creates a .grblctl project directory with a starter config.yaml
and a macros directory, and appends the daemon's runtime files to
.gitignore.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := initcmd.Options{
				DryRun: viper.GetBool(FlagDryRun),
				Force:  viper.GetBool(FlagForce),
			}
			_, err := initcmd.Run(opts)
			return err
		},
	}
	initCmd.Flags().Bool(FlagDryRun, false, "Show what would be changed without making changes")
	initCmd.Flags().Bool(FlagForce, false, "Overwrite existing files")
	initCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
