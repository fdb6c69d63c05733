// Package main is the entry point for the hotword daemon and CLI.
// hotword runs a passive wake-phrase detector against a streaming speech
// engine and exposes a loopback control API for page and agent integrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/normanking/hotword/internal/config"
	"github.com/normanking/hotword/internal/journal"
	"github.com/normanking/hotword/internal/logging"
	"github.com/normanking/hotword/internal/metrics"
	"github.com/normanking/hotword/internal/prefs"
	"github.com/normanking/hotword/internal/server"
	"github.com/normanking/hotword/pkg/client"
	"github.com/normanking/hotword/pkg/wake"
)

var (
	version  = "0.1.0"
	cfgPath  string
	addrFlag string
	verbose  bool
)

// Output styles shared by the CLI commands.
var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922"))
	styleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hotword",
		Short: "hotword - passive wake-phrase detection daemon",
		Long: `hotword listens for a wake phrase ("hey jacq") in streamed speech
transcripts and notifies subscribers when it hears one.

Run the daemon:          hotword
Check detector state:    hotword status
Toggle detection:        hotword enable | hotword disable
Try the matcher:         hotword match "well hey jack"
Follow live events:      hotword listen`,
		PersistentPreRunE: initLogging,
		RunE:              runDaemon,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.hotword/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "control API address (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hotword v%s\n", version)
		},
	})

	// Config command group
	rootCmd.AddCommand(configCmd())

	// Daemon control commands
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(enableCmd())
	rootCmd.AddCommand(disableCmd())
	rootCmd.AddCommand(suspendCmd())
	rootCmd.AddCommand(resumeCmd())

	// Page signal commands
	rootCmd.AddCommand(signalCmd())

	// Matcher and journal inspection
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(journalCmd())

	// Live event tail
	rootCmd.AddCommand(listenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	lc := logging.DefaultConfig()
	if cfg, err := loadConfig(); err == nil {
		lc = cfg.Logging
	}
	if verbose {
		lc.Level = "debug"
	}
	logging.Init(lc)

	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// DAEMON (ROOT COMMAND)
// ═══════════════════════════════════════════════════════════════════════════════

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare data directories: %w", err)
	}

	logger := logging.WithComponent("daemon")
	logger.Info().Str("version", version).Msg("hotword daemon starting")

	// Preferences persist the enabled toggle and the learned permission
	// grant across restarts.
	store, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}

	jrn, err := journal.Open(cfg.Journal.Path, cfg.Journal.Retain)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrn.Close()

	collector := metrics.NewCollector(nil)

	// The hub exists before the detector so callbacks can broadcast from
	// the very first state transition.
	hub := server.NewHub(logging.WithComponent("events"))

	device := wake.Classify(cfg.Detector.Environment)
	engCfg := cfg.Engine.ToEngineConfig()
	engCfg.Strategy = device.Strategy()
	engine := newCountingEngine(wake.NewSpeechEngine(engCfg, logging.WithComponent("engine")), collector)

	wc := cfg.Detector.ToWakeConfig()
	wc.Prefs = store
	wc.Logger = logging.WithComponent("wake")
	wc.Enabled = store.GetBool(prefs.KeyEnabled, cfg.Detector.Enabled)
	wc.OnWake = func(tr wake.Trigger) {
		collector.WakeDetected(tr.Phrase, tr.Distance)
		hub.Broadcast(server.PushEvent{Type: "wake", Data: tr, At: time.Now()})
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := jrn.Record(ctx, tr); err != nil {
				logger.Warn().Err(err).Msg("journal write failed")
			}
		}()
	}
	wc.OnStateChange = func(from, to wake.State) {
		collector.StateChanged(string(from), string(to))
		hub.Broadcast(server.PushEvent{
			Type: "state",
			Data: map[string]string{"from": string(from), "to": string(to)},
			At:   time.Now(),
		})
	}
	wc.OnError = func(kind wake.ErrorKind, msg string) {
		collector.EngineFailed(string(kind), msg)
		hub.Broadcast(server.PushEvent{
			Type: "error",
			Data: map[string]string{"kind": string(kind), "message": msg},
			At:   time.Now(),
		})
	}

	det, err := wake.New(wc, engine)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	defer det.Close()

	if !det.IsSupported() {
		logger.Warn().
			Str("environment", cfg.Detector.Environment).
			Msg("wake detection unsupported on this device; control API stays available")
	}

	srv := server.New(server.Options{
		Addr:      cfg.Server.Addr,
		Version:   version,
		Config:    cfg,
		Detector:  det,
		Journal:   jrn,
		Collector: collector,
		Prefs:     store,
		Hub:       hub,
		Logger:    logging.WithComponent("server"),
	})
	srv.Start()

	// Live-reload: only the enabled flag applies without a restart.
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = config.DefaultPath()
	}
	lastEnabled := wc.Enabled
	watcher, err := config.WatchFile(cfgFile, logging.WithComponent("config"), func(next *config.Config) {
		if next.Detector.Enabled == lastEnabled {
			return
		}
		lastEnabled = next.Detector.Enabled
		if next.Detector.Enabled {
			det.Enable()
		} else {
			det.Disable()
		}
		if err := store.SetBool(prefs.KeyEnabled, next.Detector.Enabled); err != nil {
			logger.Warn().Err(err).Msg("persist enabled preference failed")
		}
		logger.Info().Bool("enabled", next.Detector.Enabled).Msg("applied enabled flag from config file")
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watch unavailable")
	} else {
		defer watcher.Close()
	}

	printBanner(cfg, det)

	// Block until asked to stop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	return nil
}

func printBanner(cfg *config.Config, det *wake.Detector) {
	dev := det.Device()
	fmt.Println(styleTitle.Render("hotword daemon v" + version))
	fmt.Printf("Phrases:     %s\n", styleOK.Render(strings.Join(cfg.Detector.Phrases, ", ")))
	fmt.Printf("Control API: http://%s\n", cfg.Server.Addr)
	fmt.Printf("Device:      %s/%s (%s sessions)\n", dev.Platform, dev.Engine, dev.Strategy())
	if !det.IsSupported() {
		fmt.Println(styleErr.Render("Wake detection is unsupported on this device"))
	}
}

// countingEngine reports session start outcomes to the collector.
type countingEngine struct {
	inner     wake.Engine
	collector *metrics.Collector
}

func newCountingEngine(inner wake.Engine, collector *metrics.Collector) *countingEngine {
	return &countingEngine{inner: inner, collector: collector}
}

func (e *countingEngine) Start(cb wake.Callbacks) (wake.Session, error) {
	s, err := e.inner.Start(cb)
	e.collector.SessionStarted(err == nil)
	return s, err
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONTROL COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			st, err := c.Status(context.Background())
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}

			snap := st.Snapshot
			fmt.Println(styleTitle.Render("Hotword Daemon"))
			fmt.Println("──────────────")
			fmt.Printf("State:        %s\n", renderState(string(snap.State)))
			fmt.Printf("Enabled:      %t\n", snap.Enabled)
			fmt.Printf("Supported:    %t\n", snap.Supported)
			fmt.Printf("Device:       %s/%s\n", snap.Device.Platform, snap.Device.Engine)
			fmt.Printf("Phrases:      %s\n", strings.Join(st.Config.Phrases, ", "))
			fmt.Printf("Permission:   %s\n", snap.Permission)
			fmt.Printf("Triggers:     %d\n", snap.Triggers)
			fmt.Printf("Restarts:     %d\n", snap.Restarts)
			fmt.Printf("Last Trigger: %s\n", formatTime(snap.LastTrigger))
			if snap.LastPhrase != "" {
				fmt.Printf("Last Phrase:  %q\n", snap.LastPhrase)
			}
			if snap.Err != "" {
				fmt.Printf("Last Error:   %s\n", styleErr.Render(snap.Err))
			}
			fmt.Printf("Uptime:       %s\n", st.Uptime)
			fmt.Printf("Version:      %s\n", st.Version)
			return nil
		},
	}
}

func enableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable wake detection",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.Enable(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("✅ Wake detection enabled (state: %s)\n", renderState(state))
			return nil
		},
	}
}

func disableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable wake detection",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.Disable(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("✅ Wake detection disabled (state: %s)\n", renderState(state))
			return nil
		},
	}
}

func suspendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suspend",
		Short: "Suspend listening until resumed",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.Suspend(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("✅ Listening suspended (state: %s)\n", renderState(state))
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume listening after a suspension",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.Resume(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("✅ Listening resumed (state: %s)\n", renderState(state))
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// PAGE SIGNAL COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func signalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Send page signals to the detector",
		Long: `Send the page signals the detector reacts to. These are normally
driven by the embedding page, the commands exist for integration testing.

Examples:
  hotword signal dictation on
  hotword signal visibility off
  hotword signal interaction
  hotword signal speech-completed`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dictation [on|off]",
		Short: "Report dictation activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.SetDictation(context.Background(), active)
			if err != nil {
				return err
			}
			fmt.Printf("Dictation %s (state: %s)\n", args[0], renderState(state))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "visibility [on|off]",
		Short: "Report page visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			visible, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.SetVisibility(context.Background(), visible)
			if err != nil {
				return err
			}
			fmt.Printf("Visibility %s (state: %s)\n", args[0], renderState(state))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "interaction",
		Short: "Report a user gesture",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.NoteInteraction(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Interaction noted (state: %s)\n", renderState(state))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "speech-completed",
		Short: "Report that agent speech output finished",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.SpeechCompleted(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Speech completion noted (state: %s)\n", renderState(state))
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// MATCHER AND JOURNAL COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match [text]",
		Short: "Dry-run the phrase matcher against a transcript fragment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Match(context.Background(), text)
			if err != nil {
				return err
			}
			if res.Matched {
				fmt.Printf("✅ Matched %q (distance %d)\n", res.Phrase, res.Distance)
			} else {
				fmt.Println("No match")
			}
			return nil
		},
	}
}

func journalCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent wake triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			entries, err := c.Journal(context.Background(), limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No wake triggers recorded.")
				return nil
			}

			fmt.Printf("Last %d wake triggers:\n\n", len(entries))
			for _, e := range entries {
				fmt.Printf("  %s  %-14s d=%d  %s\n",
					formatTime(e.TriggeredAt), e.Phrase, e.Distance,
					styleMuted.Render(truncate(e.Fragment, 48)))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// LIVE EVENT TAIL
// ═══════════════════════════════════════════════════════════════════════════════

func listenCmd() *cobra.Command {
	var replay bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream detector events to the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a := cfg.Server.Addr
			if addrFlag != "" {
				a = addrFlag
			}

			stream := client.NewEventStream(client.EventStreamConfig{
				URL:            "ws://" + a + "/v1/events",
				Replay:         replay,
				Reconnect:      true,
				ReconnectDelay: 2 * time.Second,
			})
			stream.OnEvent = printEvent
			stream.OnError = func(err error) {
				fmt.Println(styleWarn.Render("connection lost, retrying: " + err.Error()))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := stream.Connect(ctx); err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			defer stream.Close()

			fmt.Println(styleMuted.Render("streaming events, ctrl-c to stop"))
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&replay, "replay", true, "replay recent events on connect")

	return cmd
}

func printEvent(ev client.Event) {
	ts := styleMuted.Render(ev.At.Format("15:04:05"))
	switch ev.Type {
	case "wake":
		fmt.Printf("%s  %s  %s\n", ts, styleOK.Render("WAKE "), string(ev.Data))
	case "error":
		fmt.Printf("%s  %s  %s\n", ts, styleErr.Render("ERROR"), string(ev.Data))
	default:
		fmt.Printf("%s  %s  %s\n", ts, styleWarn.Render(strings.ToUpper(ev.Type)), string(ev.Data))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("Hotword Configuration")
			fmt.Println("─────────────────────")
			fmt.Printf("Phrases:        %s\n", strings.Join(cfg.Detector.Phrases, ", "))
			fmt.Printf("Max Distance:   %d\n", cfg.Detector.MaxDistance)
			fmt.Printf("Cooldown:       %s\n", cfg.Detector.Cooldown)
			fmt.Printf("Min Interval:   %s\n", cfg.Detector.MinInterval)
			fmt.Printf("Engine URL:     %s\n", cfg.Engine.URL)
			fmt.Printf("API Address:    %s\n", cfg.Server.Addr)
			fmt.Printf("Journal:        %s (retain %d)\n", cfg.Journal.Path, cfg.Journal.Retain)
			fmt.Printf("Preferences:    %s\n", cfg.Prefs.Path)
			fmt.Printf("Log Level:      %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			fmt.Println(config.DefaultPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config file if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			path := cfgPath
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Printf("✅ Config ready at %s\n", path)
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := cfg.Server.Addr
	if addrFlag != "" {
		a = addrFlag
	}
	return client.New(client.Config{BaseURL: "http://" + a}), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func renderState(s string) string {
	switch s {
	case "listening":
		return styleOK.Render(s)
	case "cooldown", "suspended":
		return styleWarn.Render(s)
	case "error", "unsupported":
		return styleErr.Render(s)
	default:
		return styleMuted.Render(s)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
