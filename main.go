package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/chesscast/cmd"
	"github.com/smazurov/chesscast/internal/config"
	"github.com/smazurov/chesscast/internal/events"
	"github.com/smazurov/chesscast/internal/ffmpeg"
	"github.com/smazurov/chesscast/internal/logging"
	"github.com/smazurov/chesscast/internal/metrics"
	"github.com/smazurov/chesscast/internal/runconfig"
	"github.com/smazurov/chesscast/internal/supervisor"
	"github.com/smazurov/chesscast/internal/systemd"
	"github.com/smazurov/chesscast/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"chesscast.toml"`

	// Run settings
	Mode           string `help:"Frame consumer: preview or stream" short:"m" default:"preview" toml:"run.mode" env:"CHESSCAST_MODE"`
	RuntimeDir     string `help:"Runtime directory holding the frame channel and config document (removed on exit)" default:"" toml:"run.runtime_dir" env:"CHESSCAST_RUNTIME_DIR"`
	ConsumerPolicy string `help:"What to do when the consumer exits first: warn or fatal" default:"warn" toml:"run.consumer_policy" env:"CHESSCAST_CONSUMER_POLICY"`
	FrameFormat    string `help:"Frame channel encoding: rawvideo (RGBA) or image2pipe" default:"rawvideo" toml:"run.frame_format" env:"CHESSCAST_FRAME_FORMAT"`
	StopTimeout    string `help:"Time between SIGINT and SIGKILL when stopping a process" default:"5s" toml:"run.stop_timeout" env:"CHESSCAST_STOP_TIMEOUT"`
	KillTimeout    string `help:"Time to wait for a process after SIGKILL" default:"5s" toml:"run.kill_timeout" env:"CHESSCAST_KILL_TIMEOUT"`

	// Executables
	PrimaryBinary string `help:"Chess application producing frames" default:"ttv-plays-chess" toml:"binaries.primary" env:"CHESSCAST_PRIMARY_BINARY"`
	PreviewBinary string `help:"Local frame renderer" default:"ffplay" toml:"binaries.preview" env:"CHESSCAST_PREVIEW_BINARY"`
	EncoderBinary string `help:"Live-stream encoder" default:"ffmpeg" toml:"binaries.encoder" env:"CHESSCAST_ENCODER_BINARY"`

	// Credentials
	LichessAccount     string `help:"Lichess bot account" default:"" toml:"lichess.account" env:"LICHESS_ACCOUNT"`
	LichessAccessToken string `help:"Lichess API access token" default:"" toml:"lichess.access_token" env:"LICHESS_ACCESS_TOKEN"`
	TwitchChannel      string `help:"Twitch channel whose chat drives the game" default:"" toml:"twitch.channel" env:"TWITCH_CHANNEL"`
	TwitchStreamKey    string `help:"Twitch stream key (stream mode)" default:"" toml:"twitch.stream_key" env:"TWITCH_STREAM_KEY"`
	TwitchIngestServer string `help:"Twitch ingest server host (stream mode)" default:"" toml:"twitch.ingest_server" env:"TWITCH_INGEST_SERVER"`

	// Observability settings
	MetricsAddr string `help:"Listen address for /metrics, empty to disable" default:"" toml:"metrics.addr" env:"CHESSCAST_METRICS_ADDR"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"CHESSCAST_LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"CHESSCAST_LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"" toml:"logging.supervisor" env:"CHESSCAST_LOGGING_SUPERVISOR"`
	LoggingProcess    string `help:"Process output logging level" default:"" toml:"logging.process" env:"CHESSCAST_LOGGING_PROCESS"`
	LoggingFfmpeg     string `help:"Encoder logging level" default:"" toml:"logging.ffmpeg" env:"CHESSCAST_LOGGING_FFMPEG"`
}

func (o *Options) credentials() runconfig.Credentials {
	return runconfig.Credentials{
		Account:     o.LichessAccount,
		AccessToken: o.LichessAccessToken,
		Channel:     o.TwitchChannel,
	}
}

func (o *Options) runtimeDir() string {
	if o.RuntimeDir == "" {
		return supervisor.DefaultRuntimeDir()
	}
	return o.RuntimeDir
}

func (o *Options) loggingConfig() logging.Config {
	cfg := config.LoadLoggingConfig(o.Config)
	cfg.Level = o.LoggingLevel
	cfg.Format = o.LoggingFormat
	for module, level := range map[string]string{
		"supervisor": o.LoggingSupervisor,
		"process":    o.LoggingProcess,
		"ffmpeg":     o.LoggingFfmpeg,
	} {
		if level != "" {
			cfg.Modules[module] = level
		}
	}
	return cfg
}

// supervisorOptions validates the run settings at the boundary.
func (o *Options) supervisorOptions() (supervisor.Options, error) {
	mode, err := supervisor.ParseMode(o.Mode)
	if err != nil {
		return supervisor.Options{}, err
	}
	policy, err := supervisor.ParseConsumerPolicy(o.ConsumerPolicy)
	if err != nil {
		return supervisor.Options{}, err
	}
	frames, err := ffmpeg.ParseFrameInput(o.FrameFormat)
	if err != nil {
		return supervisor.Options{}, err
	}
	stopTimeout, err := parseTimeout("stop-timeout", o.StopTimeout, supervisor.DefaultStopTimeout)
	if err != nil {
		return supervisor.Options{}, err
	}
	killTimeout, err := parseTimeout("kill-timeout", o.KillTimeout, supervisor.DefaultKillTimeout)
	if err != nil {
		return supervisor.Options{}, err
	}

	return supervisor.Options{
		Mode:        mode,
		RuntimeDir:  o.runtimeDir(),
		Credentials: o.credentials(),
		StreamTarget: runconfig.StreamTarget{
			IngestServer: o.TwitchIngestServer,
			StreamKey:    o.TwitchStreamKey,
		},
		PrimaryBinary:  o.PrimaryBinary,
		PreviewBinary:  o.PreviewBinary,
		EncoderBinary:  o.EncoderBinary,
		StopTimeout:    stopTimeout,
		KillTimeout:    killTimeout,
		ConsumerPolicy: policy,
		Frames:         frames,
	}, nil
}

func parseTimeout(name, value string, fallback time.Duration) (time.Duration, error) {
	d, err := config.ParseDuration(value, fallback)
	if err != nil {
		return 0, fmt.Errorf("%w: --%s: %w", supervisor.ErrInvalidTimeout, name, err)
	}
	return d, nil
}

// run executes one supervised session and returns the process exit status.
func run(ctx context.Context, opts *Options, logger *slog.Logger) int {
	supOpts, err := opts.supervisorOptions()
	if err != nil {
		logger.Error("Invalid options", "error", err)
		return supervisor.ExitCode(0, err)
	}

	bus := events.New()
	defer metrics.Observe(bus)()

	if opts.MetricsAddr != "" {
		stop, serveErr := metrics.Serve(ctx, opts.MetricsAddr, logging.GetLogger("metrics"))
		if serveErr != nil {
			logger.Warn("Metrics listener disabled", "addr", opts.MetricsAddr, "error", serveErr)
		} else {
			defer stop()
		}
	}

	supOpts.Bus = bus
	supOpts.Notifier = systemd.NewNotifier(logging.GetLogger("systemd"))

	sup, err := supervisor.New(supOpts)
	if err != nil {
		logger.Error("Cannot create supervisor", "error", err)
		return supervisor.ExitCode(0, err)
	}

	logger.Info("Starting run", "run_id", sup.RunID(), "mode", supOpts.Mode.String(),
		"runtime_dir", supOpts.RuntimeDir, "version", version.Version)

	code, err := sup.Run(ctx)
	switch {
	case err != nil:
		logger.Error("Run failed", "run_id", sup.RunID(), "error", err, "exit_code", code)
	default:
		logger.Info("Run finished", "run_id", sup.RunID(), "exit_code", code)
	}
	return code
}

var errInterrupted = errors.New("interrupted")

// session binds one run to the CLI start and stop hooks.
type session struct {
	opts     *Options
	ctx      context.Context
	cancel   context.CancelCauseFunc
	finished chan struct{}
	exitCode atomic.Int32
}

func newSession(opts *Options) *session {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &session{opts: opts, ctx: ctx, cancel: cancel, finished: make(chan struct{})}
}

func (s *session) start() {
	defer close(s.finished)
	s.exitCode.Store(int32(run(s.ctx, s.opts, logging.GetLogger("main"))))
}

// stop cancels the run and waits for its cleanup.
func (s *session) stop() {
	logging.GetLogger("main").Info("Interrupted, shutting down")
	s.cancel(errInterrupted)
	<-s.finished
}

func main() {
	var (
		current *Options
		sess    *session
	)

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		current = opts
		sess = newSession(opts)
		hooks.OnStart(sess.start)
		hooks.OnStop(sess.stop)
	})

	root := cli.Root()
	root.Use = "chesscast"
	root.Short = "Run the chess application with a preview window or a live stream"
	root.PersistentPreRunE = chainPreRun(root.PersistentPreRunE, root.PersistentPreRun, func(c *cobra.Command) error {
		// Load configuration automatically
		loadErr := config.LoadConfig(current, c)
		logging.Initialize(current.loggingConfig())
		if loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}
		return nil
	})
	root.PersistentPreRun = nil

	root.AddCommand(cmd.CreateRenderConfigCmd(func() cmd.RenderSettings {
		return cmd.RenderSettings{Credentials: current.credentials(), RuntimeDir: current.runtimeDir()}
	}))
	root.AddCommand(cmd.CreateAudioSourceCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
	if sess != nil {
		os.Exit(int(sess.exitCode.Load()))
	}
}

// chainPreRun runs humacli's option parsing first, then after. Flags changed
// on the command line are only known once cobra has parsed them.
func chainPreRun(
	preE func(*cobra.Command, []string) error,
	pre func(*cobra.Command, []string),
	after func(*cobra.Command) error,
) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		if preE != nil {
			if err := preE(c, args); err != nil {
				return err
			}
		}
		if pre != nil {
			pre(c, args)
		}
		return after(c)
	}
}
