package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/config"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/hotkey"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/pipeline"
	"github.com/smazurov/screenrec/internal/vpx"
	"github.com/smazurov/screenrec/internal/webm"
)

// recordOptions is the flat option set for the record command. Precedence
// is CLI flags > SCREENREC_* env vars > TOML config file.
type recordOptions struct {
	Config string `help:"Path to configuration file"`

	Output      string `toml:"record.output" env:"OUTPUT"`
	Display     int    `toml:"record.display" env:"DISPLAY_INDEX"`
	Fps         int    `toml:"record.fps" env:"FPS"`
	Codec       string `toml:"record.codec" env:"CODEC"`
	Chroma      string `toml:"record.chroma" env:"CHROMA"`
	BitrateKbps uint   `toml:"record.bitrate_kbps" env:"BITRATE_KBPS"`
	Duration    string `toml:"record.duration" env:"DURATION"`
	Hotkey      string `toml:"record.hotkey" env:"HOTKEY"`

	Force     bool
	NoPrompt  bool `toml:"record.no_prompt" env:"NO_PROMPT"`
	Synthetic bool

	MetricsAddr string `toml:"metrics.addr" env:"METRICS_ADDR"`

	LoggingLevel    string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline string `toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingCapture  string `toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingVpx      string `toml:"logging.vpx" env:"LOGGING_VPX"`
}

func newRecordCmd() *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a display to a WebM file",
		Long: `Captures the selected display at the requested frame rate, encodes
with libvpx and muxes into WebM. Stops on the hotkey, Enter, SIGINT/SIGTERM
or when --duration elapses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return err
			}
			return runRecord(opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Config, "config", "c", "", "Path to configuration file")
	f.StringVarP(&opts.Output, "output", "o", "", "Output file (default ~/Videos/screenrec/<timestamp>.webm)")
	f.IntVarP(&opts.Display, "display", "d", -1, "Display index to record (-1 selects interactively)")
	f.IntVar(&opts.Fps, "fps", 30, "Target frame rate (0 records as fast as possible)")
	f.StringVar(&opts.Codec, "codec", "vp8", "Video codec (vp8, vp9)")
	f.StringVar(&opts.Chroma, "chroma", "averaged", "Chroma mode (nearest, averaged, full); full requires vp9")
	f.UintVar(&opts.BitrateKbps, "bitrate-kbps", 5000, "Target bitrate in kbit/s")
	f.StringVar(&opts.Duration, "duration", "", "Stop after this long (e.g. 30s, 5m); empty records until stopped")
	f.StringVar(&opts.Hotkey, "hotkey", "shift+f12", "Stop hotkey combo")
	f.BoolVar(&opts.Force, "force", false, "Overwrite the output file if it exists")
	f.BoolVar(&opts.NoPrompt, "no-prompt", false, "Never prompt; fail instead of asking")
	f.BoolVar(&opts.Synthetic, "synthetic", false, "Record a synthetic test pattern instead of a display")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.StringVar(&opts.LoggingLevel, "logging-level", "info", "Global logging level (debug, info, warn, error)")
	f.StringVar(&opts.LoggingFormat, "logging-format", "text", "Logging format (text, json)")
	f.StringVar(&opts.LoggingPipeline, "logging-pipeline", "info", "Pipeline logging level")
	f.StringVar(&opts.LoggingCapture, "logging-capture", "info", "Capture logging level")
	f.StringVar(&opts.LoggingVpx, "logging-vpx", "info", "Encoder logging level")

	return cmd
}

func runRecord(opts *recordOptions) error {
	logging.Initialize(logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"pipeline": opts.LoggingPipeline,
			"capture":  opts.LoggingCapture,
			"vpx":      opts.LoggingVpx,
		},
	})
	logger := logging.GetLogger("record")

	mode, err := convert.ParseMode(opts.Chroma)
	if err != nil {
		return err
	}
	codec, err := vpx.ParseCodec(opts.Codec)
	if err != nil {
		return err
	}
	if mode == convert.ChromaFull && codec != vpx.VP9 {
		return errors.New("full chroma mode requires --codec vp9")
	}

	var maxDuration time.Duration
	if opts.Duration != "" {
		maxDuration, err = time.ParseDuration(opts.Duration)
		if err != nil {
			return fmt.Errorf("invalid --duration %q: %w", opts.Duration, err)
		}
	}

	combo, err := hotkey.ParseCombo(opts.Hotkey)
	if err != nil {
		return err
	}

	var source capture.Source
	if opts.Synthetic {
		source = capture.NewSyntheticSource(1280, 720)
	} else {
		idx, chooseErr := chooseDisplay(opts)
		if chooseErr != nil {
			return chooseErr
		}
		source, err = capture.NewDisplaySource(idx)
		if err != nil {
			return err
		}
	}
	defer source.Close()

	out, path, err := openOutput(opts)
	if err != nil {
		return err
	}

	format := vpx.FormatI420
	if mode == convert.ChromaFull {
		format = vpx.FormatI444
	}
	enc, err := vpx.New(vpx.Config{
		Width:       source.Width(),
		Height:      source.Height(),
		BitrateKbps: opts.BitrateKbps,
		Codec:       codec,
		Format:      format,
	})
	if err != nil {
		out.Close()
		return err
	}
	defer enc.Close()

	codecID := webm.CodecVP8
	if codec == vpx.VP9 {
		codecID = webm.CodecVP9
	}
	sink, err := webm.NewWriter(out, webm.TrackConfig{
		Width:     source.Width(),
		Height:    source.Height(),
		CodecID:   codecID,
		FrameRate: opts.Fps,
	})
	if err != nil {
		out.Close()
		return err
	}

	stop := pipeline.NewStop()
	bus := events.New()
	unsub := bus.Subscribe(func(e events.StopRequestedEvent) {
		logger.Info("Stop requested", "source", e.Source)
	})
	defer unsub()

	requestStop := func(src string) func() {
		return func() {
			bus.Publish(events.StopRequestedEvent{Source: src})
			stop.Signal()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		requestStop("signal")()
	}()

	hotkey.Listen(combo, requestStop("hotkey"))

	if !opts.NoPrompt {
		fmt.Printf("Recording to %s - press Enter or %s to stop\n", path, strings.Join(combo, "+"))
		go func() {
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			requestStop("prompt")()
		}()
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(opts.MetricsAddr, logger)
	}

	rec, err := pipeline.New(pipeline.Config{
		Source:      source,
		Encoder:     vpxEncoder{enc},
		Muxer:       sink,
		Mode:        mode,
		FPS:         opts.Fps,
		MaxDuration: maxDuration,
		Stop:        stop,
		Bus:         bus,
	})
	if err != nil {
		out.Close()
		return err
	}

	if err := rec.Run(); err != nil {
		dumpLogTail()
		return err
	}

	fmt.Printf("Saved %d frames to %s\n", rec.Frames(), path)
	return nil
}

// chooseDisplay resolves the display index, prompting when several are
// attached and no explicit index was given.
func chooseDisplay(opts *recordOptions) (int, error) {
	if opts.Display >= 0 {
		return opts.Display, nil
	}

	displays, err := capture.Displays()
	if err != nil {
		return 0, err
	}
	if len(displays) == 1 || opts.NoPrompt {
		return 0, nil
	}

	fmt.Println("Multiple displays found:")
	for _, d := range displays {
		fmt.Printf("  %d: %s\n", d.Index, d)
	}
	fmt.Print("Select display [0]: ")

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, nil
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 0 || idx >= len(displays) {
		return 0, fmt.Errorf("invalid display selection %q", line)
	}
	return idx, nil
}

// openOutput opens the output file. Existing files are never clobbered
// silently: --force truncates, otherwise the user is asked (or the command
// fails under --no-prompt).
func openOutput(opts *recordOptions) (*os.File, string, error) {
	path := opts.Output
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir := filepath.Join(home, "Videos", "screenrec")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("cannot create %s: %w", dir, err)
		}
		path = filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".webm")
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		if opts.NoPrompt {
			return nil, "", fmt.Errorf("output %s already exists (use --force)", path)
		}
		if !confirm(fmt.Sprintf("%s already exists, overwrite?", path)) {
			return nil, "", errors.New("aborted")
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return nil, "", fmt.Errorf("cannot open output %s: %w", path, err)
	}
	return f, path, nil
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func serveMetrics(addr string, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics server stopped", "error", err)
	}
}

// dumpLogTail prints the most recent buffered log entries to stderr so a
// failed recording leaves some context even at info level.
func dumpLogTail() {
	buf := logging.GetBuffer()
	if buf == nil {
		return
	}
	entries := buf.Tail(20)
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Recent log entries:")
	for _, e := range entries {
		fmt.Fprintln(os.Stderr, "  "+logging.FormatLogLine(e))
	}
}

// vpxEncoder adapts the libvpx session to the pipeline encoder boundary.
type vpxEncoder struct {
	enc *vpx.Encoder
}

func (a vpxEncoder) Encode(ptsMs int64, yuv []byte) ([]pipeline.Packet, error) {
	pkts, err := a.enc.Encode(ptsMs, yuv)
	return toPipelinePackets(pkts), err
}

func (a vpxEncoder) Finish() ([]pipeline.Packet, error) {
	pkts, err := a.enc.Finish()
	return toPipelinePackets(pkts), err
}

func toPipelinePackets(pkts []vpx.Packet) []pipeline.Packet {
	if len(pkts) == 0 {
		return nil
	}
	out := make([]pipeline.Packet, len(pkts))
	for i, p := range pkts {
		out[i] = pipeline.Packet{Data: p.Data, PtsMs: p.PtsMs, Keyframe: p.Keyframe}
	}
	return out
}
