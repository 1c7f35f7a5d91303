package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	slog "github.com/vearne/simplelog"

	"github.com/orbtools/itmsplit/consts"
)

// Parse resolves the argument list into settings plus a populated registry.
// A help request surfaces as flag.ErrHelp and must not be treated as an
// error by the caller. Parsing stops at the first bad option or channel
// declaration.
func Parse(progName string, args []string) (*AppSettings, *Registry, error) {
	settings := NewAppSettings()
	registry := NewRegistry()

	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // failures are reported by the caller

	fs.StringVar(&settings.BasePath, "b", "", "base directory for channel endpoints")
	fs.Var(&ChannelOption{Registry: registry, Specs: &settings.ChannelSpecs}, "c",
		"<index>,<name>[,<format>] of channel to populate (repeat per channel)")
	fs.StringVar(&settings.ChannelFile, "y", "", "load channel declarations from YAML file")
	fs.BoolVar(&settings.FileTerminate, "e", false,
		"when reading from file, terminate at end of file rather than waiting for further input")
	fs.StringVar(&settings.InputFile, "f", "", "take input from specified file (.gz accepted)")
	fs.BoolVar(&settings.NoForceSync, "n", false, "do not force sync requirement on decode")
	fs.BoolVar(&settings.Permafile, "P", false, "create permanent files rather than fifos")
	fs.StringVar(&settings.Server, "s", settings.Server, "server to use")
	fs.IntVar(&settings.Port, "p", settings.Port, "port to connect to")
	fs.IntVar(&settings.TPIUChannel, "t", -1, "use TPIU decoder on specified channel (normally 1)")
	fs.IntVar(&settings.Verbosity, "v", 0, "verbose mode 0(errors)..3(debug)")
	fs.StringVar(&settings.FwBaseDir, "w", "", "enable filewriter functionality using specified base path")

	fs.DurationVar(&settings.StallInterval, "stall-interval", settings.StallInterval,
		"upper bound on one readiness wait; governs how often the terminating flag is re-checked")
	fs.Var(&settings.BufferSize, "buffer-size", "maximum bytes per read, e.g. 256kb")
	fs.DurationVar(&settings.ExitAfter, "exit-after", 0, "exit after specified duration")
	fs.BoolVar(&settings.Version, "version", false, "print version")

	fs.StringVar(&settings.RecordDir, "record-directory", "",
		"record the raw byte stream into rotating capture files in this directory")
	fs.IntVar(&settings.RecordMaxSize, "record-max-size", 500,
		"maximum size in megabytes of a capture file before it gets rotated")
	fs.IntVar(&settings.RecordMaxBackups, "record-max-backups", 10,
		"maximum number of rotated capture files to retain")
	fs.IntVar(&settings.RecordMaxAge, "record-max-age", 30,
		"maximum number of days to retain rotated capture files")

	fs.Var(&MultiStringOption{Params: &settings.KafkaBrokers}, "kafka-broker",
		"publish decoded channel traffic to this Kafka broker (repeatable)")
	fs.StringVar(&settings.KafkaTopic, "kafka-topic", settings.KafkaTopic,
		"topic for published channel traffic")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printHelp(progName, fs)
		}
		return nil, nil, err
	}

	if settings.ChannelFile != "" {
		if err := LoadChannelFile(settings.ChannelFile, registry); err != nil {
			return nil, nil, err
		}
	}

	registry.ForceSync = !settings.NoForceSync
	if settings.TPIUChannel >= 0 {
		registry.UseTPIU = true
		registry.TPIUChannel = settings.TPIUChannel
	}

	settings.Filewriter = settings.FwBaseDir != ""

	return settings, registry, nil
}

// help goes to stdout unconditionally; it is a request, not a diagnostic
func printHelp(progName string, fs *flag.FlagSet) {
	fmt.Printf("Usage: %s [Options]\n", progName)
	fs.VisitAll(func(f *flag.Flag) {
		fmt.Printf("       -%s  %s\n", f.Name, f.Usage)
	})
}

// Dump emits the resolved configuration, gated at Info like the rest of the
// observational output.
func Dump(settings *AppSettings, registry *Registry) {
	slog.Info("BasePath    : %s", settings.BasePath)
	slog.Info("ForceSync   : %v", registry.ForceSync)
	slog.Info("Permafile   : %v", settings.Permafile)

	if registry.UseTPIU {
		slog.Info("Using TPIU  : true (ITM on channel %d)", registry.TPIUChannel)
	} else {
		slog.Info("Using TPIU  : false")
	}

	if settings.InputFile != "" {
		if settings.FileTerminate {
			slog.Info("Input File  : %s (Terminate on exhaustion)", settings.InputFile)
		} else {
			slog.Info("Input File  : %s (Ongoing read)", settings.InputFile)
		}
	} else {
		slog.Info("Server      : %s:%d", settings.Server, settings.Port)
	}

	if settings.RecordDir != "" {
		slog.Info("Recording   : %s", settings.RecordDir)
	}
	if len(settings.KafkaBrokers) > 0 {
		slog.Info("Kafka       : %v topic %q", settings.KafkaBrokers, settings.KafkaTopic)
	}

	slog.Info("Channels    :")
	for _, i := range registry.ConfiguredChannels() {
		ch, _ := registry.Channel(i)
		format := "RAW"
		if ch.HasFormat {
			format = Escape(ch.Format)
		}
		slog.Info("         %02d [%s] [%s]", i, format, ch.Name)
	}
	slog.Info("         HW [Predefined] [%s]", consts.HwChannelName)
}

// StallIntervalOrDefault guards against a zero interval sneaking in from a
// config file or an explicit -stall-interval=0.
func (s *AppSettings) StallIntervalOrDefault() time.Duration {
	if s.StallInterval <= 0 {
		return time.Second
	}
	return s.StallInterval
}
