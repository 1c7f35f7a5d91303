package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	slog "github.com/vearne/simplelog"

	"github.com/orbtools/itmsplit/acquire"
	"github.com/orbtools/itmsplit/broker"
	"github.com/orbtools/itmsplit/config"
	"github.com/orbtools/itmsplit/consts"
	"github.com/orbtools/itmsplit/fifos"
	"github.com/orbtools/itmsplit/filewriter"
	"github.com/orbtools/itmsplit/protocol"
	"github.com/orbtools/itmsplit/record"
)

const banner string = `
  _ _                       _ _ _
 (_) |_ _ __ ___  ___ _ __ | (_) |_
 | | __| '_ ' _ \/ __| '_ \| | | __|
 | | |_| | | | | \__ \ |_) | | | |_
 |_|\__|_| |_| |_|___/ .__/|_|_|\__|
                     |_|
`

// exit code for a cleanly exhausted, non-retrying source
const exitNoMoreSource = 3

func main() {
	fmt.Print(banner)

	// errors and warnings must be visible during option parsing; the
	// requested verbosity is applied right after
	adjustLogLevel(1)

	settings, registry, err := config.Parse(filepath.Base(os.Args[0]), os.Args[1:])
	if err == flag.ErrHelp {
		return
	}
	if err != nil {
		slog.Error("%v", err)
		os.Exit(1)
	}

	if settings.Version {
		fmt.Println("service: itmsplit")
		fmt.Println("Version", consts.Version)
		fmt.Println("BuildTime", consts.BuildTime)
		fmt.Println("GitTag", consts.GitTag)
		return
	}

	adjustLogLevel(settings.Verbosity)
	config.Dump(settings, registry)

	sinks := fifos.New(registry, settings.BasePath, settings.Permafile)
	if err := sinks.Create(); err != nil {
		slog.Error("failed to make channel devices: %v", err)
		os.Exit(1)
	}

	var fw *filewriter.Filewriter
	if settings.Filewriter {
		if fw, err = filewriter.New(settings.FwBaseDir); err != nil {
			slog.Error("%v", err)
			os.Exit(1)
		}
	}

	var kafka *broker.KafkaOutput
	if len(settings.KafkaBrokers) > 0 {
		if kafka, err = broker.NewKafkaOutput(settings.KafkaBrokers, settings.KafkaTopic); err != nil {
			slog.Error("kafka: %v", err)
			os.Exit(1)
		}
	}

	demux := protocol.NewDemux(registry.ForceSync, registry.UseTPIU, registry.TPIUChannel,
		func(msg protocol.Message) {
			if fw != nil && msg.Type == protocol.MsgSoftware && int(msg.Channel) == consts.FwChannel {
				fw.Process(msg)
				return
			}
			sinks.Dispatch(msg)
			if kafka != nil && msg.Type == protocol.MsgSoftware {
				kafka.Publish(int(msg.Channel), msg.Bytes())
			}
		})

	mgr := acquire.NewManager(acquire.Config{
		Server:        settings.Server,
		Port:          settings.Port,
		InputFile:     settings.InputFile,
		FileTerminate: settings.FileTerminate,
		StallInterval: settings.StallIntervalOrDefault(),
		RetryDelay:    time.Second,
		BufferSize:    int(settings.BufferSize),
	}, demux)

	var rec *record.Recorder
	if settings.RecordDir != "" {
		rec = record.NewRecorder(settings.RecordDir,
			settings.RecordMaxSize, settings.RecordMaxBackups, settings.RecordMaxAge)
		mgr.SetTap(rec)
	}

	// a vanished fifo reader must surface as a write error, not kill us
	signal.Ignore(syscall.SIGPIPE)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)

	closeCh := make(chan int)
	if settings.ExitAfter > 0 {
		slog.Info("running for a duration of %s", settings.ExitAfter)
		time.AfterFunc(settings.ExitAfter, func() {
			slog.Info("run timeout %s", settings.ExitAfter)
			close(closeCh)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- mgr.Run(ctx)
	}()

	exit := 0
	select {
	case <-c:
		// CTRL-C exit is not an error
		cancel()
		waitRun(runErr)
	case <-closeCh:
		cancel()
		waitRun(runErr)
	case err := <-runErr:
		cancel()
		switch {
		case errors.Is(err, acquire.ErrSourceExhausted):
			slog.Info("source exhausted")
			exit = exitNoMoreSource
		case err != nil:
			slog.Error("%v", err)
			exit = 1
		}
	}

	shutdown(sinks, fw, kafka, rec)
	os.Exit(exit)
}

// waitRun gives the acquisition loop a bounded chance to notice the
// cancellation before the cleanup runs.
func waitRun(runErr chan error) {
	select {
	case <-runErr:
	case <-time.After(2 * time.Second):
	}
}

// shutdown is the single exit-time cleanup: release the sinks, then yield
// briefly so in-flight endpoint writes settle.
func shutdown(sinks *fifos.Fifos, fw *filewriter.Filewriter, kafka *broker.KafkaOutput, rec *record.Recorder) {
	sinks.Shutdown()
	if fw != nil {
		fw.Shutdown()
	}
	if kafka != nil {
		kafka.Close()
	}
	if rec != nil {
		rec.Close()
	}
	time.Sleep(time.Millisecond)
}

func adjustLogLevel(verbosity int) {
	if len(os.Getenv("SIMPLE_LOG_LEVEL")) > 0 {
		return
	}
	switch verbosity {
	case 0:
		slog.SetLevel(slog.ErrorLevel)
	case 1:
		slog.SetLevel(slog.WarnLevel)
	case 2:
		slog.SetLevel(slog.InfoLevel)
	default:
		slog.SetLevel(slog.DebugLevel)
	}
}
