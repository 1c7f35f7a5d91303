// Package fifos materialises decoded channel traffic as per-channel
// endpoints under a base path: named pipes by default, permanent files on
// request. One writer goroutine per endpoint keeps per-channel ordering
// and absorbs short reader stalls; a reader that never drains eventually
// backpressures the dispatcher, but can no longer wedge shutdown.
package fifos

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	slog "github.com/vearne/simplelog"
	"golang.org/x/sys/unix"

	"github.com/orbtools/itmsplit/config"
	"github.com/orbtools/itmsplit/consts"
	"github.com/orbtools/itmsplit/protocol"
)

const (
	writerBacklog = 128

	// bound on waiting for one endpoint to flush at shutdown
	shutdownDrain = 100 * time.Millisecond
)

// Fifos is the sink subsystem: the channel endpoints plus the predefined
// hardware-event endpoint.
type Fifos struct {
	registry  *config.Registry
	basePath  string
	permafile bool

	writers   map[int]*channelWriter
	hw        *channelWriter
	fifoPaths []string
}

// New builds the subsystem; Create must be called before any dispatch.
func New(registry *config.Registry, basePath string, permafile bool) *Fifos {
	return &Fifos{
		registry:  registry,
		basePath:  basePath,
		permafile: permafile,
		writers:   make(map[int]*channelWriter),
	}
}

// Create makes one endpoint per configured channel and the hardware-event
// endpoint. Failure to create any endpoint is fatal to startup.
func (f *Fifos) Create() error {
	for _, i := range f.registry.ConfiguredChannels() {
		ch, err := f.registry.Channel(i)
		if err != nil {
			return err
		}
		w, err := f.newWriter(ch.Name)
		if err != nil {
			return err
		}
		f.writers[i] = w
	}

	hw, err := f.newWriter(consts.HwChannelName)
	if err != nil {
		return err
	}
	f.hw = hw
	return nil
}

// Dispatch routes one decoded message to its endpoint. Unconfigured
// channels are dropped silently; hardware packets go to the hw endpoint as
// hex lines.
func (f *Fifos) Dispatch(msg protocol.Message) {
	if msg.Type == protocol.MsgHardware {
		f.hw.write([]byte(fmt.Sprintf("%d,%d,%08x\n", msg.Channel, msg.Len, msg.Value)))
		return
	}

	w, ok := f.writers[int(msg.Channel)]
	if !ok {
		return
	}

	ch, err := f.registry.Channel(int(msg.Channel))
	if err != nil {
		return
	}
	w.write(Render(ch, msg))
}

// Shutdown stops intake on every endpoint, lets each flush briefly and
// removes the fifos. Permanent files are left in place; dispatches racing
// the shutdown are dropped.
func (f *Fifos) Shutdown() {
	for _, w := range f.writers {
		w.close()
	}
	if f.hw != nil {
		f.hw.close()
	}
	if !f.permafile {
		for _, p := range f.fifoPaths {
			if err := os.Remove(p); err != nil {
				slog.Warn("removing %s: %v", p, err)
			}
		}
	}
}

func (f *Fifos) newWriter(name string) (*channelWriter, error) {
	path := filepath.Join(f.basePath, name)

	var out *os.File
	var err error
	if f.permafile {
		out, err = os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to make channel device %s", path)
		}
	} else {
		if err = unix.Mkfifo(path, 0600); err != nil && !errors.Is(err, unix.EEXIST) {
			return nil, errors.Wrapf(err, "failed to make channel device %s", path)
		}
		// O_RDWR so the open does not block waiting for a reader
		out, err = os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open channel device %s", path)
		}
		f.fifoPaths = append(f.fifoPaths, path)
	}

	w := &channelWriter{
		out:  out,
		data: make(chan []byte, writerBacklog),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run(path)
	return w, nil
}

// channelWriter decouples dispatch from the endpoint write. data is never
// closed; intake stops when quit closes, so a dispatcher racing shutdown
// drops its message instead of panicking on a closed channel.
type channelWriter struct {
	out  *os.File
	data chan []byte
	quit chan struct{}
	done chan struct{}
}

func (w *channelWriter) run(path string) {
	defer close(w.done)
	defer w.out.Close()
	for {
		select {
		case <-w.quit:
			// flush whatever is already queued, then stop
			for {
				select {
				case buf := <-w.data:
					if _, err := w.out.Write(buf); err != nil {
						slog.Debug("write %s: %v", path, err)
					}
				default:
					return
				}
			}
		case buf := <-w.data:
			if _, err := w.out.Write(buf); err != nil {
				// a vanished reader surfaces as EPIPE here, not as a signal
				slog.Debug("write %s: %v", path, err)
			}
		}
	}
}

func (w *channelWriter) write(buf []byte) {
	select {
	case w.data <- buf:
	case <-w.quit:
	}
}

// close stops intake and gives the writer a bounded chance to flush. A
// goroutine stuck in a write to a stalled fifo is abandoned; the process
// is exiting anyway.
func (w *channelWriter) close() {
	close(w.quit)
	select {
	case <-w.done:
	case <-time.After(shutdownDrain):
	}
}
