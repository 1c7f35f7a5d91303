package acquire

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Source is one open byte stream. Deadlines bound the readiness wait; a
// source that cannot honour deadlines (a regular file) reports
// os.ErrNoDeadline and is treated as always readable.
type Source interface {
	io.ReadCloser
	SetReadDeadline(t time.Time) error
}

// dialSource connects to the trace server. The socket carries SO_REUSEADDR
// so rapid reconnect cycles do not trip over lingering sockets.
func dialSource(ctx context.Context, server string, port int) (Source, error) {
	dialer := net.Dialer{
		Control: func(network, address string, c syscall.RawConn) error {
			var soErr error
			err := c.Control(func(fd uintptr) {
				soErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return soErr
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", server, port))
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// fileSource reads a capture file, transparently ungzipping *.gz.
type fileSource struct {
	reader io.Reader
	file   *os.File
}

func openFileSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open file %s", path)
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "can't open file %s", path)
		}
		return &fileSource{reader: gz, file: f}, nil
	}
	return &fileSource{reader: f, file: f}, nil
}

func (s *fileSource) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *fileSource) Close() error {
	return s.file.Close()
}

// SetReadDeadline reports ErrNoDeadline: a file is always readable, the
// same way select(2) treats a regular file descriptor.
func (s *fileSource) SetReadDeadline(time.Time) error {
	return os.ErrNoDeadline
}
