// Package record taps the raw acquired byte stream into rotating capture
// files, which can be fed back in later with -f (rotated files are
// gzipped and read back transparently).
package record

import (
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Recorder is an io.WriteCloser over a size-rotated capture file.
type Recorder struct {
	logger *lumberjack.Logger
}

// NewRecorder writes capture.raw under dir. maxSize is in megabytes,
// maxAge in days.
func NewRecorder(dir string, maxSize, maxBackups, maxAge int) *Recorder {
	return &Recorder{
		logger: &lumberjack.Logger{
			Filename:   filepath.Join(dir, "capture.raw"),
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   true,
		},
	}
}

func (r *Recorder) Write(p []byte) (int, error) {
	return r.logger.Write(p)
}

func (r *Recorder) Close() error {
	return r.logger.Close()
}
