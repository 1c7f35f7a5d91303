// Package filewriter implements the host side of the target-driven file
// protocol carried on a reserved stimulus channel. Each write is a command
// byte followed by zero, one or two data bytes:
//
//	NN CCC FFF
//	NN  - number of data bytes in this frame (0..2)
//	CCC - command
//	FFF - file slot
package filewriter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	slog "github.com/vearne/simplelog"

	"github.com/orbtools/itmsplit/consts"
	"github.com/orbtools/itmsplit/protocol"
)

const (
	cmdNull       = 0
	cmdOpenAppend = 1
	cmdOpenErase  = 2
	cmdClose      = 3
	cmdErase      = 4
	cmdWrite      = 5
)

// Filewriter holds the file slots the protocol addresses. Filenames are
// accumulated from null-command data bytes before the open command for the
// slot arrives; a slot opened without a pending name gets a default one.
type Filewriter struct {
	basedir string
	files   [consts.FwMaxFiles]*os.File
	names   [consts.FwMaxFiles][]byte
}

// New prepares the base directory.
func New(basedir string) (*Filewriter, error) {
	if err := os.MkdirAll(basedir, 0755); err != nil {
		return nil, errors.Wrapf(err, "filewriter base %s", basedir)
	}
	return &Filewriter{basedir: basedir}, nil
}

// Process consumes one stimulus write from the filewriter channel. Returns
// false on a malformed or failing command; the stream keeps going either
// way.
func (fw *Filewriter) Process(msg protocol.Message) bool {
	if msg.Len < 1 {
		return false
	}

	cmd := byte(msg.Value)
	count := int(cmd>>6) & 3
	if count == 3 || count > msg.Len-1 {
		slog.Warn("malformed filewriter frame 0x%02x", cmd)
		return false
	}
	id := int(cmd & 7)

	data := make([]byte, count)
	for i := 0; i < count; i++ {
		data[i] = byte(msg.Value >> (8 * (i + 1)))
	}

	switch (cmd >> 3) & 7 {
	case cmdNull:
		fw.names[id] = append(fw.names[id], data...)
		return true
	case cmdOpenAppend:
		return fw.open(id, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
	case cmdOpenErase:
		return fw.open(id, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
	case cmdClose:
		return fw.close(id)
	case cmdErase:
		return fw.erase(id)
	case cmdWrite:
		if fw.files[id] == nil {
			slog.Warn("filewriter write to closed slot %d", id)
			return false
		}
		if _, err := fw.files[id].Write(data); err != nil {
			slog.Error("filewriter slot %d: %v", id, err)
			return false
		}
		return true
	}

	slog.Warn("unknown filewriter command 0x%02x", cmd)
	return false
}

// Shutdown closes any slots still open.
func (fw *Filewriter) Shutdown() {
	for id, f := range fw.files {
		if f != nil {
			f.Close()
			fw.files[id] = nil
		}
	}
}

func (fw *Filewriter) path(id int) string {
	name := string(fw.names[id])
	if name == "" {
		name = fmt.Sprintf("file%d", id)
	}
	// the name came off the wire; keep it inside basedir
	return filepath.Join(fw.basedir, filepath.Base(name))
}

func (fw *Filewriter) open(id int, flags int) bool {
	if fw.files[id] != nil {
		fw.close(id)
	}
	f, err := os.OpenFile(fw.path(id), flags, 0644)
	if err != nil {
		slog.Error("filewriter open slot %d: %v", id, err)
		return false
	}
	fw.files[id] = f
	return true
}

func (fw *Filewriter) close(id int) bool {
	if fw.files[id] == nil {
		return false
	}
	err := fw.files[id].Close()
	fw.files[id] = nil
	fw.names[id] = nil
	return err == nil
}

func (fw *Filewriter) erase(id int) bool {
	fw.close(id)
	if err := os.Remove(fw.path(id)); err != nil && !os.IsNotExist(err) {
		slog.Error("filewriter erase slot %d: %v", id, err)
		return false
	}
	fw.names[id] = nil
	return true
}
