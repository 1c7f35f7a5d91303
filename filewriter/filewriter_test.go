package filewriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbtools/itmsplit/protocol"
)

const (
	bitsShift = 6
	cmdShift  = 3
)

// frame builds one stimulus write carrying a filewriter command with up to
// two data bytes.
func frame(cmd, id int, data ...byte) protocol.Message {
	value := uint32(len(data)<<bitsShift | cmd<<cmdShift | id)
	for i, b := range data {
		value |= uint32(b) << (8 * (i + 1))
	}
	return protocol.Message{Type: protocol.MsgSoftware, Value: value, Len: 1 + len(data)}
}

func send(fw *Filewriter, msgs ...protocol.Message) {
	for _, m := range msgs {
		fw.Process(m)
	}
}

func TestWriteNamedFile(t *testing.T) {
	dir := t.TempDir()
	fw, err := New(dir)
	assert.Nil(t, err)

	send(fw,
		frame(cmdNull, 0, 'l', 'o'),
		frame(cmdNull, 0, 'g'),
		frame(cmdOpenErase, 0),
		frame(cmdWrite, 0, 'h', 'i'),
		frame(cmdWrite, 0, '!'),
		frame(cmdClose, 0),
	)
	fw.Shutdown()

	content, err := os.ReadFile(filepath.Join(dir, "log"))
	assert.Nil(t, err)
	assert.Equal(t, "hi!", string(content))
}

func TestDefaultSlotName(t *testing.T) {
	dir := t.TempDir()
	fw, err := New(dir)
	assert.Nil(t, err)

	send(fw,
		frame(cmdOpenErase, 3),
		frame(cmdWrite, 3, 'z'),
	)
	fw.Shutdown()

	content, err := os.ReadFile(filepath.Join(dir, "file3"))
	assert.Nil(t, err)
	assert.Equal(t, "z", string(content))
}

func TestOpenAppendKeepsContent(t *testing.T) {
	dir := t.TempDir()
	fw, err := New(dir)
	assert.Nil(t, err)

	send(fw,
		frame(cmdOpenErase, 0),
		frame(cmdWrite, 0, 'a'),
		frame(cmdClose, 0),
		frame(cmdOpenAppend, 0),
		frame(cmdWrite, 0, 'b'),
		frame(cmdClose, 0),
	)
	fw.Shutdown()

	content, err := os.ReadFile(filepath.Join(dir, "file0"))
	assert.Nil(t, err)
	assert.Equal(t, "ab", string(content))
}

func TestEraseRemovesFile(t *testing.T) {
	dir := t.TempDir()
	fw, err := New(dir)
	assert.Nil(t, err)

	send(fw,
		frame(cmdOpenErase, 1),
		frame(cmdWrite, 1, 'x'),
		frame(cmdClose, 1),
	)
	assert.True(t, fw.Process(frame(cmdErase, 1)))

	_, err = os.Stat(filepath.Join(dir, "file1"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteToClosedSlotFails(t *testing.T) {
	fw, err := New(t.TempDir())
	assert.Nil(t, err)
	assert.False(t, fw.Process(frame(cmdWrite, 0, 'x')))
}

func TestMalformedFrameRejected(t *testing.T) {
	fw, err := New(t.TempDir())
	assert.Nil(t, err)

	// claims two data bytes but carries none
	assert.False(t, fw.Process(protocol.Message{Value: uint32(2<<bitsShift | cmdWrite<<cmdShift), Len: 1}))
	// empty message
	assert.False(t, fw.Process(protocol.Message{Len: 0}))
}
