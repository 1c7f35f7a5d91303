package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDefaults(t *testing.T) {
	settings, registry, err := Parse("itmsplit", nil)
	assert.Nil(t, err)

	assert.Equal(t, "localhost", settings.Server)
	assert.Equal(t, 3443, settings.Port)
	assert.Equal(t, time.Second, settings.StallInterval)
	assert.True(t, registry.ForceSync)
	assert.False(t, registry.UseTPIU)
	assert.Empty(t, registry.ConfiguredChannels())
}

func TestParseChannelsAndModes(t *testing.T) {
	settings, registry, err := Parse("itmsplit", []string{
		"-b", "/tmp/chans",
		"-c", "0,console,%c",
		"-c", "1,raw",
		"-e",
		"-f", "trace.bin",
		"-n",
		"-P",
		"-t", "1",
		"-v", "3",
		"-w", "/tmp/fw",
	})
	assert.Nil(t, err)

	assert.Equal(t, "/tmp/chans", settings.BasePath)
	assert.True(t, settings.FileTerminate)
	assert.Equal(t, "trace.bin", settings.InputFile)
	assert.True(t, settings.Permafile)
	assert.Equal(t, 3, settings.Verbosity)
	assert.True(t, settings.Filewriter)
	assert.Equal(t, "/tmp/fw", settings.FwBaseDir)

	assert.False(t, registry.ForceSync)
	assert.True(t, registry.UseTPIU)
	assert.Equal(t, 1, registry.TPIUChannel)
	assert.Equal(t, []int{0, 1}, registry.ConfiguredChannels())

	ch, _ := registry.Channel(0)
	assert.Equal(t, "console", ch.Name)
	assert.Equal(t, "%c", ch.Format)
}

func TestParseHelp(t *testing.T) {
	_, _, err := Parse("itmsplit", []string{"-h"})
	assert.Equal(t, flag.ErrHelp, err)
}

func TestParseUnknownOption(t *testing.T) {
	_, _, err := Parse("itmsplit", []string{"-Z"})
	assert.NotNil(t, err)
	assert.NotEqual(t, flag.ErrHelp, err)
}

func TestParseMissingArgument(t *testing.T) {
	_, _, err := Parse("itmsplit", []string{"-b"})
	assert.NotNil(t, err)
}

func TestParseBadChannelStopsParsing(t *testing.T) {
	_, _, err := Parse("itmsplit", []string{"-c", "40,out-of-range", "-v", "3"})
	assert.NotNil(t, err)
}

func TestParseBufferSize(t *testing.T) {
	settings, _, err := Parse("itmsplit", []string{"-buffer-size", "64kb"})
	assert.Nil(t, err)
	assert.Equal(t, int64(64*1024), int64(settings.BufferSize))
}

func TestParseChannelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")
	content := `
channels:
  - index: 0
    name: console
    format: "%c"
  - index: 3
    name: binary
`
	assert.Nil(t, os.WriteFile(path, []byte(content), 0644))

	_, registry, err := Parse("itmsplit", []string{"-y", path})
	assert.Nil(t, err)
	assert.Equal(t, []int{0, 3}, registry.ConfiguredChannels())

	ch, _ := registry.Channel(0)
	assert.Equal(t, "%c", ch.Format)
	assert.True(t, ch.HasFormat)

	ch, _ = registry.Channel(3)
	assert.False(t, ch.HasFormat)
}

func TestParseChannelFileBadIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")
	assert.Nil(t, os.WriteFile(path, []byte("channels:\n  - index: 99\n    name: nope\n"), 0644))

	_, _, err := Parse("itmsplit", []string{"-y", path})
	assert.NotNil(t, err)
}
