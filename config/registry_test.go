package config

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSetChannelSpec(t *testing.T) {
	r := NewRegistry()
	err := r.SetChannelSpec("2,trace,%02x")
	assert.Nil(t, err)

	ch, err := r.Channel(2)
	assert.Nil(t, err)
	assert.Equal(t, "trace", ch.Name)
	assert.Equal(t, "%02x", ch.Format)
	assert.True(t, ch.HasFormat)
}

func TestSetChannelSpecRawWhenFormatAbsent(t *testing.T) {
	r := NewRegistry()
	err := r.SetChannelSpec("5,swo")
	assert.Nil(t, err)

	ch, _ := r.Channel(5)
	assert.Equal(t, "swo", ch.Name)
	assert.False(t, ch.HasFormat)
}

func TestSetChannelSpecIndexOutOfRange(t *testing.T) {
	r := NewRegistry()
	for _, spec := range []string{"32,too-high", "100,way-too-high,%c", "-1,negative"} {
		err := r.SetChannelSpec(spec)
		assert.True(t, errors.Is(err, ErrChannelIndexOutOfRange), "spec %q", spec)
	}
	// registry left unchanged
	assert.Empty(t, r.ConfiguredChannels())
}

func TestSetChannelSpecMissingName(t *testing.T) {
	r := NewRegistry()
	for _, spec := range []string{"3", "3,"} {
		err := r.SetChannelSpec(spec)
		assert.True(t, errors.Is(err, ErrMissingChannelName), "spec %q", spec)
	}
	assert.Empty(t, r.ConfiguredChannels())
}

func TestLastDeclarationWins(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.SetChannelSpec("2,trace,%02x"))
	assert.Nil(t, r.SetChannelSpec("2,override"))

	ch, _ := r.Channel(2)
	assert.Equal(t, "override", ch.Name)
	assert.False(t, ch.HasFormat)
	assert.Equal(t, "", ch.Format)
}

func TestFormatKeepsTrailingDelimiters(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.SetChannelSpec("1,csv,%d,%d"))

	ch, _ := r.Channel(1)
	assert.Equal(t, "%d,%d", ch.Format)
}

func TestFormatIsUnescaped(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.SetChannelSpec(`0,console,%c\n`))

	ch, _ := r.Channel(0)
	assert.Equal(t, "%c\n", ch.Format)
}

func TestConfiguredChannels(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.SetChannelSpec("7,seven"))
	assert.Nil(t, r.SetChannelSpec("1,one"))
	assert.Equal(t, []int{1, 7}, r.ConfiguredChannels())
}
