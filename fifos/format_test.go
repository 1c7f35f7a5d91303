package fifos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbtools/itmsplit/config"
	"github.com/orbtools/itmsplit/protocol"
)

func TestRenderRaw(t *testing.T) {
	ch := &config.ChannelDef{Name: "raw"}
	msg := protocol.Message{Value: 0x00333231, Len: 4}
	assert.Equal(t, []byte{0x31, 0x32, 0x33, 0x00}, Render(ch, msg))
}

func TestRenderFormatted(t *testing.T) {
	cases := []struct {
		format   string
		value    uint32
		length   int
		expected string
	}{
		{"%c", 'A', 1, "A"},
		{"%02x\n", 0x7, 1, "07\n"},
		{"%d,%d", 5, 1, "5,5"},
		{"%08x=%c", 'Z', 4, "0000005a=Z"},
		{"100%% %d", 3, 1, "100% 3"},
	}

	for _, c := range cases {
		ch := &config.ChannelDef{Name: "x", Format: c.format, HasFormat: true}
		got := Render(ch, protocol.Message{Value: c.value, Len: c.length})
		assert.Equal(t, c.expected, string(got), "format %q", c.format)
	}
}

func TestRenderFormatWithoutVerbs(t *testing.T) {
	ch := &config.ChannelDef{Name: "x", Format: "tick\n", HasFormat: true}
	got := Render(ch, protocol.Message{Value: 9, Len: 1})
	assert.Equal(t, "tick\n", string(got))
}

func TestVerbCount(t *testing.T) {
	cases := []struct {
		format   string
		expected int
	}{
		{"", 0},
		{"plain", 0},
		{"%%", 0},
		{"%c", 1},
		{"%d %d", 2},
		{"%02x%%", 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, verbCount(c.format), "format %q", c.format)
	}
}
