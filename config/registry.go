package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	slog "github.com/vearne/simplelog"

	"github.com/orbtools/itmsplit/consts"
)

// channel declaration errors
var (
	ErrChannelIndexOutOfRange = errors.New("channel index out of range")
	ErrMissingChannelName     = errors.New("no name for channel")
)

const specDelimiter = ","

// ChannelDef is one slot of the channel table. A slot with an empty name
// is unconfigured; a configured slot with HasFormat unset emits raw bytes.
type ChannelDef struct {
	Name      string `yaml:"name"`
	Format    string `yaml:"format"`
	HasFormat bool   `yaml:"-"`
}

// Configured reports whether the slot has been given a name.
func (c *ChannelDef) Configured() bool {
	return c.Name != ""
}

// Registry is the fixed-size channel table plus the TPIU/sync settings the
// decoder consults. Populated during option parsing, read-only afterwards.
type Registry struct {
	channels [consts.NumChannels]ChannelDef

	ForceSync   bool
	UseTPIU     bool
	TPIUChannel int
}

// NewRegistry returns a registry with forced sync on, TPIU off and the TPIU
// ITM stream defaulted to 1 should it be engaged later.
func NewRegistry() *Registry {
	return &Registry{
		ForceSync:   true,
		TPIUChannel: 1,
	}
}

// NumChannels is the size of the channel table.
func (r *Registry) NumChannels() int {
	return consts.NumChannels
}

// Channel returns the definition for the given slot.
func (r *Registry) Channel(index int) (*ChannelDef, error) {
	if index < 0 || index >= consts.NumChannels {
		return nil, errors.Wrapf(ErrChannelIndexOutOfRange, "channel %d", index)
	}
	return &r.channels[index], nil
}

// SetChannel declares or overwrites one channel. The last declaration for a
// given index wins completely, format included.
func (r *Registry) SetChannel(index int, name, format string, hasFormat bool) error {
	if index < 0 || index >= consts.NumChannels {
		return errors.Wrapf(ErrChannelIndexOutOfRange, "channel %d", index)
	}
	if name == "" {
		return errors.Wrapf(ErrMissingChannelName, "channel %d", index)
	}
	r.channels[index] = ChannelDef{Name: name, Format: format, HasFormat: hasFormat}
	return nil
}

// SetChannelSpec parses a command-line declaration of the form
// <index>,<name>[,<format>]. The format keeps any further delimiters and is
// unescaped before storage, so control characters can be embedded.
func (r *Registry) SetChannelSpec(spec string) error {
	parts := strings.SplitN(spec, specDelimiter, 3)

	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return errors.Wrapf(err, "bad channel index in %q", spec)
	}
	if index < 0 || index >= consts.NumChannels {
		return errors.Wrapf(ErrChannelIndexOutOfRange, "channel %d", index)
	}

	if len(parts) < 2 || parts[1] == "" {
		return errors.Wrapf(ErrMissingChannelName, "channel %d", index)
	}
	name := parts[1]

	if len(parts) < 3 {
		slog.Warn("no output format for channel %d, output raw!", index)
		return r.SetChannel(index, name, "", false)
	}

	return r.SetChannel(index, name, Unescape(parts[2]), true)
}

// ConfiguredChannels returns the indices of all named slots, in order.
func (r *Registry) ConfiguredChannels() []int {
	var out []int
	for i := range r.channels {
		if r.channels[i].Configured() {
			out = append(out, i)
		}
	}
	return out
}
