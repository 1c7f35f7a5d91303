// Package config holds the resolved application settings and the channel
// registry, plus the flag collectors used to populate them from the
// command line.
package config

import (
	"fmt"
	"time"

	"github.com/buger/goreplay/size"
	"github.com/orbtools/itmsplit/consts"
)

// MultiStringOption implements a string flag that may be given several
// times; every value is collected into the backing slice.
type MultiStringOption struct {
	Params *[]string
}

func (h *MultiStringOption) String() string {
	if h.Params == nil {
		return ""
	}
	return fmt.Sprint(*h.Params)
}

// Set gets called multiple times for each flag with same name
func (h *MultiStringOption) Set(value string) error {
	if h.Params == nil {
		return nil
	}

	*h.Params = append(*h.Params, value)
	return nil
}

// ChannelOption parses repeated -c declarations straight into a Registry.
// Parsing stops the whole flag scan at the first bad declaration.
type ChannelOption struct {
	Registry *Registry
	Specs    *[]string
}

func (h *ChannelOption) String() string {
	if h.Specs == nil {
		return ""
	}
	return fmt.Sprint(*h.Specs)
}

func (h *ChannelOption) Set(value string) error {
	if err := h.Registry.SetChannelSpec(value); err != nil {
		return err
	}
	*h.Specs = append(*h.Specs, value)
	return nil
}

// AppSettings is the resolved configuration. It is immutable once Parse
// has returned; the acquisition loop only ever reads it.
type AppSettings struct {
	// source
	Server        string        `json:"server"`
	Port          int           `json:"port"`
	InputFile     string        `json:"input-file"`
	FileTerminate bool          `json:"terminate-on-eof"`
	StallInterval time.Duration `json:"stall-interval"`
	BufferSize    size.Size     `json:"buffer-size"`

	// channels / sinks
	BasePath     string   `json:"base-path"`
	ChannelSpecs []string `json:"channel"`
	ChannelFile  string   `json:"channel-file"`
	Permafile    bool     `json:"permanent-files"`

	// decode
	NoForceSync bool `json:"no-force-sync"`
	TPIUChannel int  `json:"tpiu-channel"`

	// filewriter
	Filewriter   bool   `json:"filewriter"`
	FwBaseDir    string `json:"filewriter-base-dir"`

	// raw capture recording
	RecordDir        string `json:"record-directory"`
	RecordMaxSize    int    `json:"record-max-size"`
	RecordMaxBackups int    `json:"record-max-backups"`
	RecordMaxAge     int    `json:"record-max-age"`

	// kafka publishing of decoded channel traffic
	KafkaBrokers []string `json:"kafka-broker"`
	KafkaTopic   string   `json:"kafka-topic"`

	Verbosity int           `json:"verbosity"`
	ExitAfter time.Duration `json:"exit-after"`
	Version   bool          `json:"version"`
}

// NewAppSettings returns settings primed with the built-in defaults.
func NewAppSettings() *AppSettings {
	return &AppSettings{
		Server:        consts.DefaultServer,
		Port:          consts.DefaultServerPort,
		StallInterval: time.Second,
		BufferSize:    size.Size(consts.DefaultTransferSize),
		TPIUChannel:   -1,
		KafkaTopic:    "itm",
	}
}
