package consts

// populated by ldflags at build time
var (
	Version   string
	BuildTime string
	GitTag    string
)

const (
	// NumChannels is the number of software stimulus ports the ITM carries.
	NumChannels = 32

	// HwChannelName is the predefined endpoint for hardware source packets.
	HwChannelName = "hwevent"

	// FwChannel is the stimulus port reserved for the filewriter protocol.
	FwChannel = 29

	// FwMaxFiles is the number of file slots the filewriter protocol addresses.
	FwMaxFiles = 8

	// DefaultServerPort is the legacy trace server port.
	DefaultServerPort = 3443

	DefaultServer = "localhost"

	// DefaultTransferSize bounds a single read from the source.
	DefaultTransferSize = 65536 * 4
)
