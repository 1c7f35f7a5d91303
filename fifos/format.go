package fifos

import (
	"fmt"
	"strings"

	"github.com/orbtools/itmsplit/config"
	"github.com/orbtools/itmsplit/protocol"
)

// Render turns one stimulus write into the bytes for its endpoint. An
// unformatted channel passes the payload bytes through untouched; a
// formatted one renders the payload value with the channel's printf-style
// format string.
func Render(ch *config.ChannelDef, msg protocol.Message) []byte {
	if !ch.HasFormat {
		return msg.Bytes()
	}

	n := verbCount(ch.Format)
	if n == 0 {
		return []byte(ch.Format)
	}
	args := make([]interface{}, n)
	for i := range args {
		args[i] = msg.Value
	}
	return []byte(fmt.Sprintf(ch.Format, args...))
}

// verbCount counts argument-consuming verbs ("%%" does not count). The
// value is repeated per verb, so a format like "%02x=%c" renders both from
// the same write.
func verbCount(format string) int {
	n := 0
	rest := format
	for {
		i := strings.IndexByte(rest, '%')
		if i < 0 || i+1 >= len(rest) {
			return n
		}
		if rest[i+1] == '%' {
			rest = rest[i+2:]
			continue
		}
		n++
		rest = rest[i+1:]
	}
}
