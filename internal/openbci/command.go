package openbci

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/units"
)

// DefaultGain is the amplifier gain used when none is configured.
const DefaultGain = 24

// ErrInvalidGain is returned for a gain the amplifier does not support.
var ErrInvalidGain = errors.New("invalid gain")

// CytonCommand builds the channel settings string for a Cyton-family board:
// one x{id}{power}{gain}0110X token per physical channel, where power is 1 for
// channels (1-based) in disable. Other boards take no command and get "".
func CytonCommand(board boards.Descriptor, gain int, disable []int) (string, error) {
	if !board.IsCyton() {
		return "", nil
	}
	code, ok := units.GainCode(gain)
	if !ok {
		return "", fmt.Errorf("%w %d: expected one of %s", ErrInvalidGain, gain, units.GetValidGainsString())
	}

	var b strings.Builder
	for i, id := range []byte(board.CytonChannelIDs()) {
		power := 0
		if slices.Contains(disable, i+1) {
			power = 1
		}
		fmt.Fprintf(&b, "x%c%d%d0110X", id, power, code)
	}
	return b.String(), nil
}
