// Package units provides the ADC scale factors for Cyton-family boards.
package units

import "fmt"

const (
	// CytonVref is the ADS1299 reference voltage in volts.
	CytonVref = 4.5
	// cytonFullScale is 2^23 - 1, the largest positive 24-bit sample.
	cytonFullScale = 8388607
	// AccelScale converts LIS3DH counts to g (0.002 g per LSB, left justified by 4 bits).
	AccelScale = 0.002 / 16
)

// ValidGains lists the programmable amplifier gains of the ADS1299.
var ValidGains = []int{1, 2, 4, 6, 8, 12, 24}

// IsValidGain checks if the given gain is supported by the amplifier.
func IsValidGain(gain int) bool {
	_, ok := GainCode(gain)
	return ok
}

// GetValidGainsString returns a comma-separated string of valid gains for error messages
func GetValidGainsString() string {
	return "1, 2, 4, 6, 8, 12, 24"
}

// GainCode returns the ADS1299 register code for gain, which is its position
// in ValidGains.
func GainCode(gain int) (int, bool) {
	for i, g := range ValidGains {
		if g == gain {
			return i, true
		}
	}
	return 0, false
}

// GainFromCode is the inverse of GainCode.
func GainFromCode(code int) (int, bool) {
	if code < 0 || code >= len(ValidGains) {
		return 0, false
	}
	return ValidGains[code], true
}

// MicrovoltsPerCount returns the EEG scale factor for the given amplifier gain.
func MicrovoltsPerCount(gain int) (float64, error) {
	if !IsValidGain(gain) {
		return 0, fmt.Errorf("invalid gain %d: expected one of %s", gain, GetValidGainsString())
	}
	return CytonVref / float64(gain) / cytonFullScale * 1e6, nil
}

// CountsToMicrovolts converts a raw 24-bit sample to microvolts.
func CountsToMicrovolts(counts int32, gain int) float64 {
	scale, err := MicrovoltsPerCount(gain)
	if err != nil {
		return 0
	}
	return float64(counts) * scale
}

// AccelCountsToG converts a raw accelerometer reading to g.
func AccelCountsToG(counts int16) float64 {
	return float64(counts) * AccelScale
}
