package roi

import (
	"errors"
	"fmt"
)

const (
	// MinSensitivity is the lowest selectable sensitivity level.
	MinSensitivity = 0
	// MaxSensitivity is the highest selectable sensitivity level.
	MaxSensitivity = 9
	// DefaultSensitivity is used when no level was chosen.
	DefaultSensitivity = 5
)

// ErrInvalidSensitivity is returned for levels outside [MinSensitivity, MaxSensitivity].
var ErrInvalidSensitivity = errors.New("invalid sensitivity level")

// Thresholds holds the Canny hysteresis thresholds for one sensitivity level.
type Thresholds struct {
	Low  float32
	High float32
}

var sensitivityTable = [MaxSensitivity + 1]Thresholds{
	{Low: 10, High: 20},
	{Low: 15, High: 30},
	{Low: 20, High: 40},
	{Low: 25, High: 50},
	{Low: 30, High: 60},
	{Low: 35, High: 70},
	{Low: 40, High: 80},
	{Low: 45, High: 90},
	{Low: 50, High: 100},
	{Low: 55, High: 110},
}

// ValidSensitivity reports whether level can be passed to ThresholdsFor.
func ValidSensitivity(level int) bool {
	return level >= MinSensitivity && level <= MaxSensitivity
}

// ThresholdsFor returns the Canny thresholds for a sensitivity level.
func ThresholdsFor(level int) (Thresholds, error) {
	if !ValidSensitivity(level) {
		return Thresholds{}, fmt.Errorf("%w: %d (expected %d-%d)", ErrInvalidSensitivity, level, MinSensitivity, MaxSensitivity)
	}
	return sensitivityTable[level], nil
}
