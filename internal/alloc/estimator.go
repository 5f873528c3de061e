package alloc

import (
	"math"

	"github.com/drennalls/slotline/internal/model"
)

// Default per-test-case execution minutes.
const (
	DefaultNormalMinutes = 5
	DefaultComboMinutes  = 120
)

// Estimator converts a session's outstanding test-case counts into a
// required duration. Only failed and not-run cases count; passed cases are
// already done. The estimator never fails — invalid counts degrade to zero.
type Estimator struct {
	NormalMinutes float64
	ComboMinutes  float64
}

// NewEstimator returns an estimator with the default per-case minutes.
func NewEstimator() Estimator {
	return Estimator{
		NormalMinutes: DefaultNormalMinutes,
		ComboMinutes:  DefaultComboMinutes,
	}
}

// Estimate returns the required execution time in hours, truncated to two
// decimal places (never rounded up).
func (e Estimator) Estimate(normal, combo model.TestCounts) float64 {
	minutes := float64(normal.ToRun())*e.NormalMinutes + float64(combo.ToRun())*e.ComboMinutes
	return math.Floor(minutes/60*100) / 100
}

// HoursToSlots converts an estimated duration into whole hourly slots. The
// allocator reserves full slots even for fractional hours, and every session
// entering a run occupies at least one slot.
func HoursToSlots(hours float64) int {
	slots := int(math.Ceil(hours))
	if slots < 1 {
		return 1
	}
	return slots
}
