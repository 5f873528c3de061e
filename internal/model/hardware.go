package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HoursPerDay is the number of hourly slots in one scheduling day.
const HoursPerDay = 24

// HourMask marks, per hour of day, whether a hardware combination may be
// used at all. The mask repeats for every day of a multi-day horizon and is
// independent of the combination's quantity.
type HourMask [HoursPerDay]bool

// FullDay returns a mask with every hour enabled.
func FullDay() HourMask {
	var m HourMask
	for i := range m {
		m[i] = true
	}
	return m
}

// Allows reports whether the given hour of day (0-23) is enabled.
func (m HourMask) Allows(hour int) bool {
	if hour < 0 || hour >= HoursPerDay {
		return false
	}
	return m[hour]
}

// String encodes the mask as 24 '0'/'1' characters, hour 0 first.
func (m HourMask) String() string {
	var b strings.Builder
	for _, on := range m {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ParseHourMask decodes a 24-character '0'/'1' string into an HourMask.
// An empty string yields a full-day mask.
func ParseHourMask(s string) (HourMask, error) {
	if s == "" {
		return FullDay(), nil
	}
	var m HourMask
	if len(s) != HoursPerDay {
		return m, fmt.Errorf("hour mask must be %d characters, got %d", HoursPerDay, len(s))
	}
	for i := 0; i < HoursPerDay; i++ {
		switch s[i] {
		case '1':
			m[i] = true
		case '0':
			m[i] = false
		default:
			return m, fmt.Errorf("hour mask may only contain '0' and '1', got %q at position %d", s[i], i)
		}
	}
	return m, nil
}

// MarshalJSON encodes the mask as its 24-character string form.
func (m HourMask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes the 24-character string form.
func (m *HourMask) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHourMask(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// HardwareCombination is a shared, quantity-limited debugger/platform pairing.
// At any hour, concurrent sessions drawing on a combination must not exceed
// Quantity, and may only use hours enabled in Mask.
type HardwareCombination struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Debugger  string    `json:"debugger"`
	Quantity  int       `json:"quantity"`
	Mask      HourMask  `json:"hours_mask"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the platform/debugger lookup key sessions reference
// combinations by.
func (h *HardwareCombination) Key() string {
	return HardwareKey(h.Platform, h.Debugger)
}

// HardwareKey builds the canonical lookup key for a platform/debugger pair.
func HardwareKey(platform, debugger string) string {
	return platform + "/" + debugger
}
