package alloc

import (
	"github.com/drennalls/slotline/internal/model"
)

// Classify determines why no feasible placement exists for a session after
// the full horizon has been scanned. The result becomes the session's
// QueueEntry reason.
//
// For hardware-requiring sessions the blockers are checked from most to
// least specific: if no window of the required length passes the hour mask
// at all, the mask is the blocker; if mask-feasible windows exist but none
// has spare quantity, the combination is exhausted; otherwise the hardware
// is fine and machines are the blocker.
func Classify(session model.Session, slots int, pool *Pool) string {
	if session.Hardware == nil {
		return model.ReasonNoMachine
	}

	key := model.HardwareKey(session.Hardware.Platform, session.Hardware.Debugger)
	if _, ok := pool.Combo(key); !ok {
		// Absent from inventory behaves as quantity zero.
		return model.ReasonHardwareQuantity
	}
	if slots > pool.Horizon() {
		// No window of the required length fits the horizon at all; that is
		// a capacity problem, not the hardware's hours or quantity.
		return model.ReasonNoMachine
	}

	anyMaskOK := false
	anyBothOK := false
	for start := 0; start+slots <= pool.Horizon(); start++ {
		maskOK, quantityOK := pool.HardwareWindow(key, start, slots)
		if maskOK {
			anyMaskOK = true
			if quantityOK {
				anyBothOK = true
				break
			}
		}
	}
	if !anyMaskOK {
		return model.ReasonHardwareHours
	}
	if !anyBothOK {
		return model.ReasonHardwareQuantity
	}
	return model.ReasonNoMachine
}

// DetectOverallocations reports pre-existing invariant violations in the
// seeded ledger: slots where committed usage already exceeds a combination's
// quantity, or where usage falls on an hour the mask excludes. Violations
// are reported once per (combination, slot) and never repaired; the
// allocator only avoids creating new ones.
func DetectOverallocations(pool *Pool) []model.Conflict {
	var conflicts []model.Conflict
	pool.eachCombo(func(combo model.HardwareCombination, usage []int) {
		for s, n := range usage {
			if n == 0 {
				continue
			}
			slot := pool.SlotAt(s)
			if !combo.Mask.Allows(slot.Hour) {
				conflicts = append(conflicts, model.Conflict{
					HardwareID: combo.ID,
					Slot:       slot,
					Demand:     n,
					Capacity:   0,
				})
				continue
			}
			if n > combo.Quantity {
				conflicts = append(conflicts, model.Conflict{
					HardwareID: combo.ID,
					Slot:       slot,
					Demand:     n,
					Capacity:   combo.Quantity,
				})
			}
		}
	})
	return conflicts
}
