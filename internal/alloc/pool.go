package alloc

import (
	"sort"

	"github.com/drennalls/slotline/internal/model"
)

// Pool is the per-run resource ledger: machine slot occupancy plus
// per-hardware-combination usage counters over the run's horizon. It is
// built fresh at run start from the supplied inventory and the previously
// committed schedule, and is exclusively owned by one allocator run.
type Pool struct {
	machines  []*poolMachine
	combos    map[string]*poolCombo // keyed by platform/debugger
	byID      map[string]*poolCombo
	existing  []model.Assignment
	horizon   int
	startHour int // hour of day of slot 0
}

type poolMachine struct {
	id     string
	osType string
	busy   []bool
}

type poolCombo struct {
	combo model.HardwareCombination
	usage []int
}

// NewPool builds a ledger over horizonSlots hourly slots, with slot 0
// falling on startHour of day 0. Only machines in the "available" state
// participate; existing assignments seed occupancy and hardware usage so
// this run cannot double-book previously committed work.
func NewPool(machines []model.Machine, combos []model.HardwareCombination, existing []model.Assignment, horizonSlots, startHour int) *Pool {
	p := &Pool{
		combos:    make(map[string]*poolCombo, len(combos)),
		byID:      make(map[string]*poolCombo, len(combos)),
		existing:  existing,
		horizon:   horizonSlots,
		startHour: startHour,
	}

	for _, m := range machines {
		if m.State != model.MachineAvailable {
			continue
		}
		p.machines = append(p.machines, &poolMachine{
			id:     m.ID,
			osType: m.OSType,
			busy:   make([]bool, horizonSlots),
		})
	}
	sort.Slice(p.machines, func(i, j int) bool {
		return p.machines[i].id < p.machines[j].id
	})

	for _, c := range combos {
		pc := &poolCombo{combo: c, usage: make([]int, horizonSlots)}
		p.combos[c.Key()] = pc
		p.byID[c.ID] = pc
	}

	for _, a := range existing {
		p.seed(a, 0, horizonSlots)
	}

	return p
}

// seed marks an already-committed assignment's slots as occupied, restricted
// to the slot range [lo, hi). Assignment slot positions are absolute
// (day/hour of day); the ledger's are relative to startHour. The range
// restriction lets ExtendHorizon replay only the newly grown slots without
// double-counting hardware usage on slots seeded before.
func (p *Pool) seed(a model.Assignment, lo, hi int) {
	start := a.Start.Index() - p.startHour
	from := max(start, lo)
	to := min(start+a.Slots, hi)
	for _, m := range p.machines {
		if m.id != a.MachineID {
			continue
		}
		for s := from; s < to; s++ {
			if s >= 0 {
				m.busy[s] = true
			}
		}
	}
	if a.HardwareID == "" {
		return
	}
	if pc, ok := p.byID[a.HardwareID]; ok {
		for s := from; s < to; s++ {
			if s >= 0 {
				pc.usage[s]++
			}
		}
	}
}

// Horizon returns the current horizon length in slots.
func (p *Pool) Horizon() int {
	return p.horizon
}

// ExtendHorizon grows the ledger by n slots and replays committed
// assignments that reach into the new range, so a multi-day extension never
// exposes slots a prior run already booked.
func (p *Pool) ExtendHorizon(n int) {
	old := p.horizon
	p.horizon += n
	for _, m := range p.machines {
		m.busy = append(m.busy, make([]bool, n)...)
	}
	for _, pc := range p.combos {
		pc.usage = append(pc.usage, make([]int, n)...)
	}
	for _, a := range p.existing {
		p.seed(a, old, p.horizon)
	}
}

// SlotAt converts a ledger slot offset into its absolute day/hour position.
func (p *Pool) SlotAt(s int) model.TimeSlot {
	return model.SlotAt(p.startHour + s)
}

// MachineCount returns how many machines of the given OS type participate in
// this run.
func (p *Pool) MachineCount(osType string) int {
	n := 0
	for _, m := range p.machines {
		if m.osType == osType {
			n++
		}
	}
	return n
}

// Combo looks up a hardware combination by platform/debugger key.
func (p *Pool) Combo(key string) (model.HardwareCombination, bool) {
	pc, ok := p.combos[key]
	if !ok {
		return model.HardwareCombination{}, false
	}
	return pc.combo, true
}

// FindFreeMachineWindow scans machines of the required OS type in ascending
// identifier order and, per machine, scans the horizon for the earliest
// contiguous run of slotCount free slots. windowOK further constrains
// candidate start slots (hardware feasibility); it may be nil. The first
// feasible pair wins, which makes placement deterministic.
func (p *Pool) FindFreeMachineWindow(osType string, slotCount int, windowOK func(start int) bool) (machineID string, start int, found bool) {
	if slotCount <= 0 || slotCount > p.horizon {
		return "", 0, false
	}
	for _, m := range p.machines {
		if m.osType != osType {
			continue
		}
		for s := 0; s+slotCount <= p.horizon; s++ {
			if !m.freeWindow(s, slotCount) {
				continue
			}
			if windowOK != nil && !windowOK(s) {
				continue
			}
			return m.id, s, true
		}
	}
	return "", 0, false
}

func (m *poolMachine) freeWindow(start, count int) bool {
	for s := start; s < start+count; s++ {
		if m.busy[s] {
			return false
		}
	}
	return true
}

// HardwareAvailable reports whether the combination identified by key can
// absorb one more session for every slot in [start, start+count): the hour
// mask must allow each slot's hour and committed usage must be strictly
// below quantity.
func (p *Pool) HardwareAvailable(key string, start, count int) bool {
	maskOK, quantityOK := p.HardwareWindow(key, start, count)
	return maskOK && quantityOK
}

// HardwareWindow reports mask feasibility and quantity feasibility
// separately for the window [start, start+count), so conflict classification
// can tell hour exclusion apart from exhaustion. An unknown key behaves as
// quantity zero.
func (p *Pool) HardwareWindow(key string, start, count int) (maskOK, quantityOK bool) {
	pc, ok := p.combos[key]
	if !ok {
		return true, false
	}
	maskOK, quantityOK = true, true
	for s := start; s < start+count && s < p.horizon; s++ {
		if !pc.combo.Mask.Allows((p.startHour + s) % model.HoursPerDay) {
			maskOK = false
		}
		if pc.usage[s] >= pc.combo.Quantity {
			quantityOK = false
		}
	}
	return maskOK, quantityOK
}

// Reserve marks the machine's slots occupied and increments the
// combination's per-slot usage. Callers must have checked availability
// first; Reserve performs no validation of its own.
func (p *Pool) Reserve(machineID, key string, start, count int) {
	p.apply(machineID, key, start, count, true)
}

// Release is the inverse of Reserve, used only for rollback within a run.
func (p *Pool) Release(machineID, key string, start, count int) {
	p.apply(machineID, key, start, count, false)
}

func (p *Pool) apply(machineID, key string, start, count int, reserve bool) {
	for _, m := range p.machines {
		if m.id != machineID {
			continue
		}
		for s := start; s < start+count && s < p.horizon; s++ {
			m.busy[s] = reserve
		}
	}
	if key == "" {
		return
	}
	if pc, ok := p.combos[key]; ok {
		for s := start; s < start+count && s < p.horizon; s++ {
			if reserve {
				pc.usage[s]++
			} else if pc.usage[s] > 0 {
				pc.usage[s]--
			}
		}
	}
}

// eachCombo visits every combination ledger; used by conflict detection.
func (p *Pool) eachCombo(fn func(combo model.HardwareCombination, usage []int)) {
	ids := make([]string, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pc := p.byID[id]
		fn(pc.combo, pc.usage)
	}
}
