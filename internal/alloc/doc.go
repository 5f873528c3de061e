// Package alloc implements the scheduling core: it places pending test
// sessions, in priority order, into hourly slots on OS-typed machines while
// honouring hardware-combination quantity limits and hour masks. The
// allocator is a pure function of its inputs plus the previously committed
// schedule; persistence and event fan-out are handled by callers.
package alloc
