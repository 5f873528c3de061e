// Package engine orchestrates scheduling runs. It loads the allocator's
// inputs from the store, executes one run at a time, persists the resulting
// schedule and queue transactionally, and fans progress, conflict and
// completion events out to SSE subscribers through the event broker.
package engine
