package monitor

import "sync/atomic"

// State is the scheduler's position in its refresh cycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateSmartRefresh
	StateFullRefresh
	StateErrorBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSmartRefresh:
		return "smart_refresh"
	case StateFullRefresh:
		return "full_refresh"
	case StateErrorBackoff:
		return "error_backoff"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State   { return State(c.v.Load()) }
func (c *stateCell) store(s State) { c.v.Store(int32(s)) }
