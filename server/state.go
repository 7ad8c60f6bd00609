package server

import "fmt"

// ConnState is the lifecycle of one accepted connection.
//
//	Accepted → Reading → EOFReached → Decoding → Done
//	              └─────────→ Aborted ←────┘
type ConnState int

const (
	StateAccepted ConnState = iota
	StateReading
	StateEOFReached
	StateDecoding
	StateDone
	StateAborted
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateReading:
		return "reading"
	case StateEOFReached:
		return "eof"
	case StateDecoding:
		return "decoding"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows.
func (s ConnState) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// StateHook observes every transition. err is set only on StateAborted.
// Hooks run on the connection's goroutine and must be safe for concurrent use.
type StateHook func(connID string, state ConnState, err error)
