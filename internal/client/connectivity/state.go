// Package connectivity turns link and backend reachability checks into a
// stream of typed state changes.
package connectivity

// Reachability is a tri-state: a probe may not know yet.
type Reachability int

const (
	ReachabilityUnknown Reachability = iota
	Reachable
	Unreachable
)

func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

type State struct {
	Connected         bool
	InternetReachable Reachability
}

// Online is true when a link is up and the backend is not known to be
// unreachable. Unknown reachability counts as online.
func (s State) Online() bool {
	return s.Connected && s.InternetReachable != Unreachable
}
