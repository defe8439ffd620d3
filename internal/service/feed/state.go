package feed

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	Received    int64 `json:"received"`
	Heartbeats  int64 `json:"heartbeats"`
	Matched     int64 `json:"matched"`
	Stored      int64 `json:"stored"`
	Duplicates  int64 `json:"duplicates"`
	StoreErrors int64 `json:"store_errors"`
	Relayed     int64 `json:"relayed"`
	RelayErrors int64 `json:"relay_errors"`
	Malformed   int64 `json:"malformed"`
	Failed      int64 `json:"failed"`
}
