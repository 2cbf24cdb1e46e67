package types

type CallSession struct {
	ID        string
	Number    string
	IsVisible bool
	IsActive  bool
}

type CallState int

const (
	StateEmpty CallState = iota
	StateRinging
)

func (s CallState) String() string {
	switch s {
	case StateRinging:
		return "ringing"
	default:
		return "empty"
	}
}

// HasNumber reports whether the session carries a caller identifier.
func (s CallSession) HasNumber() bool {
	return s.Number != ""
}

func (s CallSession) State() CallState {
	if s.IsVisible {
		return StateRinging
	}
	return StateEmpty
}
