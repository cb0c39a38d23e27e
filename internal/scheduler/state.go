package scheduler

// State is the lifecycle position of one monitored job.
type State int32

const (
	Pending State = iota
	Active
	BudgetExhausted
	Completed
	Retired
)

var stateNames = [...]string{
	Pending:         "PENDING",
	Active:          "ACTIVE",
	BudgetExhausted: "BUDGET_EXHAUSTED",
	Completed:       "COMPLETED",
	Retired:         "RETIRED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// JobStatus is a point-in-time view of one monitored job.
type JobStatus struct {
	Job       string `json:"job"`
	Group     string `json:"group"`
	Index     int    `json:"index"`
	State     State  `json:"state"`
	Path      string `json:"path"`
	Remote    bool   `json:"remote"`
	Interval  string `json:"interval"`
	Polls     int64  `json:"polls"`
	Forwarded int64  `json:"forwarded"`
	Max       int    `json:"max"`
	// Ended is the terminal state reached before retirement, if any.
	Ended State `json:"ended,omitempty"`
}
