package simulation

// EventType defines the type of event in the simulation trace
type EventType string

const (
	EventTypeArrival      EventType = "arrival"
	EventTypeStart        EventType = "start"
	EventTypeResume       EventType = "resume"
	EventTypePreempt      EventType = "preempt"
	EventTypeFinish       EventType = "finish"
	EventTypeIdle         EventType = "idle"
	EventTypeDeadlineMiss EventType = "deadline-miss"
)

// Event represents a point-in-time lifecycle transition in the simulation
type Event struct {
	Time      int       `json:"time"`
	Type      EventType `json:"type"`
	Task      string    `json:"task,omitempty"`
	Instance  int       `json:"instance,omitempty"`
	Remaining int       `json:"remaining"`
	Deadline  int       `json:"deadline,omitempty"`
	// By is the task taking the processor on a preemption
	By string `json:"by,omitempty"`
	// Until is the end of an idle interval
	Until     int    `json:"until,omitempty"`
	Message   string `json:"message"`
	IsWarning bool   `json:"isWarning,omitempty"`
}

// Segment is a half-open interval [Start, End) during which the processor
// either executed one job or, when Task is empty, was idle.
type Segment struct {
	Task     string `json:"task,omitempty"`
	Instance int    `json:"instance,omitempty"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Idle reports whether the processor was idle during the segment
func (s Segment) Idle() bool {
	return s.Task == ""
}

// Length returns the duration of the segment
func (s Segment) Length() int {
	return s.End - s.Start
}
