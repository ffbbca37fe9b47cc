package simulation

import (
	"slices"
)

// Entry is something that happens to a task at a fixed point of the timeline.
// It is either an Arrival or an EndOfLifeCheck.
type Entry interface {
	When() int
	TaskName() string
	entry()
}

// Arrival releases a new instance of a task
type Arrival struct {
	Task     *Task
	Instance int
	At       int
}

func (a *Arrival) When() int        { return a.At }
func (a *Arrival) TaskName() string { return a.Task.Name }
func (*Arrival) entry()             {}

// EndOfLifeCheck fires one period after a task's last instance was released.
// It only checks whether that instance missed its deadline; nothing is scheduled.
type EndOfLifeCheck struct {
	Task         *Task
	LastInstance int
	At           int
}

func (e *EndOfLifeCheck) When() int        { return e.At }
func (e *EndOfLifeCheck) TaskName() string { return e.Task.Name }
func (*EndOfLifeCheck) entry()             {}

// Timeline maps logical time to the entries occurring at that time
type Timeline struct {
	entries map[int][]Entry
	times   []int
}

// BuildTimeline expands every task of the catalog into its periodic arrivals
// followed by an end-of-life check. Entries sharing a time keep catalog order.
func BuildTimeline(c *Catalog) *Timeline {
	tl := &Timeline{
		entries: make(map[int][]Entry),
	}

	for _, t := range c.Tasks() {
		for k := 1; k <= t.Instances; k++ {
			at := (k - 1) * t.Period
			tl.add(&Arrival{Task: t, Instance: k, At: at})
		}
		tl.add(&EndOfLifeCheck{Task: t, LastInstance: t.Instances, At: t.Instances * t.Period})
	}

	slices.Sort(tl.times)
	return tl
}

func (tl *Timeline) add(e Entry) {
	at := e.When()
	if _, ok := tl.entries[at]; !ok {
		tl.times = append(tl.times, at)
	}
	tl.entries[at] = append(tl.entries[at], e)
}

// Times returns the distinct event times in ascending order
func (tl *Timeline) Times() []int {
	return tl.times
}

// At returns the entries occurring at the given time
func (tl *Timeline) At(t int) []Entry {
	return tl.entries[t]
}

// Horizon returns the last event time of the simulation
func (tl *Timeline) Horizon() int {
	if len(tl.times) == 0 {
		return 0
	}
	return tl.times[len(tl.times)-1]
}
