package simulation

import (
	"fmt"
	"math"
)

// ConfigurationError reports a task catalog that cannot be simulated
type ConfigurationError struct {
	Task   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: task %s: %s", e.Task, e.Reason)
}

// Task is a periodic task. Its period is also the relative deadline of every instance.
type Task struct {
	Name           string `json:"name"`
	Period         int    `json:"period"`
	ProcessingTime int    `json:"processingTime"`
	Instances      int    `json:"instances"`
}

// Utilization returns the processor share the task demands
func (t *Task) Utilization() float64 {
	return float64(t.ProcessingTime) / float64(t.Period)
}

// Deadline returns the absolute deadline of the given 1-based instance
func (t *Task) Deadline(instance int) int {
	return t.Period * instance
}

// TaskStats accumulates the outcome of a task's instances during a run
type TaskStats struct {
	TotalWaitingTime int
	DeadlineMisses   int
	Completed        int
}

// Catalog is the immutable set of tasks to simulate, in input order
type Catalog struct {
	tasks  []*Task
	byName map[string]*Task
}

// NewCatalog validates the task definitions and builds a catalog
func NewCatalog(tasks []Task) (*Catalog, error) {
	if len(tasks) == 0 {
		return nil, &ConfigurationError{Reason: "at least one task must be defined"}
	}

	c := &Catalog{
		tasks:  make([]*Task, 0, len(tasks)),
		byName: make(map[string]*Task, len(tasks)),
	}

	// every instant the run reaches, plus the work still pending at it,
	// must fit in an int
	var horizon int
	var longest *Task

	for i := range tasks {
		t := tasks[i]
		switch {
		case t.Name == "":
			return nil, &ConfigurationError{Reason: fmt.Sprintf("task %d: name is required", i)}
		case t.Period <= 0:
			return nil, &ConfigurationError{Task: t.Name, Reason: "period must be greater than 0"}
		case t.ProcessingTime <= 0:
			return nil, &ConfigurationError{Task: t.Name, Reason: "processing time must be greater than 0"}
		case t.Instances <= 0:
			return nil, &ConfigurationError{Task: t.Name, Reason: "instance count must be greater than 0"}
		case t.Instances > math.MaxInt/t.Period:
			return nil, &ConfigurationError{Task: t.Name, Reason: "instance count times period overflows the time range"}
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, &ConfigurationError{Task: t.Name, Reason: "duplicate task name"}
		}

		c.tasks = append(c.tasks, &t)
		c.byName[t.Name] = &t

		horizon = max(horizon, t.Instances*t.Period)
		if longest == nil || t.ProcessingTime > longest.ProcessingTime {
			longest = &t
		}
	}

	if longest.ProcessingTime > math.MaxInt-horizon {
		return nil, &ConfigurationError{Task: longest.Name, Reason: "processing time past the last deadline overflows the time range"}
	}

	return c, nil
}

// Tasks returns the tasks in input order
func (c *Catalog) Tasks() []*Task {
	return c.tasks
}

// Task looks a task up by name
func (c *Catalog) Task(name string) (*Task, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Len returns the number of tasks
func (c *Catalog) Len() int {
	return len(c.tasks)
}

// Utilization returns the total processor utilization of the task set
func (c *Catalog) Utilization() float64 {
	u := 0.0
	for _, t := range c.tasks {
		u += t.Utilization()
	}
	return u
}

// LiuLaylandBound returns n(2^(1/n) - 1), the utilization below which any
// set of n tasks is guaranteed schedulable under rate-monotonic priorities.
func (c *Catalog) LiuLaylandBound() float64 {
	n := float64(len(c.tasks))
	if n == 0 {
		return 0
	}
	return n * (math.Pow(2, 1/n) - 1)
}
