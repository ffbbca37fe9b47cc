package simulation

import (
	"cmp"
	"slices"
)

// Job is one released instance of a task
type Job struct {
	Task      *Task
	Instance  int
	Remaining int
	Arrival   int
}

func newJob(a *Arrival) *Job {
	return &Job{
		Task:      a.Task,
		Instance:  a.Instance,
		Remaining: a.Task.ProcessingTime,
		Arrival:   a.At,
	}
}

// Deadline returns the absolute deadline of the job
func (j *Job) Deadline() int {
	return j.Task.Deadline(j.Instance)
}

// Started reports whether the job has executed at all
func (j *Job) Started() bool {
	return j.Remaining != j.Task.ProcessingTime
}

// comparePriority orders tasks rate-monotonically: shorter period first,
// equal periods by name.
func comparePriority(a, b *Task) int {
	if c := cmp.Compare(a.Period, b.Period); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// ReadySet holds at most one live job per task, indexed by priority
type ReadySet struct {
	jobs  map[string]*Job
	order []*Job
}

// NewReadySet creates an empty ready set
func NewReadySet() *ReadySet {
	return &ReadySet{
		jobs: make(map[string]*Job),
	}
}

// Get returns the live job of a task
func (r *ReadySet) Get(task string) (*Job, bool) {
	j, ok := r.jobs[task]
	return j, ok
}

// Put inserts a job, replacing and returning the live job of the same task if any
func (r *ReadySet) Put(j *Job) *Job {
	prev, _ := r.Remove(j.Task.Name)

	i, _ := slices.BinarySearchFunc(r.order, j, func(e, target *Job) int {
		return comparePriority(e.Task, target.Task)
	})
	r.order = slices.Insert(r.order, i, j)
	r.jobs[j.Task.Name] = j
	return prev
}

// Remove drops the live job of a task
func (r *ReadySet) Remove(task string) (*Job, bool) {
	j, ok := r.jobs[task]
	if !ok {
		return nil, false
	}
	delete(r.jobs, task)

	i, found := slices.BinarySearchFunc(r.order, j, func(e, target *Job) int {
		return comparePriority(e.Task, target.Task)
	})
	if found {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return j, true
}

// Best returns the highest-priority live job
func (r *ReadySet) Best() (*Job, bool) {
	if len(r.order) == 0 {
		return nil, false
	}
	return r.order[0], true
}

// Len returns the number of live jobs
func (r *ReadySet) Len() int {
	return len(r.order)
}

// IsEmpty returns true if no job is live
func (r *ReadySet) IsEmpty() bool {
	return len(r.order) == 0
}

// Jobs returns the live jobs in priority order
func (r *ReadySet) Jobs() []*Job {
	return slices.Clone(r.order)
}
