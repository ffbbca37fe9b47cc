package simulation

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNoCatalog is returned when a simulator is run without tasks
var ErrNoCatalog = errors.New("simulation requires a task catalog")

// Option configures a Simulator
type Option func(*Simulator)

// WithLogger sets the logger receiving scheduling decisions at debug level
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithObserver registers a callback invoked for every trace event as it is emitted
func WithObserver(fn func(Event)) Option {
	return func(s *Simulator) {
		s.observers = append(s.observers, fn)
	}
}

// Simulator runs a rate-monotonic schedule of a task catalog on one processor
type Simulator struct {
	catalog   *Catalog
	timeline  *Timeline
	logger    logrus.FieldLogger
	observers []func(Event)

	clock    int
	ready    *ReadySet
	running  *Task // nil while no task holds the processor
	stats    map[string]*TaskStats
	events   []Event
	segments []Segment
	report   *Report
}

// NewSimulator creates a new simulator for the catalog
func NewSimulator(catalog *Catalog, opts ...Option) *Simulator {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	s := &Simulator{
		catalog: catalog,
		logger:  quiet,
	}
	if catalog != nil {
		s.timeline = BuildTimeline(catalog)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the simulation from time 0 to the horizon. Running again
// starts from scratch and yields the same trace.
func (s *Simulator) Run() error {
	if s.catalog == nil {
		return ErrNoCatalog
	}
	s.reset()

	times := s.timeline.Times()
	horizon := s.timeline.Horizon()
	s.logger.WithFields(logrus.Fields{
		"tasks":   s.catalog.Len(),
		"events":  len(times),
		"horizon": horizon,
	}).Debug("starting simulation")

	for i, now := range times {
		s.clock = now

		// All arrivals at an instant are admitted before anything executes.
		for _, e := range s.timeline.At(now) {
			s.admit(e)
		}

		if now == horizon {
			break
		}
		s.executeWindow(times[i+1])
	}

	s.report = s.buildReport()
	return nil
}

func (s *Simulator) reset() {
	s.clock = 0
	s.ready = NewReadySet()
	s.running = nil
	s.events = []Event{}
	s.segments = []Segment{}
	s.report = nil

	s.stats = make(map[string]*TaskStats, s.catalog.Len())
	for _, t := range s.catalog.Tasks() {
		s.stats[t.Name] = &TaskStats{}
	}
}

// admit applies one timeline entry. A live job of the same task at this point
// has missed its deadline and leaves the system.
func (s *Simulator) admit(e Entry) {
	if prev, ok := s.ready.Get(e.TaskName()); ok {
		s.ready.Remove(prev.Task.Name)
		s.stats[prev.Task.Name].DeadlineMisses++
		// A replacement instance inherits the processor; an end-of-life
		// check leaves the task with nothing to run.
		if _, replaced := e.(*Arrival); !replaced && s.running == prev.Task {
			s.running = nil
		}

		s.addEvent(Event{
			Time:      s.clock,
			Type:      EventTypeDeadlineMiss,
			Task:      prev.Task.Name,
			Instance:  prev.Instance,
			Remaining: prev.Remaining,
			Deadline:  prev.Deadline(),
			Message: fmt.Sprintf("Task %s: remaining time=%d; deadline:%d missed its deadline and has been removed from the system at time %d",
				prev.Task.Name, prev.Remaining, prev.Deadline(), s.clock),
			IsWarning: true,
		})
	}

	arrival, ok := e.(*Arrival)
	if !ok {
		return
	}

	job := newJob(arrival)
	s.ready.Put(job)

	s.addEvent(Event{
		Time:      arrival.At,
		Type:      EventTypeArrival,
		Task:      job.Task.Name,
		Instance:  job.Instance,
		Remaining: job.Remaining,
		Deadline:  job.Deadline(),
		Message: fmt.Sprintf("Task %s: processing time=%d; deadline:%d joined the system at time %d",
			job.Task.Name, job.Task.ProcessingTime, job.Deadline(), arrival.At),
	})
}

// executeWindow runs ready jobs from the current clock up to next
func (s *Simulator) executeWindow(next int) {
	for !s.ready.IsEmpty() {
		best, _ := s.ready.Best()

		if s.running != best.Task {
			if s.running != nil {
				if out, ok := s.ready.Get(s.running.Name); ok {
					s.addEvent(Event{
						Time:      s.clock,
						Type:      EventTypePreempt,
						Task:      out.Task.Name,
						Instance:  out.Instance,
						Remaining: out.Remaining,
						Deadline:  out.Deadline(),
						By:        best.Task.Name,
						Message: fmt.Sprintf("Task %s is preempted by Task %s at time %d. Remaining processing time: %d",
							out.Task.Name, best.Task.Name, s.clock, out.Remaining),
					})
				}
			}
			s.dispatch(best)
		}
		s.running = best.Task

		// A job that fills the window exactly stays live with nothing left;
		// it completes on the next pass or misses if its successor arrives now.
		if s.clock+best.Remaining >= next {
			best.Remaining -= next - s.clock
			s.addSegment(best, s.clock, next)
			s.clock = next
			break
		}

		finish := s.clock + best.Remaining
		s.addSegment(best, s.clock, finish)
		best.Remaining = 0
		s.ready.Remove(best.Task.Name)

		st := s.stats[best.Task.Name]
		st.Completed++
		st.TotalWaitingTime += finish - best.Arrival - best.Task.ProcessingTime

		s.addEvent(Event{
			Time:     finish,
			Type:     EventTypeFinish,
			Task:     best.Task.Name,
			Instance: best.Instance,
			Deadline: best.Deadline(),
			Message:  fmt.Sprintf("Task %s finished execution at time %d", best.Task.Name, finish),
		})

		s.running = nil
		s.clock = finish
	}

	if s.ready.IsEmpty() && s.clock < next {
		s.addEvent(Event{
			Time:    s.clock,
			Type:    EventTypeIdle,
			Until:   next,
			Message: fmt.Sprintf("CPU is idle from time %d till time %d", s.clock, next),
		})
		s.addSegment(nil, s.clock, next)
	}
}

// dispatch emits the start or resume of a job taking the processor
func (s *Simulator) dispatch(j *Job) {
	eventType, verb := EventTypeStart, "starts"
	if j.Started() {
		eventType, verb = EventTypeResume, "resumes"
	}

	s.addEvent(Event{
		Time:      s.clock,
		Type:      eventType,
		Task:      j.Task.Name,
		Instance:  j.Instance,
		Remaining: j.Remaining,
		Deadline:  j.Deadline(),
		Message:   fmt.Sprintf("Task %s %s execution at time %d", j.Task.Name, verb, s.clock),
	})
}

// addSegment records execution of j (or idleness when j is nil) over [from, to)
func (s *Simulator) addSegment(j *Job, from, to int) {
	if to <= from {
		return
	}
	seg := Segment{Start: from, End: to}
	if j != nil {
		seg.Task = j.Task.Name
		seg.Instance = j.Instance
	}

	if n := len(s.segments); n > 0 {
		last := &s.segments[n-1]
		if last.End == from && last.Task == seg.Task && last.Instance == seg.Instance {
			last.End = to
			return
		}
	}
	s.segments = append(s.segments, seg)
}

// addEvent adds an event to the trace
func (s *Simulator) addEvent(event Event) {
	s.events = append(s.events, event)

	entry := s.logger.WithFields(logrus.Fields{
		"time": event.Time,
		"type": event.Type,
	})
	if event.Task != "" {
		entry = entry.WithField("task", event.Task)
	}
	entry.Debug(event.Message)

	for _, fn := range s.observers {
		fn(event)
	}
}

// Catalog returns the simulated task catalog
func (s *Simulator) Catalog() *Catalog {
	return s.catalog
}

// Timeline returns the arrival timeline
func (s *Simulator) Timeline() *Timeline {
	return s.timeline
}

// GetEvents returns all trace events in emission order
func (s *Simulator) GetEvents() []Event {
	return s.events
}

// GetSegments returns execution and idle intervals in time order
func (s *Simulator) GetSegments() []Segment {
	return s.segments
}

// GetWarnings returns all warning events
func (s *Simulator) GetWarnings() []Event {
	warnings := []Event{}
	for _, event := range s.events {
		if event.IsWarning {
			warnings = append(warnings, event)
		}
	}
	return warnings
}

// GetReport returns the final statistics, or nil before Run
func (s *Simulator) GetReport() *Report {
	return s.report
}
