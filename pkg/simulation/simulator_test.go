package simulation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type step struct {
	time int
	typ  EventType
	task string
}

func newSim(t *testing.T, tasks ...Task) *Simulator {
	t.Helper()
	c, err := NewCatalog(tasks)
	require.NoError(t, err)
	return NewSimulator(c)
}

func runSim(t *testing.T, tasks ...Task) *Simulator {
	t.Helper()
	sim := newSim(t, tasks...)
	require.NoError(t, sim.Run())
	return sim
}

func steps(events []Event) []step {
	out := make([]step, 0, len(events))
	for _, e := range events {
		out = append(out, step{e.Time, e.Type, e.Task})
	}
	return out
}

func countType(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// requireCoverage checks that segments tile [0, horizon] without gaps or overlap
func requireCoverage(t *testing.T, sim *Simulator) {
	t.Helper()
	segs := sim.GetSegments()
	require.NotEmpty(t, segs)
	require.Equal(t, 0, segs[0].Start)
	for i := 1; i < len(segs); i++ {
		require.Equal(t, segs[i-1].End, segs[i].Start, "gap or overlap before segment %d", i)
		require.Greater(t, segs[i].End, segs[i].Start)
	}
	require.Equal(t, sim.Timeline().Horizon(), segs[len(segs)-1].End)

	report := sim.GetReport()
	require.Equal(t, report.Horizon, report.BusyTime+report.IdleTime)
}

func requireAccounting(t *testing.T, report *Report) {
	t.Helper()
	for _, tr := range report.Tasks {
		require.Equal(t, tr.Instances, tr.Successful+tr.DeadlineMisses, "task %s", tr.Name)
		if avg, ok := tr.AverageWaiting(); ok {
			require.GreaterOrEqual(t, avg, 0.0, "task %s", tr.Name)
		}
	}
}

func TestRunRequiresCatalog(t *testing.T) {
	sim := NewSimulator(nil)
	require.ErrorIs(t, sim.Run(), ErrNoCatalog)
	require.Nil(t, sim.GetReport())
}

func TestSingleTaskNoContention(t *testing.T) {
	sim := runSim(t, Task{Name: "A", Period: 10, ProcessingTime: 3, Instances: 3})

	require.Equal(t, []step{
		{0, EventTypeArrival, "A"}, {0, EventTypeStart, "A"}, {3, EventTypeFinish, "A"}, {3, EventTypeIdle, ""},
		{10, EventTypeArrival, "A"}, {10, EventTypeStart, "A"}, {13, EventTypeFinish, "A"}, {13, EventTypeIdle, ""},
		{20, EventTypeArrival, "A"}, {20, EventTypeStart, "A"}, {23, EventTypeFinish, "A"}, {23, EventTypeIdle, ""},
	}, steps(sim.GetEvents()))

	report := sim.GetReport()
	require.Equal(t, 3, report.TotalInstances)
	require.Equal(t, 3, report.TotalSuccessful)
	require.Equal(t, 0, report.TotalDeadlineMisses)
	require.True(t, report.Schedulable())

	a, ok := report.Task("A")
	require.True(t, ok)
	avg, ok := a.AverageWaiting()
	require.True(t, ok)
	require.Equal(t, 0.0, avg)
	require.Empty(t, sim.GetWarnings())

	require.Equal(t, 9, report.BusyTime)
	require.Equal(t, 21, report.IdleTime)
	requireCoverage(t, sim)
}

func TestTwoTasksRateMonotonicPriority(t *testing.T) {
	sim := runSim(t,
		Task{Name: "A", Period: 5, ProcessingTime: 1, Instances: 4},
		Task{Name: "B", Period: 10, ProcessingTime: 3, Instances: 2},
	)

	require.Equal(t, []step{
		{0, EventTypeArrival, "A"}, {0, EventTypeArrival, "B"},
		{0, EventTypeStart, "A"}, {1, EventTypeFinish, "A"},
		{1, EventTypeStart, "B"}, {4, EventTypeFinish, "B"}, {4, EventTypeIdle, ""},
		{5, EventTypeArrival, "A"}, {5, EventTypeStart, "A"}, {6, EventTypeFinish, "A"}, {6, EventTypeIdle, ""},
		{10, EventTypeArrival, "A"}, {10, EventTypeArrival, "B"},
		{10, EventTypeStart, "A"}, {11, EventTypeFinish, "A"},
		{11, EventTypeStart, "B"}, {14, EventTypeFinish, "B"}, {14, EventTypeIdle, ""},
		{15, EventTypeArrival, "A"}, {15, EventTypeStart, "A"}, {16, EventTypeFinish, "A"}, {16, EventTypeIdle, ""},
	}, steps(sim.GetEvents()))

	report := sim.GetReport()
	require.Equal(t, 0, report.TotalDeadlineMisses)
	require.Equal(t, 6, report.TotalSuccessful)
	require.True(t, report.BoundHolds)

	a, _ := report.Task("A")
	avgA, ok := a.AverageWaiting()
	require.True(t, ok)
	require.Equal(t, 0.0, avgA)

	b, _ := report.Task("B")
	require.Equal(t, 2, b.TotalWaitingTime)
	avgB, ok := b.AverageWaiting()
	require.True(t, ok)
	require.Equal(t, 1.0, avgB)

	requireCoverage(t, sim)
	requireAccounting(t, report)
}

func TestOverloadMissesDeadlines(t *testing.T) {
	sim := runSim(t,
		Task{Name: "A", Period: 4, ProcessingTime: 3, Instances: 5},
		Task{Name: "B", Period: 6, ProcessingTime: 3, Instances: 4},
	)

	require.Equal(t, []step{
		{0, EventTypeArrival, "A"}, {0, EventTypeArrival, "B"},
		{0, EventTypeStart, "A"}, {3, EventTypeFinish, "A"}, {3, EventTypeStart, "B"},
		{4, EventTypeArrival, "A"}, {4, EventTypePreempt, "B"}, {4, EventTypeStart, "A"},
		{6, EventTypeDeadlineMiss, "B"}, {6, EventTypeArrival, "B"},
		{7, EventTypeFinish, "A"}, {7, EventTypeStart, "B"},
		{8, EventTypeArrival, "A"}, {8, EventTypePreempt, "B"}, {8, EventTypeStart, "A"},
		{11, EventTypeFinish, "A"}, {11, EventTypeResume, "B"},
		{12, EventTypeArrival, "A"}, {12, EventTypeDeadlineMiss, "B"}, {12, EventTypeArrival, "B"},
		{12, EventTypePreempt, "B"}, {12, EventTypeStart, "A"}, {15, EventTypeFinish, "A"}, {15, EventTypeStart, "B"},
		{16, EventTypeArrival, "A"}, {16, EventTypePreempt, "B"}, {16, EventTypeStart, "A"},
		{18, EventTypeDeadlineMiss, "B"}, {18, EventTypeArrival, "B"},
		{19, EventTypeFinish, "A"}, {19, EventTypeStart, "B"},
		{22, EventTypeFinish, "B"}, {22, EventTypeIdle, ""},
	}, steps(sim.GetEvents()))

	report := sim.GetReport()
	require.False(t, report.Schedulable())
	require.False(t, report.BoundHolds)
	require.Equal(t, 9, report.TotalInstances)
	require.Equal(t, 6, report.TotalSuccessful)
	require.Equal(t, 3, report.TotalDeadlineMisses)

	a, _ := report.Task("A")
	require.Equal(t, 0, a.DeadlineMisses)
	require.Equal(t, 5, a.Successful)

	b, _ := report.Task("B")
	require.GreaterOrEqual(t, b.DeadlineMisses, 1)
	require.Equal(t, 3, b.DeadlineMisses)
	require.Equal(t, 1, b.Successful)
	avgB, ok := b.AverageWaiting()
	require.True(t, ok)
	require.Equal(t, 1.0, avgB)

	t.Run("miss events name remaining time and deadline", func(t *testing.T) {
		warnings := sim.GetWarnings()
		require.Len(t, warnings, 3)
		require.Equal(t, 2, warnings[0].Remaining)
		require.Equal(t, 6, warnings[0].Deadline)
		require.Equal(t, 1, warnings[1].Remaining)
		require.Equal(t, 12, warnings[1].Deadline)
		require.Equal(t, 2, warnings[2].Remaining)
		require.Equal(t, 18, warnings[2].Deadline)
	})

	t.Run("preemption names outgoing remaining time", func(t *testing.T) {
		var remaining []int
		for _, e := range sim.GetEvents() {
			if e.Type == EventTypePreempt {
				require.Equal(t, "A", e.By)
				remaining = append(remaining, e.Remaining)
			}
		}
		// the instance of B arriving at 12 inherits the processor and is
		// preempted before it runs
		require.Equal(t, []int{2, 2, 3, 2}, remaining)
	})

	require.Equal(t, 22, report.BusyTime)
	require.Equal(t, 2, report.IdleTime)
	requireCoverage(t, sim)
	requireAccounting(t, report)
}

func TestNoSuccessfulCompletions(t *testing.T) {
	sim := runSim(t, Task{Name: "X", Period: 5, ProcessingTime: 7, Instances: 3})

	require.Equal(t, []step{
		{0, EventTypeArrival, "X"}, {0, EventTypeStart, "X"},
		{5, EventTypeDeadlineMiss, "X"}, {5, EventTypeArrival, "X"},
		{10, EventTypeDeadlineMiss, "X"}, {10, EventTypeArrival, "X"},
		{15, EventTypeDeadlineMiss, "X"},
	}, steps(sim.GetEvents()))

	report := sim.GetReport()
	x, ok := report.Task("X")
	require.True(t, ok)
	require.Equal(t, 0, x.Successful)
	require.Equal(t, 3, x.DeadlineMisses)
	require.Nil(t, x.AverageWaitingTime)

	_, ok = x.AverageWaiting()
	require.False(t, ok)
	requireAccounting(t, report)
	requireCoverage(t, sim)
}

func TestCompletionExactlyAtDeadline(t *testing.T) {
	sim := runSim(t, Task{Name: "A", Period: 4, ProcessingTime: 4, Instances: 2})

	// a job that uses its whole window is still live when the next
	// instance arrives, so it misses with nothing left to run
	require.Equal(t, []step{
		{0, EventTypeArrival, "A"}, {0, EventTypeStart, "A"},
		{4, EventTypeDeadlineMiss, "A"}, {4, EventTypeArrival, "A"},
		{8, EventTypeDeadlineMiss, "A"},
	}, steps(sim.GetEvents()))

	misses := sim.GetWarnings()
	require.Len(t, misses, 2)
	for i, e := range misses {
		require.Equal(t, 0, e.Remaining)
		require.Equal(t, 4*(i+1), e.Deadline)
	}

	report := sim.GetReport()
	require.Equal(t, 2, report.TotalDeadlineMisses)
	require.Equal(t, 0, report.TotalSuccessful)
	a, _ := report.Task("A")
	require.Nil(t, a.AverageWaitingTime)
	require.Equal(t, 8, report.BusyTime)
	require.Equal(t, 0, report.IdleTime)
	requireCoverage(t, sim)
	requireAccounting(t, report)
}

func TestPreemptionAtExactBoundary(t *testing.T) {
	sim := runSim(t,
		Task{Name: "A", Period: 5, ProcessingTime: 1, Instances: 4},
		Task{Name: "B", Period: 10, ProcessingTime: 4, Instances: 2},
	)

	// B runs out of work exactly as A arrives and finishes only after A
	require.Equal(t, []step{
		{0, EventTypeArrival, "A"}, {0, EventTypeArrival, "B"},
		{0, EventTypeStart, "A"}, {1, EventTypeFinish, "A"}, {1, EventTypeStart, "B"},
		{5, EventTypeArrival, "A"}, {5, EventTypePreempt, "B"}, {5, EventTypeStart, "A"},
		{6, EventTypeFinish, "A"}, {6, EventTypeResume, "B"}, {6, EventTypeFinish, "B"}, {6, EventTypeIdle, ""},
		{10, EventTypeArrival, "A"}, {10, EventTypeArrival, "B"},
		{10, EventTypeStart, "A"}, {11, EventTypeFinish, "A"}, {11, EventTypeStart, "B"},
		{15, EventTypeArrival, "A"}, {15, EventTypePreempt, "B"}, {15, EventTypeStart, "A"},
		{16, EventTypeFinish, "A"}, {16, EventTypeResume, "B"}, {16, EventTypeFinish, "B"}, {16, EventTypeIdle, ""},
	}, steps(sim.GetEvents()))

	for _, e := range sim.GetEvents() {
		if e.Type == EventTypePreempt {
			require.Equal(t, 0, e.Remaining)
		}
	}

	report := sim.GetReport()
	require.Equal(t, 0, report.TotalDeadlineMisses)
	b, _ := report.Task("B")
	require.Equal(t, 2, b.Successful)
	require.Equal(t, 4, b.TotalWaitingTime)
	avgB, ok := b.AverageWaiting()
	require.True(t, ok)
	require.Equal(t, 2.0, avgB)

	require.Equal(t, 12, report.BusyTime)
	require.Equal(t, 8, report.IdleTime)
	requireCoverage(t, sim)
	requireAccounting(t, report)
}

func TestLastInstanceMissDetectedAtEndOfLife(t *testing.T) {
	sim := runSim(t,
		Task{Name: "hi", Period: 2, ProcessingTime: 1, Instances: 4},
		Task{Name: "lo", Period: 4, ProcessingTime: 3, Instances: 1},
	)

	// lo gets one unit in every two and still has work left at time 4
	report := sim.GetReport()
	lo, _ := report.Task("lo")
	require.Equal(t, 1, lo.DeadlineMisses)
	require.Nil(t, lo.AverageWaitingTime)

	misses := sim.GetWarnings()
	require.Len(t, misses, 1)
	require.Equal(t, 4, misses[0].Time)
	require.Equal(t, 1, misses[0].Remaining)

	// the end-of-life check never shows up as an arrival
	arrivals := 0
	for _, e := range sim.GetEvents() {
		if e.Type == EventTypeArrival && e.Task == "lo" {
			arrivals++
		}
	}
	require.Equal(t, 1, arrivals)
	requireCoverage(t, sim)
	requireAccounting(t, report)
}

func TestEqualPeriodsTieBreak(t *testing.T) {
	sim := runSim(t,
		Task{Name: "b", Period: 10, ProcessingTime: 2, Instances: 1},
		Task{Name: "a", Period: 10, ProcessingTime: 2, Instances: 1},
	)

	var starts []string
	for _, e := range sim.GetEvents() {
		if e.Type == EventTypeStart {
			starts = append(starts, e.Task)
		}
	}
	require.Equal(t, []string{"a", "b"}, starts)
}

func TestRunIsIdempotent(t *testing.T) {
	sim := newSim(t,
		Task{Name: "A", Period: 4, ProcessingTime: 3, Instances: 5},
		Task{Name: "B", Period: 6, ProcessingTime: 3, Instances: 4},
		Task{Name: "C", Period: 9, ProcessingTime: 1, Instances: 2},
	)

	require.NoError(t, sim.Run())
	events := append([]Event(nil), sim.GetEvents()...)
	segments := append([]Segment(nil), sim.GetSegments()...)
	report := sim.GetReport()

	require.NoError(t, sim.Run())
	require.Equal(t, events, sim.GetEvents())
	require.Equal(t, segments, sim.GetSegments())
	require.Equal(t, report, sim.GetReport())
}

func TestObserverSeesEveryEvent(t *testing.T) {
	c, err := NewCatalog([]Task{
		{Name: "A", Period: 5, ProcessingTime: 1, Instances: 4},
		{Name: "B", Period: 10, ProcessingTime: 3, Instances: 2},
	})
	require.NoError(t, err)

	var seen []Event
	sim := NewSimulator(c, WithObserver(func(e Event) { seen = append(seen, e) }))
	require.NoError(t, sim.Run())
	require.Equal(t, sim.GetEvents(), seen)
}

func TestInvariantsAcrossTaskSets(t *testing.T) {
	sets := map[string][]Task{
		"harmonic": {
			{Name: "t1", Period: 4, ProcessingTime: 1, Instances: 6},
			{Name: "t2", Period: 8, ProcessingTime: 2, Instances: 3},
			{Name: "t3", Period: 16, ProcessingTime: 4, Instances: 2},
		},
		"non harmonic": {
			{Name: "t1", Period: 5, ProcessingTime: 2, Instances: 6},
			{Name: "t2", Period: 7, ProcessingTime: 2, Instances: 4},
			{Name: "t3", Period: 11, ProcessingTime: 3, Instances: 3},
		},
		"heavy": {
			{Name: "t1", Period: 3, ProcessingTime: 2, Instances: 5},
			{Name: "t2", Period: 5, ProcessingTime: 2, Instances: 4},
			{Name: "t3", Period: 6, ProcessingTime: 4, Instances: 2},
		},
	}

	for name, tasks := range sets {
		t.Run(name, func(t *testing.T) {
			sim := runSim(t, tasks...)
			report := sim.GetReport()
			requireCoverage(t, sim)
			requireAccounting(t, report)

			require.Equal(t, countType(sim.GetEvents(), EventTypeFinish), report.TotalSuccessful)
			require.Equal(t, countType(sim.GetEvents(), EventTypeDeadlineMiss), report.TotalDeadlineMisses)

			// only one job per task may be live: a task's arrivals alternate
			// with its finish or miss
			live := map[string]bool{}
			for _, e := range sim.GetEvents() {
				switch e.Type {
				case EventTypeArrival:
					require.False(t, live[e.Task], "second live job for %s at %d", e.Task, e.Time)
					live[e.Task] = true
				case EventTypeFinish, EventTypeDeadlineMiss:
					require.True(t, live[e.Task])
					live[e.Task] = false
				}
			}
		})
	}
}
