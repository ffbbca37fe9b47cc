package simulation

// TaskReport is the outcome of one task over the whole run
type TaskReport struct {
	Name             string `json:"name"`
	Period           int    `json:"period"`
	ProcessingTime   int    `json:"processingTime"`
	Instances        int    `json:"instances"`
	Successful       int    `json:"successful"`
	DeadlineMisses   int    `json:"deadlineMisses"`
	TotalWaitingTime int    `json:"totalWaitingTime"`
	// AverageWaitingTime is nil when no instance completed successfully
	AverageWaitingTime *float64 `json:"averageWaitingTime"`
}

// AverageWaiting returns the average waiting time of successful instances.
// ok is false when the task never completed an instance.
func (r TaskReport) AverageWaiting() (avg float64, ok bool) {
	if r.AverageWaitingTime == nil {
		return 0, false
	}
	return *r.AverageWaitingTime, true
}

// Report holds the final statistics of a run
type Report struct {
	Tasks               []TaskReport `json:"tasks"`
	TotalInstances      int          `json:"totalInstances"`
	TotalSuccessful     int          `json:"totalSuccessful"`
	TotalDeadlineMisses int          `json:"totalDeadlineMisses"`

	Horizon  int `json:"horizon"`
	BusyTime int `json:"busyTime"`
	IdleTime int `json:"idleTime"`

	Utilization     float64 `json:"utilization"`
	LiuLaylandBound float64 `json:"liuLaylandBound"`
	// BoundHolds is the sufficient rate-monotonic schedulability test
	BoundHolds bool `json:"boundHolds"`
}

// Schedulable reports whether every instance met its deadline
func (r *Report) Schedulable() bool {
	return r.TotalDeadlineMisses == 0
}

// Task returns the report of the named task
func (r *Report) Task(name string) (TaskReport, bool) {
	for _, tr := range r.Tasks {
		if tr.Name == name {
			return tr, true
		}
	}
	return TaskReport{}, false
}

func (s *Simulator) buildReport() *Report {
	report := &Report{
		Tasks:           make([]TaskReport, 0, s.catalog.Len()),
		Horizon:         s.timeline.Horizon(),
		Utilization:     s.catalog.Utilization(),
		LiuLaylandBound: s.catalog.LiuLaylandBound(),
	}
	report.BoundHolds = report.Utilization <= report.LiuLaylandBound

	for _, t := range s.catalog.Tasks() {
		st := s.stats[t.Name]
		tr := TaskReport{
			Name:             t.Name,
			Period:           t.Period,
			ProcessingTime:   t.ProcessingTime,
			Instances:        t.Instances,
			Successful:       t.Instances - st.DeadlineMisses,
			DeadlineMisses:   st.DeadlineMisses,
			TotalWaitingTime: st.TotalWaitingTime,
		}
		if tr.Successful > 0 {
			avg := float64(st.TotalWaitingTime) / float64(tr.Successful)
			tr.AverageWaitingTime = &avg
		}

		report.Tasks = append(report.Tasks, tr)
		report.TotalInstances += tr.Instances
		report.TotalSuccessful += tr.Successful
		report.TotalDeadlineMisses += tr.DeadlineMisses
	}

	for _, seg := range s.segments {
		if seg.Idle() {
			report.IdleTime += seg.Length()
		} else {
			report.BusyTime += seg.Length()
		}
	}

	return report
}
