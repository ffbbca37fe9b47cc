package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sherine-k/rmsim/pkg/simulation"
)

// metrics exposes the final statistics of a run as prometheus gauges
type metrics struct {
	deadlineMisses *prometheus.GaugeVec
	successful     *prometheus.GaugeVec
	avgWaiting     *prometheus.GaugeVec
	utilization    prometheus.Gauge
	horizon        prometheus.Gauge
	busyTime       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		deadlineMisses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rms_task_deadline_misses",
			Help: "Instances removed after missing their deadline",
		}, []string{"task"}),
		successful: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rms_task_successful",
			Help: "Instances completed before their deadline",
		}, []string{"task"}),
		avgWaiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rms_task_average_waiting_time",
			Help: "Average waiting time of successful instances (absent when none succeeded)",
		}, []string{"task"}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rms_utilization",
			Help: "Total processor utilization of the task set",
		}),
		horizon: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rms_horizon",
			Help: "Last simulated time instant",
		}),
		busyTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rms_busy_time",
			Help: "Time units the processor spent executing jobs",
		}),
	}

	reg.MustRegister(
		m.deadlineMisses,
		m.successful,
		m.avgWaiting,
		m.utilization,
		m.horizon,
		m.busyTime,
	)
	return m
}

func (m *metrics) update(report *simulation.Report) {
	for _, tr := range report.Tasks {
		m.deadlineMisses.WithLabelValues(tr.Name).Set(float64(tr.DeadlineMisses))
		m.successful.WithLabelValues(tr.Name).Set(float64(tr.Successful))
		if avg, ok := tr.AverageWaiting(); ok {
			m.avgWaiting.WithLabelValues(tr.Name).Set(avg)
		} else {
			m.avgWaiting.DeleteLabelValues(tr.Name)
		}
	}

	m.utilization.Set(report.Utilization)
	m.horizon.Set(float64(report.Horizon))
	m.busyTime.Set(float64(report.BusyTime))
}
