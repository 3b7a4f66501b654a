package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by event name and outcome.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelliblog_jobs_total",
		Help: "Total number of finished workflow jobs by event and outcome",
	}, []string{"event", "outcome"})

	// JobStepRetries counts step retry attempts by event and step name.
	JobStepRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelliblog_job_step_retries_total",
		Help: "Total number of workflow step retries",
	}, []string{"event", "step"})

	// JobQueueDepth is the number of jobs waiting for a worker.
	JobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intelliblog_job_queue_depth",
		Help: "Number of dispatched jobs waiting for a worker",
	})

	// EmailsTotal counts outbound email attempts by kind and outcome.
	EmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelliblog_emails_total",
		Help: "Total outbound email attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	// GateRejections counts anti-spam gate rejections by reason.
	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelliblog_gate_rejections_total",
		Help: "Total anti-spam gate rejections by reason",
	}, []string{"reason"})
)
