package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesHandled counts processed gateway updates by kind and result.
	UpdatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lectureflow",
		Name:      "updates_handled_total",
		Help:      "Telegram updates processed by the worker.",
	}, []string{"kind", "result"})

	// AttendanceMarks counts attendance records written by status.
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lectureflow",
		Name:      "attendance_marks_total",
		Help:      "Attendance records written.",
	}, []string{"status"})

	// Reminders counts reminder deliveries by job and result.
	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lectureflow",
		Name:      "reminders_total",
		Help:      "Reminder notifications attempted.",
	}, []string{"job", "result"})

	// WebhookUpdates counts updates accepted on the webhook.
	WebhookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lectureflow",
		Name:      "webhook_updates_total",
		Help:      "Updates received on the webhook endpoint.",
	}, []string{"result"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lectureflow",
		Name:      "rate_limited_total",
		Help:      "HTTP requests rejected by the rate limiter.",
	})
)
