package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customers_ops_total",
			Help: "Customer operations by outcome",
		},
		[]string{"op", "outcome"}, // list|get|create|update|delete|import|export , ok|invalid|not_found|error
	)

	ImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customers_import_rows_total",
			Help: "CSV import rows by result",
		},
		[]string{"result"}, // imported|incomplete|duplicate
	)

	ExportRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "customers_export_rows_total",
			Help: "Rows written by CSV exports",
		},
	)

	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customers_audit_events_total",
			Help: "Customer change events handled by the audit worker",
		},
		[]string{"result"}, // stored|malformed|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OpsTotal,
		ImportRowsTotal,
		ExportRowsTotal,
		AuditEventsTotal,
	)
}
