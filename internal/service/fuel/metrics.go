package fuel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fuelsplit",
			Name:      "ledger_operations_total",
			Help:      "Ledger mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	distanceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fuelsplit",
			Name:      "attributed_km_total",
			Help:      "Kilometres attributed per participant",
		},
		[]string{"participant"},
	)
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)
