package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	PaymentsTotal          *prometheus.CounterVec
	AmountAppliedTotal     prometheus.Counter
	AmountUnappliedTotal   prometheus.Counter
	PenaltyWaivedTotal     prometheus.Counter
	PenaltiesAddedTotal    prometheus.Counter
	AccrualRowsTotal       *prometheus.CounterVec
	ParentsClosedTotal     *prometheus.CounterVec
	LedgerOperationsTotal  *prometheus.CounterVec
	LedgerCreditGapsTotal  prometheus.Counter
	IssuanceDebitSkipTotal prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collection_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collection_payments_total",
				Help: "Total number of payment allocations by outcome.",
			},
			[]string{"status"},
		),
		AmountAppliedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collection_amount_applied_total",
			Help: "Cash applied to installments.",
		}),
		AmountUnappliedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collection_amount_unapplied_total",
			Help: "Cash received beyond the outstanding debt of the target.",
		}),
		PenaltyWaivedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collection_penalty_waived_total",
			Help: "Penalty waived while recording payments.",
		}),
		PenaltiesAddedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collection_penalties_added_total",
			Help: "Penalty added by the accrual engine.",
		}),
		AccrualRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collection_accrual_rows_total",
				Help: "Installments visited by the accrual engine by result.",
			},
			[]string{"result"},
		),
		ParentsClosedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collection_parents_closed_total",
				Help: "Loans and batches closed after their last installment was paid.",
			},
			[]string{"kind"},
		),
		LedgerOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collection_ledger_operations_total",
				Help: "Ledger account mutations by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		LedgerCreditGapsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collection_ledger_credit_gaps_total",
			Help: "Committed collections whose ledger credit failed and awaits reconciliation.",
		}),
		IssuanceDebitSkipTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collection_issuance_debit_skipped_total",
			Help: "Issuances that proceeded although the issuer balance could not cover them.",
		}),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordPayment(status string) {
	Business.PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordAllocation(applied, unapplied, waived decimal.Decimal) {
	Business.AmountAppliedTotal.Add(applied.InexactFloat64())
	Business.AmountUnappliedTotal.Add(unapplied.InexactFloat64())
	Business.PenaltyWaivedTotal.Add(waived.InexactFloat64())
}

func RecordParentClosed(kind string) {
	Business.ParentsClosedTotal.WithLabelValues(kind).Inc()
}

func RecordAccrualRow(result string, penalty decimal.Decimal) {
	Business.AccrualRowsTotal.WithLabelValues(result).Inc()
	if penalty.IsPositive() {
		Business.PenaltiesAddedTotal.Add(penalty.InexactFloat64())
	}
}

func RecordLedgerOperation(operation, status string) {
	Business.LedgerOperationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordLedgerCreditGap() {
	Business.LedgerCreditGapsTotal.Inc()
}

func RecordIssuanceDebitSkipped() {
	Business.IssuanceDebitSkipTotal.Inc()
}
