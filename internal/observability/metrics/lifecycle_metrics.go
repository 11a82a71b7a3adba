package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OperationProvision   = "provision"
	OperationAttachPlan  = "attach_plan"
	OperationSimulateUse = "simulate_usage"
	OperationForceStatus = "force_status"
	OperationDeactivate  = "deactivate"
	OperationDeleteAll   = "delete_all"
	OperationStatistics  = "statistics"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

const (
	StoreErrorReasonDeadlineExceeded     = "deadline_exceeded"
	StoreErrorReasonDBLockTimeout        = "db_lock_timeout"
	StoreErrorReasonSerializationFailure = "serialization_failure"
	StoreErrorReasonUniqueViolation      = "unique_violation"
	StoreErrorReasonConnection           = "connection"
	StoreErrorReasonUnknown              = "unknown"
)

// LifecycleMetrics captures eSIM engine signals on the prometheus registry.
type LifecycleMetrics struct {
	operations       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	usageMB          *prometheus.CounterVec
	plansDepleted    prometheus.Counter
	storeErrors      *prometheus.CounterVec
	transitionCounts map[string]map[string]prometheus.Counter
}

var (
	lifecycleMetricsOnce sync.Once
	lifecycleMetrics     *LifecycleMetrics
)

// Lifecycle returns the singleton lifecycle metrics registry.
func Lifecycle() *LifecycleMetrics {
	return LifecycleWithConfig(Config{})
}

// LifecycleWithConfig returns the singleton lifecycle metrics registry using config labels.
func LifecycleWithConfig(cfg Config) *LifecycleMetrics {
	lifecycleMetricsOnce.Do(func() {
		lifecycleMetrics = NewLifecycleMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return lifecycleMetrics
}

// NewLifecycleMetrics registers a fresh set of collectors on registerer.
func NewLifecycleMetrics(registerer prometheus.Registerer, cfg Config) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := orService(cfg.ServiceName)
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "esimmock_engine_operations_total",
		Help:        "Lifecycle engine operations by result.",
		ConstLabels: constLabels,
	}, []string{"operation", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "esimmock_engine_operation_duration_seconds",
		Help:        "Lifecycle engine operation latency including the store round trip.",
		Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "esimmock_esim_transitions_total",
		Help:        "eSIM status transitions.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	usageMB := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "esimmock_usage_mb_total",
		Help:        "Simulated usage in megabytes, split into applied and discarded overflow.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	plansDepleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "esimmock_plans_depleted_total",
		Help:        "Attached plans that reached zero remaining allowance.",
		ConstLabels: constLabels,
	})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "esimmock_store_errors_total",
		Help:        "Record store failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})

	registerer.MustRegister(
		operations,
		duration,
		transitions,
		usageMB,
		plansDepleted,
		storeErrors,
	)

	// Pre-resolve the transitions the engine performs on its own.
	transitionCounts := map[string]map[string]prometheus.Counter{
		"provisioned": {
			"active":      transitions.WithLabelValues("provisioned", "active"),
			"deactivated": transitions.WithLabelValues("provisioned", "deactivated"),
		},
		"active": {
			"deactivated": transitions.WithLabelValues("active", "deactivated"),
		},
	}

	return &LifecycleMetrics{
		operations:       operations,
		duration:         duration,
		transitions:      transitions,
		usageMB:          usageMB,
		plansDepleted:    plansDepleted,
		storeErrors:      storeErrors,
		transitionCounts: transitionCounts,
	}
}

// ObserveOperation records the outcome and latency of an engine operation.
// Domain rejections are counted apart from failures.
func (m *LifecycleMetrics) ObserveOperation(operation string, duration time.Duration, err error, rejected bool) {
	if m == nil {
		return
	}
	result := ResultOK
	switch {
	case err != nil && rejected:
		result = ResultRejected
	case err != nil:
		result = ResultError
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncTransition counts a status change.
func (m *LifecycleMetrics) IncTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	if toCounters, ok := m.transitionCounts[from]; ok {
		if counter, ok := toCounters[to]; ok {
			counter.Inc()
			return
		}
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *LifecycleMetrics) AddUsage(appliedMB, discardedMB int) {
	if m == nil {
		return
	}
	if appliedMB > 0 {
		m.usageMB.WithLabelValues("applied").Add(float64(appliedMB))
	}
	if discardedMB > 0 {
		m.usageMB.WithLabelValues("discarded").Add(float64(discardedMB))
	}
}

func (m *LifecycleMetrics) AddPlansDepleted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.plansDepleted.Add(float64(count))
}

// IncStoreError counts a failed store call with classification.
func (m *LifecycleMetrics) IncStoreError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation, ClassifyStoreError(err)).Inc()
}

// ClassifyStoreError maps store errors to low-cardinality reasons.
func ClassifyStoreError(err error) string {
	if err == nil {
		return StoreErrorReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StoreErrorReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return StoreErrorReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return StoreErrorReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return StoreErrorReasonUniqueViolation
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return StoreErrorReasonConnection
	}
	return StoreErrorReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
