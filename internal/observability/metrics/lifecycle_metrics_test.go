package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: StoreErrorReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: StoreErrorReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: StoreErrorReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: StoreErrorReasonUniqueViolation},
		{name: "wrapped_pg_unique", err: fmt.Errorf("save: %w", &pgconn.PgError{Code: "23505"}), want: StoreErrorReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: StoreErrorReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStoreError(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLifecycleCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLifecycleMetrics(registry, Config{ServiceName: "esimmock", Environment: "test"})

	m.IncTransition("provisioned", "active")
	m.IncTransition("expired", "active")
	m.IncTransition("active", "active")
	m.AddUsage(150, 50)
	m.AddPlansDepleted(2)
	m.ObserveOperation(OperationSimulateUse, 5*time.Millisecond, nil, false)
	m.ObserveOperation(OperationSimulateUse, time.Millisecond, errors.New("invalid"), true)
	m.IncStoreError(OperationProvision, gorm.ErrDuplicatedKey)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("provisioned", "active")); got != 1 {
		t.Fatalf("expected 1 provisioned->active transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("expired", "active")); got != 1 {
		t.Fatalf("expected 1 expired->active transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.usageMB.WithLabelValues("discarded")); got != 50 {
		t.Fatalf("expected 50 discarded MB, got %v", got)
	}
	if got := testutil.ToFloat64(m.plansDepleted); got != 2 {
		t.Fatalf("expected 2 depleted plans, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationSimulateUse, ResultRejected)); got != 1 {
		t.Fatalf("expected 1 rejected operation, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeErrors.WithLabelValues(OperationProvision, StoreErrorReasonUniqueViolation)); got != 1 {
		t.Fatalf("expected 1 unique violation, got %v", got)
	}
	// three pre-resolved engine transitions plus expired->active; active->active is skipped
	if n := testutil.CollectAndCount(m.transitions); n != 4 {
		t.Fatalf("expected 4 transition series, got %d", n)
	}
}

func TestNilLifecycleMetrics(t *testing.T) {
	var m *LifecycleMetrics
	m.IncTransition("a", "b")
	m.AddUsage(1, 1)
	m.AddPlansDepleted(1)
	m.ObserveOperation(OperationProvision, time.Second, nil, false)
	m.IncStoreError(OperationProvision, errors.New("x"))
}
