package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: fmt.Errorf("payout: %w", &pgconn.PgError{Code: "40001"}), want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("expected pg errors to be retryable")
	}
	if IsSchedulerErrorRetryable(gorm.ErrRecordNotFound) {
		t.Fatalf("record not found is not retryable")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "rewardzway",
		Environment: "test",
	})

	metrics.AddBatchProcessed("weekly_payout", "users", 3)
	metrics.AddBatchProcessed("weekly_payout", "users", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("weekly_payout", "users"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestHTTPMetricsRegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := newHTTPMetrics(registry, Config{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := newHTTPMetrics(registry, Config{}); err != nil {
		t.Fatalf("second register should tolerate existing collectors: %v", err)
	}
}
