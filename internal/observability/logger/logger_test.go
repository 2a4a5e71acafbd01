package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/rewardzway/internal/observability/context"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{"SELECT * FROM payouts", "SELECT", "payouts"},
		{"  update primary_reward_points set x = 1", "UPDATE", "primary_reward_points"},
		{"WITH t AS (SELECT 1) INSERT INTO payouts (id) VALUES (1)", "INSERT", "payouts"},
		{`INSERT INTO "reward_claims" ("id") VALUES ($1)`, "INSERT", "reward_claims"},
		{"SELECT pg_advisory_xact_lock($1)", "LOCK", ""},
		{"", "UNKNOWN", ""},
		{"VACUUM", "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := operationFromSQL(tc.sql)
		require.Equal(t, tc.op, op, tc.sql)
		require.Equal(t, tc.table, table, tc.sql)
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithUserID(ctx, "42")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "42", fields["user_id"])
	require.NotContains(t, fields, "job")
}

func TestGinMiddlewareEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, obscontext.RequestIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	require.Equal(t, "abc", rec.Body.String())
}
