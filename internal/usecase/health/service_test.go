package health

import (
	"context"
	"errors"
	"testing"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("expected healthy, got %s", report.Status)
	}
	if report.Checks["cache"] != CheckOK || report.Checks["embedding"] != CheckOK {
		t.Fatalf("unexpected checks: %v", report.Checks)
	}
}

func TestCheck_CacheDown(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("connection refused")}, &mockChecker{})

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["cache"] != CheckError {
		t.Fatalf("expected cache error, got %v", report.Checks)
	}
}

func TestCheck_EmbeddingDown(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{err: errors.New("api down")})

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
}

func TestCheck_NothingConfigured(t *testing.T) {
	svc := New(nil, nil)

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("expected healthy with no checks, got %s", report.Status)
	}
	if len(report.Checks) != 0 {
		t.Fatalf("expected no checks, got %v", report.Checks)
	}
}
