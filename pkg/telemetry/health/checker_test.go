package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckLiveness(t *testing.T) {
	c := New(0)
	status := c.CheckLiveness(context.Background())
	if status.Status != "ok" {
		t.Errorf("liveness = %q, want ok", status.Status)
	}
}

func TestCheckReadinessNoChecks(t *testing.T) {
	c := New(0)
	status := c.CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("status = %q, want ready", status.Status)
	}
}

func TestCheckReadinessAggregation(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("store", func(ctx context.Context) error { return nil })
	c.RegisterCheck("source", func(ctx context.Context) error {
		return errors.New("schema file unreadable")
	})

	status := c.CheckReadiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["store"].Status != "ok" {
		t.Errorf("store = %+v", status.Checks["store"])
	}
	unhealthy := status.Checks["source"]
	if unhealthy.Status != "unhealthy" || unhealthy.Message != "schema file unreadable" {
		t.Errorf("source = %+v", unhealthy)
	}
}

func TestCheckReadinessTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	})

	status := c.CheckReadiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded on timeout", status.Status)
	}
	if status.Checks["slow"].Message != "health check timeout" {
		t.Errorf("slow = %+v", status.Checks["slow"])
	}
}

func TestRegisterCheckReplaces(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("store", func(ctx context.Context) error { return errors.New("down") })
	c.RegisterCheck("store", func(ctx context.Context) error { return nil })

	status := c.CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("status = %q after replacement, want ready", status.Status)
	}
}
