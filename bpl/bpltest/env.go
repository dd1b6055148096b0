package bpltest

import (
	"testing"
	"time"
)

// Env provides a chainable builder for setting [bpl.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all [bpl.BaseEnvironment] env vars to sensible test defaults.
//
// Defaults:
//   - BP_SERVICE_NAME: "test"
//   - AWS_REGION: "us-east-1"
//   - BP_PRIMARY_REGION: "eu-west-1"
//   - BP_DEADLINE_BUFFER: "500ms"
//   - OTEL_SDK_DISABLED: "true"
//   - AWS_ACCESS_KEY_ID: "test"
//   - AWS_SECRET_ACCESS_KEY: "test"
//
// Use the returned [Env] to override individual values:
//
//	bpltest.SetBaseEnv(t).AWSRegion("eu-west-1").PrimaryRegion("eu-central-1")
func SetBaseEnv(t testing.TB) *Env {
	t.Helper()
	t.Setenv("BP_SERVICE_NAME", "test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("BP_PRIMARY_REGION", "eu-west-1")
	t.Setenv("BP_DEADLINE_BUFFER", "500ms")
	t.Setenv("OTEL_SDK_DISABLED", "true")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	return &Env{t: t}
}

// ServiceName overrides BP_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_SERVICE_NAME", name)
	return e
}

// AWSRegion overrides AWS_REGION.
func (e *Env) AWSRegion(region string) *Env {
	e.t.Helper()
	e.t.Setenv("AWS_REGION", region)
	return e
}

// PrimaryRegion overrides BP_PRIMARY_REGION.
func (e *Env) PrimaryRegion(region string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_PRIMARY_REGION", region)
	return e
}

// DeadlineBuffer overrides BP_DEADLINE_BUFFER.
func (e *Env) DeadlineBuffer(d time.Duration) *Env {
	e.t.Helper()
	e.t.Setenv("BP_DEADLINE_BUFFER", d.String())
	return e
}
