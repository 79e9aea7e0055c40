package main

import (
	"strings"
	"testing"
)

func TestRunStopsOnMissingConfig(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("SESSION_SECRET", "s3cret")

	err := run()
	if err == nil {
		t.Fatal("expected run to fail without DB_DSN")
	}
	if !strings.HasPrefix(err.Error(), "config:") {
		t.Fatalf("expected config error, got %v", err)
	}
}
