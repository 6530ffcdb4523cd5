package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"":        LevelInfo,
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUseCore_CapturesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core, LevelDebug)
	defer UseCore(zapcore.NewNopCore(), LevelInfo)

	Info("token acquired", "expires", "2026-01-01T00:00:00Z", "dangling")
	Debug("cache hit")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "token acquired" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	ctx := entries[0].ContextMap()
	if ctx["expires"] != "2026-01-01T00:00:00Z" {
		t.Errorf("expected expires field, got %v", ctx)
	}
	if _, ok := ctx["dangling"]; ok {
		t.Errorf("dangling key should be dropped")
	}
	if GetLogLevel() != LevelDebug {
		t.Errorf("expected level %s, got %s", LevelDebug, GetLogLevel())
	}
}

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	UseCore(core, LevelWarn)
	defer UseCore(zapcore.NewNopCore(), LevelInfo)

	Debug("hidden")
	Info("hidden")
	Warn("shown")
	Error("shown")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries at WARN, got %d", logs.Len())
	}
}

func TestCallerPointsAtCallSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core, LevelDebug)
	defer UseCore(zapcore.NewNopCore(), LevelInfo)

	Warn("where am i")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].Caller.TrimmedPath(); got == "" || !strings.Contains(got, "logger_test.go") {
		t.Errorf("expected caller in logger_test.go, got %q", got)
	}
}
