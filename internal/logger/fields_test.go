package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  openai  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "openai" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}

	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}

	// Logging through the fallback must not panic.
	enriched.Info("another log")
}

func TestWithProvider(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithProvider(zap.New(core), "gemini", "gemini-2.5-flash").Info("generate")
	WithProvider(zap.New(core), "none", "").Info("fallback only")

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first[FieldProvider] != "gemini" || first[FieldModel] != "gemini-2.5-flash" {
		t.Fatalf("unexpected fields: %v", first)
	}

	second := entries[1].ContextMap()
	if _, ok := second[FieldModel]; ok {
		t.Fatalf("expected empty model to be omitted, got %v", second)
	}
}

func TestWithRun(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithRun(zap.New(core), "run-1", "Data Scientist").Info("analysis started")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldRunID] != "run-1" {
		t.Fatalf("expected run id, got %v", ctx[FieldRunID])
	}
	if ctx[FieldTargetRole] != "Data Scientist" {
		t.Fatalf("expected target role, got %v", ctx[FieldTargetRole])
	}
}

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		logger, err := New("career-mentor", json, true)
		if err != nil {
			t.Fatalf("json=%v: unexpected error: %v", json, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("json=%v: expected debug level to be enabled", json)
		}
	}

	logger, err := New("", false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be disabled")
	}
}
