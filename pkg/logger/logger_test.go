package logger

import (
	"testing"
	"time"
)

type recordedLine struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	lines []recordedLine
}

func (r *recorder) add(level, message string, keyvals []any) {
	r.lines = append(r.lines, recordedLine{level: level, message: message, keyvals: keyvals})
}

func (r *recorder) Log(m string, kv ...any)   { r.add("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add("fatal", m, kv) }

func TestDispatchesToEveryInstance(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { singleton = nil })

	Info("loaded", "nodes", 3)
	Warn("missing file", "file", "x.csv")
	Log("plain", "k", "v")

	for _, r := range []*recorder{a, b} {
		if len(r.lines) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(r.lines))
		}
		if r.lines[0].level != "info" || r.lines[0].message != "loaded" {
			t.Fatalf("unexpected first line %+v", r.lines[0])
		}
		if len(r.lines[2].keyvals) != 2 {
			t.Fatalf("expected Log to forward keyvals, got %v", r.lines[2].keyvals)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	singleton = nil
	Info("dropped")
	Error("dropped")
}

func TestDurationAppendsTook(t *testing.T) {
	r := &recorder{}
	Init(r)
	t.Cleanup(func() { singleton = nil })

	Duration("loaded predictions", time.Now().Add(-1500*time.Millisecond), "rows", 10)

	if len(r.lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(r.lines))
	}
	kv := r.lines[0].keyvals
	if len(kv) != 4 || kv[0] != "rows" || kv[2] != "took" {
		t.Fatalf("unexpected keyvals %v", kv)
	}
}
