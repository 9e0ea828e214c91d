package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		InstanceID:   "wf-001",
		DefinitionID: "order",
		State:        "charge",
		Msg:          "action_failed",
		Meta:         map[string]any{"error": "card declined"},
	})

	out := buf.String()
	if !strings.HasPrefix(out, "[action_failed] ") {
		t.Errorf("expected msg prefix, got %q", out)
	}
	for _, want := range []string{"instance=wf-001", "definition=order", "state=charge", "card declined"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{
		InstanceID:   "wf-001",
		DefinitionID: "order",
		Msg:          "instance_started",
	})

	var decoded struct {
		InstanceID   string         `json:"instanceID"`
		DefinitionID string         `json:"definitionID"`
		Msg          string         `json:"msg"`
		Meta         map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded.InstanceID != "wf-001" || decoded.Msg != "instance_started" {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
}

func TestLogEmitterBatch(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	events := []Event{
		{InstanceID: "wf-001", Msg: "state_entered"},
		{InstanceID: "wf-001", Msg: "instance_completed"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d: %q", len(lines), buf.String())
	}
}

func TestLogEmitterNilWriterDefaultsToStdout(t *testing.T) {
	emitter := NewLogEmitter(nil, false)
	if emitter.writer == nil {
		t.Error("expected default writer")
	}
}

func TestLogEmitterFlush(t *testing.T) {
	emitter := NewLogEmitter(&bytes.Buffer{}, false)
	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("flush should be a no-op, got %v", err)
	}
}
