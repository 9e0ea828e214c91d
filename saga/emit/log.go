package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a writer.
//
// Two output modes:
//   - Text (default): human-readable key=value lines.
//   - JSON: one JSON object per line (JSONL), machine-readable.
//
// Example text output:
//
//	[state_entered] instance=7f3a definition=order state=charge
//	[action_failed] instance=7f3a definition=order state=charge meta={"action":"chargeCard","error":"card declined"}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to the given writer (stdout if
// nil). With jsonMode true events are written as JSONL.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes one event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		InstanceID   string         `json:"instanceID"`
		DefinitionID string         `json:"definitionID"`
		State        string         `json:"state"`
		Msg          string         `json:"msg"`
		Meta         map[string]any `json:"meta"`
	}{
		InstanceID:   event.InstanceID,
		DefinitionID: event.DefinitionID,
		State:        event.State,
		Msg:          event.Msg,
		Meta:         event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] instance=%s definition=%s state=%s",
		event.Msg, event.InstanceID, event.DefinitionID, event.State)

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes all events in order, one line each.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes through to the underlying writer. Wrap
// the writer in a bufio.Writer and flush that directly if buffering is
// needed.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
