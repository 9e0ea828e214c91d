package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

// testRecord mimics the engine's instance record shape.
type testRecord struct {
	ID      string            `json:"id"`
	Status  string            `json:"status"`
	Context map[string]any    `json:"context"`
	History []string          `json:"history"`
	Labels  map[string]string `json:"labels,omitempty"`
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		st := NewMemStore[testRecord]()
		rec := testRecord{ID: "wf-001", Status: "RUNNING", History: []string{"start"}}

		if err := st.Save(ctx, "wf-001", rec); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		loaded, err := st.Load(ctx, "wf-001")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if !reflect.DeepEqual(rec, loaded) {
			t.Errorf("expected %+v, got %+v", rec, loaded)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		st := NewMemStore[testRecord]()
		_ = st.Save(ctx, "wf-001", testRecord{Status: "RUNNING"})
		_ = st.Save(ctx, "wf-001", testRecord{Status: "COMPLETED"})

		loaded, err := st.Load(ctx, "wf-001")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if loaded.Status != "COMPLETED" {
			t.Errorf("expected replacement, got %+v", loaded)
		}
		if st.Len() != 1 {
			t.Errorf("expected 1 record, got %d", st.Len())
		}
	})

	t.Run("load unknown id", func(t *testing.T) {
		st := NewMemStore[testRecord]()
		if _, err := st.Load(ctx, "ghost"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		st := NewMemStore[testRecord]()
		_ = st.Save(ctx, "wf-001", testRecord{})
		if err := st.Delete(ctx, "wf-001"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := st.Load(ctx, "wf-001"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		// Deleting an unknown id is a no-op.
		if err := st.Delete(ctx, "ghost"); err != nil {
			t.Errorf("expected nil for unknown delete, got %v", err)
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		st := NewMemStore[testRecord]()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				id := fmt.Sprintf("wf-%03d", n)
				for j := 0; j < 100; j++ {
					_ = st.Save(ctx, id, testRecord{ID: id, Status: "RUNNING"})
					_, _ = st.Load(ctx, id)
				}
			}(i)
		}
		wg.Wait()
		if st.Len() != 8 {
			t.Errorf("expected 8 records, got %d", st.Len())
		}
	})
}
