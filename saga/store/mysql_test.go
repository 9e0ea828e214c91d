package store

import (
	"context"
	"os"
	"reflect"
	"testing"
)

// MySQL tests run only against a real server. Point TEST_MYSQL_DSN at a
// scratch database, e.g.:
//
//	TEST_MYSQL_DSN="user:pass@tcp(localhost:3306)/sagaflow_test" go test ./saga/store/
func newMySQLTestStore(t *testing.T) *MySQLStore[testRecord] {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL tests: TEST_MYSQL_DSN not set")
	}
	st, err := NewMySQLStore[testRecord](dsn)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMySQLStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save load delete round trip", func(t *testing.T) {
		st := newMySQLTestStore(t)
		rec := testRecord{
			ID:      "wf-mysql-001",
			Status:  "RUNNING",
			Context: map[string]any{"k": "v"},
			History: []string{"start"},
		}

		if err := st.Save(ctx, rec.ID, rec); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		defer func() { _ = st.Delete(ctx, rec.ID) }()

		loaded, err := st.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if !reflect.DeepEqual(rec, loaded) {
			t.Errorf("expected %+v, got %+v", rec, loaded)
		}

		rec.Status = "COMPLETED"
		rec.History = append(rec.History, "end")
		if err := st.Save(ctx, rec.ID, rec); err != nil {
			t.Fatalf("replace failed: %v", err)
		}
		loaded, err = st.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("load after replace failed: %v", err)
		}
		if loaded.Status != "COMPLETED" || len(loaded.History) != 2 {
			t.Errorf("expected replaced record, got %+v", loaded)
		}

		if err := st.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := st.Load(ctx, rec.ID); err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		st := newMySQLTestStore(t)
		if err := st.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

func TestMySQLStoreInvalidDSN(t *testing.T) {
	if os.Getenv("TEST_MYSQL_DSN") == "" {
		t.Skip("Skipping MySQL tests: TEST_MYSQL_DSN not set")
	}
	if _, err := NewMySQLStore[testRecord]("user:pass@tcp(localhost:1)/nonexistent_db"); err == nil {
		t.Error("expected connection error")
	}
}
