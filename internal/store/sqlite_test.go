package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"agora/internal/protocol"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "agora.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStorePutGetReplace(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)

	if err := st.Put(ctx, "services/s-1", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Put(ctx, "services/s-1", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	b, err := st.Get(ctx, "services/s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(b) != `{"v":2}` {
		t.Fatalf("replace did not win: %s", b)
	}

	if _, err := st.Get(ctx, "services/s-2"); !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSQLiteStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)

	for key, val := range map[string]string{
		"orders/o-1":      `{"o":1}`,
		"orders/o-2":      `{"o":2}`,
		"knowledge/k-1":   `{"k":1}`,
		"messages/bob/m1": `{"m":1}`,
	} {
		if err := st.Put(ctx, key, []byte(val)); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	orders, err := st.List(ctx, "orders/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 order records, got %d", len(orders))
	}
}

func TestSQLiteStoreListEscapesLikeMetacharacters(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)

	if err := st.Put(ctx, "messages/a_b/m-1", []byte(`{"m":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Put(ctx, "messages/axb/m-2", []byte(`{"m":2}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	inbox, err := st.List(ctx, "messages/a_b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("underscore in prefix must not act as a wildcard, got %d records", len(inbox))
	}
}
