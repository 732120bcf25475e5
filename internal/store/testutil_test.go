package store

import (
	"fmt"
	"testing"

	"github.com/aristath/sentinel/internal/database"
	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T, encryptionKey string) *Store {
	t.Helper()
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Name: "state",
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db, zerolog.Nop(), encryptionKey)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}
