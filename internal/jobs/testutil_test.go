package jobs

import (
	"fmt"
	"testing"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *events.Manager) {
	t.Helper()
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Name: "state",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stateStore, err := store.New(db, zerolog.Nop(), "")
	require.NoError(t, err)

	em := events.NewManager()
	return New(stateStore, em, zerolog.Nop()), em
}
