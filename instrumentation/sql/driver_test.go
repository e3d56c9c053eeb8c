package sql

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKent3141/lurien/profiling"
	"github.com/AlexKent3141/lurien/storage/inmemory"
)

func TestOpen(t *testing.T) {
	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	store := inmemory.NewStore(10)
	p := profiling.NewProfiler(profiling.Config{}, zerolog.Nop())
	p.Init(store)
	p.Stop()

	th := p.NewThread("migrate")
	ctx := profiling.WithThread(context.Background(), th)
	_, err = db.ExecContext(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	th.Close()

	threads := store.GetSnapshot().Threads
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Scopes, 1)
	assert.Equal(t, "sql CREATE TABLE items (id INTEGER PRIMARY KEY)", threads[0].Scopes[0].Name)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("nope", "")
	assert.Error(t, err)
}
