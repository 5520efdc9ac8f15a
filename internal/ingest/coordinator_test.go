package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fuaSmart/medical-project/internal/models"
	"github.com/fuaSmart/medical-project/internal/repository"
)

func TestCoordinator_BackfillContinuesAfterItemFailure(t *testing.T) {
	events := []Event{
		textEvent("tikvahpharma", 1),
		textEvent("tikvahpharma", 2),
		textEvent("tikvahpharma", 3),
		textEvent("tikvahpharma", 4),
		textEvent("tikvahpharma", 5),
	}
	source := &fakeSource{history: map[string][]Event{"tikvahpharma": events}}
	store := newMemStore()
	store.failOn = map[int64]error{3: errors.New(`pq: value too long for type character varying(255)`)}

	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)
	c := NewCoordinator(source, NewMediaGate(&fakeDownloader{}, t.TempDir(), twentyMB, logger), store, logger)

	require.NoError(t, c.Backfill(context.Background(), []string{"tikvahpharma"}, 0))
	assert.Equal(t, []int64{1, 2, 4, 5}, store.ids())

	failures := logs.FilterMessage("Error inserting message").All()
	require.Len(t, failures, 1)
	assert.Equal(t, int64(3), failures[0].ContextMap()["message_id"])
	assert.Equal(t, "tikvahpharma", failures[0].ContextMap()["channel"])
}

func TestCoordinator_BackfillSkipsUnreadableChannel(t *testing.T) {
	source := &fakeSource{
		history: map[string][]Event{
			"who_news":     {textEvent("who_news", 10), textEvent("who_news", 11), textEvent("who_news", 12)},
			"tikvahpharma": {textEvent("tikvahpharma", 20)},
		},
		historyErr: map[string]error{"lobelia4cosmetics": errors.New("USERNAME_NOT_OCCUPIED")},
	}
	store := newMemStore()
	c := NewCoordinator(source, NewMediaGate(&fakeDownloader{}, t.TempDir(), twentyMB, zap.NewNop()), store, zap.NewNop())

	err := c.Backfill(context.Background(), []string{"lobelia4cosmetics", "who_news", "tikvahpharma"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 20}, store.ids())
}

func TestCoordinator_BackfillStopsWhenDatabaseExhausted(t *testing.T) {
	source := &fakeSource{history: map[string][]Event{
		"who_news": {textEvent("who_news", 1), textEvent("who_news", 2)},
		"other":    {textEvent("other", 3)},
	}}
	store := newMemStore()
	store.failOn = map[int64]error{1: fmt.Errorf("%w after 5 attempts", repository.ErrConnectionExhausted)}
	c := NewCoordinator(source, NewMediaGate(&fakeDownloader{}, t.TempDir(), twentyMB, zap.NewNop()), store, zap.NewNop())

	err := c.Backfill(context.Background(), []string{"who_news", "other"}, 0)
	require.ErrorIs(t, err, repository.ErrConnectionExhausted)
	assert.Empty(t, store.ids())
}

func TestCoordinator_DuplicateIsNotAnError(t *testing.T) {
	source := &fakeSource{history: map[string][]Event{"who_news": {textEvent("who_news", 1)}}}
	store := newMemStore()
	c := NewCoordinator(source, NewMediaGate(&fakeDownloader{}, t.TempDir(), twentyMB, zap.NewNop()), store, zap.NewNop())

	require.NoError(t, c.Backfill(context.Background(), []string{"who_news"}, 0))
	require.NoError(t, c.Backfill(context.Background(), []string{"who_news"}, 0))
	assert.Equal(t, []int64{1}, store.ids())
}

func TestCoordinator_ListenProcessesInOrderAndStopsOnCancel(t *testing.T) {
	live := make(chan Event)
	store := newMemStore()
	c := NewCoordinator(&fakeSource{live: live}, NewMediaGate(&fakeDownloader{}, t.TempDir(), twentyMB, zap.NewNop()), store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx, []string{"who_news"}) }()

	for _, id := range []int64{5, 3, 9} {
		live <- textEvent("who_news", id)
	}
	require.Eventually(t, func() bool { return len(store.ids()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	assert.Equal(t, []int64{5, 3, 9}, store.ids())
}

func TestCoordinator_ListenStreamClosed(t *testing.T) {
	live := make(chan Event)
	close(live)
	c := NewCoordinator(&fakeSource{live: live}, NewMediaGate(&fakeDownloader{}, t.TempDir(), twentyMB, zap.NewNop()), newMemStore(), zap.NewNop())

	err := c.Listen(context.Background(), []string{"who_news"})
	assert.ErrorIs(t, err, ErrStreamClosed)
}

// Three messages: 101 without media, 102 with a 5 MB photo, 103 with a 25 MB
// document. Only 102 is left for enrichment.
func TestCoordinator_EndToEndWorkQueue(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "medpipe.db")
	conn := repository.NewConnector(repository.DriverSQLite, dsn, 1, 0, zap.NewNop())
	require.NoError(t, repository.EnsureSchema(ctx, conn))
	repo := repository.NewMessageRepository(conn, zap.NewNop())

	mediaDir := t.TempDir()
	doc := textEvent("who_news", 103)
	doc.Media = &Media{Kind: MediaKindDocument, Size: 25 * 1024 * 1024, Downloadable: true}
	source := &fakeSource{history: map[string][]Event{"who_news": {
		textEvent("who_news", 101),
		photoEvent("who_news", 102, 5*1024*1024),
		doc,
	}}}
	dl := &fakeDownloader{}
	c := NewCoordinator(source, NewMediaGate(dl, mediaDir, twentyMB, zap.NewNop()), repo, zap.NewNop())

	require.NoError(t, c.Backfill(ctx, []string{"who_news"}, 0))
	assert.Equal(t, []int64{102}, dl.calls)

	skipped, err := repo.GetRawMessage(ctx, 103)
	require.NoError(t, err)
	require.NotNil(t, skipped.LocalMediaPath)
	assert.Contains(t, *skipped.LocalMediaPath, "25.00MB")
	assert.Contains(t, *skipped.LocalMediaPath, "20.00MB")
	require.NotNil(t, skipped.MediaType)
	assert.Equal(t, "skipped_too_large", *skipped.MediaType)

	plain, err := repo.GetRawMessage(ctx, 101)
	require.NoError(t, err)
	assert.Nil(t, plain.LocalMediaPath)
	assert.Equal(t, "https://t.me/who_news/101", plain.Link)

	pending, err := repo.PendingAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.PendingAsset{
		{MessageID: 102, ImagePath: filepath.Join(mediaDir, "who_news", "photo_102.jpg")},
	}, pending)
}
