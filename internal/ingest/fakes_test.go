package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fuaSmart/medical-project/internal/models"
)

// fakeSource replays fixed per-channel histories and a live event feed.
type fakeSource struct {
	history    map[string][]Event
	historyErr map[string]error
	live       chan Event
}

func (s *fakeSource) History(ctx context.Context, channel string, limit int, fn func(Event) error) error {
	if err := s.historyErr[channel]; err != nil {
		return err
	}
	for i, ev := range s.history[channel] {
		if limit > 0 && i >= limit {
			return nil
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSource) Subscribe(ctx context.Context, channels []string) (<-chan Event, error) {
	return s.live, nil
}

// fakeDownloader writes a small file for every request unless told to fail.
type fakeDownloader struct {
	mu     sync.Mutex
	calls  []int64
	failOn map[int64]bool
}

func (d *fakeDownloader) Download(ctx context.Context, media *Media, dir string, messageID int64) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, messageID)
	d.mu.Unlock()

	if d.failOn[messageID] {
		return "", errors.New("FILE_REFERENCE_EXPIRED")
	}
	path := filepath.Join(dir, fmt.Sprintf("photo_%d.jpg", messageID))
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// memStore records upserts in memory with first-write-wins semantics.
type memStore struct {
	mu     sync.Mutex
	rows   map[int64]*models.RawMessage
	order  []int64
	failOn map[int64]error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]*models.RawMessage)}
}

func (s *memStore) UpsertRawMessage(ctx context.Context, msg *models.RawMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[msg.MessageID]; err != nil {
		return false, err
	}
	if _, ok := s.rows[msg.MessageID]; ok {
		return false, nil
	}
	s.rows[msg.MessageID] = msg
	s.order = append(s.order, msg.MessageID)
	return true, nil
}

func (s *memStore) ids() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.order...)
}

func textEvent(channel string, id int64) Event {
	return Event{
		MessageID:       id,
		ChannelID:       1001,
		ChannelUsername: channel,
		Text:            fmt.Sprintf("message %d", id),
		Date:            time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
		Views:           int(id) * 10,
	}
}

func photoEvent(channel string, id, size int64) Event {
	ev := textEvent(channel, id)
	ev.Media = &Media{Kind: MediaKindPhoto, Size: size, Downloadable: true}
	return ev
}
