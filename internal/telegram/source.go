package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/ingest"
)

const historyBatchSize = 100

var (
	_ ingest.Source     = (*Client)(nil)
	_ ingest.Downloader = (*Client)(nil)
)

// History walks a channel's history newest first.
func (c *Client) History(ctx context.Context, channel string, limit int, fn func(ingest.Event) error) error {
	info, err := c.resolveChannel(ctx, channel)
	if err != nil {
		return err
	}

	batch := historyBatchSize
	if limit > 0 && limit < batch {
		batch = limit
	}
	iter := query.NewQuery(c.api).Messages().GetHistory(info.inputPeer()).BatchSize(batch).Iter()

	seen := 0
	for iter.Next(ctx) {
		if limit > 0 && seen >= limit {
			return nil
		}
		elem := iter.Value()
		msg, ok := elem.Msg.(*tg.Message)
		if !ok {
			// Service messages (joins, pins) carry no content.
			continue
		}
		seen++
		if err := fn(eventFromMessage(msg, info, elem.Entities.Users())); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to read history of %q: %w", channel, err)
	}
	return nil
}

type subscription struct {
	channels map[int64]channelInfo
	events   chan ingest.Event
	done     <-chan struct{}
}

// Subscribe resolves channels and starts forwarding their new posts. The
// returned channel is closed once ctx is done.
func (c *Client) Subscribe(ctx context.Context, channels []string) (<-chan ingest.Event, error) {
	infos := make([]channelInfo, 0, len(channels))
	for _, name := range channels {
		info, err := c.resolveChannel(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return c.subscribe(ctx, infos), nil
}

// subscribe registers a fan-out target for the given channels. Events of one
// channel are delivered in the order the updates manager applies them.
func (c *Client) subscribe(ctx context.Context, infos []channelInfo) <-chan ingest.Event {
	sub := &subscription{
		channels: make(map[int64]channelInfo, len(infos)),
		events:   make(chan ingest.Event),
		done:     ctx.Done(),
	}
	for _, info := range infos {
		sub.channels[info.ID] = info
	}

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, sub)
		close(sub.events)
		c.mu.Unlock()
	}()
	return sub.events
}

func (c *Client) onNewChannelMessage(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
	msg, ok := update.Message.(*tg.Message)
	if !ok {
		return nil
	}
	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for sub := range c.subs {
		info, ok := sub.channels[peer.ChannelID]
		if !ok {
			continue
		}
		ev := eventFromMessage(msg, info, e.Users)
		select {
		case sub.events <- ev:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Download writes the attachment into dir. A partially written file is removed
// on failure.
func (c *Client) Download(ctx context.Context, media *ingest.Media, dir string, messageID int64) (string, error) {
	loc, ok := media.Location.(tg.InputFileLocationClass)
	if !ok || loc == nil {
		return "", errors.New("media has no downloadable location")
	}

	path := filepath.Join(dir, mediaFileName(media, messageID))
	if _, err := c.downloader.Download(c.api, loc).ToPath(ctx, path); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("Failed to remove partial download", zap.String("path", path), zap.Error(rmErr))
		}
		return "", fmt.Errorf("failed to download %s: %w", strings.ToLower(media.Kind), err)
	}
	return path, nil
}
