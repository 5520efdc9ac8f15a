package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/updates"
	updhook "github.com/gotd/td/telegram/updates/hook"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fuaSmart/medical-project/internal/config"
)

// Client encapsulates the Telegram client.
type Client struct {
	client     *telegram.Client
	api        *tg.Client
	gaps       *updates.Manager
	downloader *downloader.Downloader
	logger     *zap.Logger
	password   string

	AuthCode      chan string   // Channel to receive authentication code
	AuthCompleted chan struct{} // Closed once the session is authorized
	authOnce      sync.Once

	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

// NewClient creates and initializes a new Telegram client.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) *Client {
	c := &Client{
		downloader:    downloader.NewDownloader(),
		logger:        logger,
		password:      cfg.Password,
		AuthCode:      make(chan string),
		AuthCompleted: make(chan struct{}),
		subs:          make(map[*subscription]struct{}),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(c.onNewChannelMessage)

	// The manager applies each channel's updates in pts order and fetches the
	// difference when a gap is detected.
	c.gaps = updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  logger.Named("gaps"),
	})

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		Logger:         logger.Named("mtproto"),
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		UpdateHandler:  c.gaps,
		Middlewares: []telegram.Middleware{
			updhook.UpdateHook(c.gaps.Handle),
		},
	})
	c.api = c.client.API()
	return c
}

// Run connects, authorizes if the session is new, starts the updates manager and
// then calls fn. The connection lives until fn returns.
func (c *Client) Run(ctx context.Context, phone string, fn func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.auth(ctx, phone); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		c.logger.Info("Telegram client started and authenticated.")
		c.authOnce.Do(func() { close(c.AuthCompleted) })

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current user: %w", err)
		}

		runCtx, stop := context.WithCancel(ctx)
		defer stop()
		ready := make(chan struct{})

		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error {
			err := c.gaps.Run(gctx, c.api, self.ID, updates.AuthOptions{
				OnStart: func(context.Context) { close(ready) },
			})
			if runCtx.Err() != nil {
				// Stopped because fn returned or the caller cancelled.
				return nil
			}
			return err
		})
		g.Go(func() error {
			defer stop()
			select {
			case <-ready:
			case <-gctx.Done():
				return gctx.Err()
			}
			return fn(gctx)
		})
		return g.Wait()
	})
}

func (c *Client) auth(ctx context.Context, phone string) error {
	flow := auth.NewFlow(
		auth.Constant(phone, c.password, auth.CodeAuthenticatorFunc(func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
			c.logger.Info("Waiting for authentication code via API...")
			select {
			case code := <-c.AuthCode:
				return strings.TrimSpace(code), nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})),
		auth.SendCodeOptions{},
	)

	return c.client.Auth().IfNecessary(ctx, flow)
}

func (c *Client) resolveChannel(ctx context.Context, username string) (channelInfo, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return channelInfo{}, fmt.Errorf("failed to resolve %q: %w", username, err)
	}

	peer, ok := resolved.Peer.(*tg.PeerChannel)
	if !ok {
		return channelInfo{}, fmt.Errorf("%q is not a channel", username)
	}
	for _, chat := range resolved.Chats {
		ch, ok := chat.(*tg.Channel)
		if !ok || ch.ID != peer.ChannelID {
			continue
		}
		info := channelInfo{ID: ch.ID, AccessHash: ch.AccessHash, Username: channelUsername(ch)}
		if info.Username == "" {
			info.Username = username
		}
		return info, nil
	}
	return channelInfo{}, fmt.Errorf("channel %q missing from resolve response", username)
}
