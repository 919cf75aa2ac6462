// Package client wires the forum client together: session store, channel
// manager, roster cache, router and render sink, plus the frame handlers
// that connect inbound traffic to whatever screen is active.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"agora/internal/api"
	"agora/internal/channel"
	"agora/internal/config"
	"agora/internal/models"
	"agora/internal/roster"
	"agora/internal/router"
	"agora/internal/session"
	"agora/internal/storage"
	"agora/internal/ui"
)

type Client struct {
	cfg *config.Config
	log *zap.Logger

	db      *storage.Store
	Session *session.Store
	Roster  *roster.Cache
	API     *api.Client
	Channel *channel.Manager
	Router  *router.Router
	UI      *ui.UI

	mu         sync.Mutex
	seenPosts  map[string]struct{}
	pending    map[string]models.PrivateMessage
	unread     int
	activePeer string

	// listeners installed by the active view; reset on every navigation
	onPost    func(models.Post)
	onComment func(models.Comment)
	onMessage func(pm models.PrivateMessage, replaced bool)
	onRoster  func()
}

func New(cfg *config.Config, log *zap.Logger) (*Client, error) {
	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		log:       log,
		db:        db,
		Session:   session.NewStore(db, log.Named("session")),
		Roster:    roster.NewCache(db, log.Named("roster")),
		seenPosts: make(map[string]struct{}),
		pending:   make(map[string]models.PrivateMessage),
	}

	c.API = api.NewClient(cfg.ServerURL, c.Session, c.handleUnauthorized, log.Named("api"))

	dispatcher := channel.NewDispatcher(log.Named("dispatch"))
	c.registerFrameHandlers(dispatcher)
	c.Channel = channel.NewManager(channel.Config{
		URL:                  cfg.ChannelURL,
		Dispatcher:           dispatcher,
		Logger:               log.Named("channel"),
		OnUnauthorized:       c.handleUnauthorized,
		OnReconnectExhausted: c.handleReconnectExhausted,
	})

	theme, err := ui.LoadTheme(cfg.DataDir, cfg.Theme)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load theme: %w", err)
	}
	c.UI = ui.NewUI(theme, log.Named("ui"))

	c.Router = router.New(c.routes(), c.UI, func(ctx context.Context) bool {
		return c.API.ValidateSession(ctx)
	}, log.Named("router"))

	// browser-style history traversal, available on every screen
	c.UI.App.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Modifiers()&tcell.ModAlt != 0 {
			switch ev.Key() {
			case tcell.KeyLeft:
				c.Router.Back()
				return nil
			case tcell.KeyRight:
				c.Router.Forward()
				return nil
			}
		}
		return ev
	})

	return c, nil
}

// routes is the static route table. The first entry is the default: it
// absorbs unmatched paths and failed auth checks.
func (c *Client) routes() []router.Route {
	return []router.Route{
		{Pattern: "/", Factory: func(router.Params) router.View { return newLoginView(c) }},
		{Pattern: "/registration", Factory: func(router.Params) router.View { return newRegistrationView(c) }},
		{Pattern: "/homepage", Protected: true, Factory: func(router.Params) router.View { return newHomepageView(c) }},
		{Pattern: "/logout", Factory: func(router.Params) router.View { return newLoginView(c) }},
		{Pattern: "/create-post", Protected: true, Factory: func(router.Params) router.View { return newCreatePostView(c) }},
		{Pattern: "/messages", Protected: true, Factory: func(router.Params) router.View { return newMessagesView(c) }},
		{Pattern: "/create-category", Protected: true, Factory: func(router.Params) router.View { return newCreateCategoryView(c) }},
		{Pattern: "/post/:id", Protected: true, Factory: func(p router.Params) router.View { return newPostDetailsView(c, p["id"]) }},
	}
}

// resetListeners detaches the previous view from the frame handlers.
// Every view installs its own listeners in PostRender.
func (c *Client) resetListeners() {
	c.mu.Lock()
	c.onPost = nil
	c.onComment = nil
	c.onMessage = nil
	c.onRoster = nil
	c.activePeer = ""
	c.mu.Unlock()
}

func (c *Client) setPostListener(f func(models.Post)) {
	c.mu.Lock()
	c.onPost = f
	c.mu.Unlock()
}

func (c *Client) setCommentListener(f func(models.Comment)) {
	c.mu.Lock()
	c.onComment = f
	c.mu.Unlock()
}

func (c *Client) setMessageListener(f func(models.PrivateMessage, bool)) {
	c.mu.Lock()
	c.onMessage = f
	c.mu.Unlock()
}

func (c *Client) setRosterListener(f func()) {
	c.mu.Lock()
	c.onRoster = f
	c.mu.Unlock()
}

// setActivePeer marks which conversation the messages screen is showing,
// so inbound messages from that user render instead of counting as unread.
func (c *Client) setActivePeer(userID string) {
	c.mu.Lock()
	c.activePeer = userID
	c.mu.Unlock()
}

// markPostSeen records a post id for duplicate suppression and reports
// whether it was new.
func (c *Client) markPostSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.seenPosts[id]; seen {
		return false
	}
	c.seenPosts[id] = struct{}{}
	return true
}

// Unread returns the number of private messages received while the
// messages screen was not showing their conversation.
func (c *Client) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

func (c *Client) markMessagesRead() {
	c.mu.Lock()
	c.unread = 0
	c.mu.Unlock()
}
