package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agora/internal/api"
	"agora/internal/channel"
	"agora/internal/models"
)

func (c *Client) registerFrameHandlers(d *channel.Dispatcher) {
	d.Register(models.FramePost, c.handlePostFrame)
	d.Register(models.FrameComment, c.handleCommentFrame)
	d.Register(models.FramePrivateMessage, c.handlePrivateMessageFrame)
	d.Register(models.FrameUserStatus, c.handleUserStatusFrame)
	d.Register(models.FrameError, c.handleErrorFrame)
}

func (c *Client) handlePostFrame(data json.RawMessage) error {
	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return fmt.Errorf("decode post: %w", err)
	}
	if post.ID == "" {
		return errors.New("post frame without id")
	}
	if !c.markPostSeen(post.ID) {
		c.log.Debug("duplicate post suppressed", zap.String("id", post.ID))
		return nil
	}

	c.mu.Lock()
	onPost := c.onPost
	c.mu.Unlock()
	if onPost != nil {
		c.UI.QueueUpdate(func() { onPost(post) })
	}
	return nil
}

func (c *Client) handleCommentFrame(data json.RawMessage) error {
	var comment models.Comment
	if err := json.Unmarshal(data, &comment); err != nil {
		return fmt.Errorf("decode comment: %w", err)
	}

	c.mu.Lock()
	onComment := c.onComment
	c.mu.Unlock()
	if onComment != nil {
		c.UI.QueueUpdate(func() { onComment(comment) })
	}
	return nil
}

func (c *Client) handlePrivateMessageFrame(data json.RawMessage) error {
	var pm models.PrivateMessage
	if err := json.Unmarshal(data, &pm); err != nil {
		return fmt.Errorf("decode private message: %w", err)
	}

	sess, _ := c.Session.Current()
	peer, peerName := pm.SenderID, pm.SenderName
	if pm.SenderID == sess.UserID {
		// authoritative echo of our own message; the conversation
		// partner is the receiver
		peer, peerName = pm.ReceiverID, ""
	}

	replaced := false
	c.mu.Lock()
	if pm.MessageID != "" {
		if _, ok := c.pending[pm.MessageID]; ok {
			delete(c.pending, pm.MessageID)
			replaced = true
		}
	}
	onMessage := c.onMessage
	active := c.activePeer
	c.mu.Unlock()

	ts := pm.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if peer != "" {
		c.Roster.RecordInteraction(peer, peerName, ts)
	}

	switch {
	case onMessage != nil && (active == peer || replaced):
		c.UI.QueueUpdate(func() { onMessage(pm, replaced) })
	case !replaced && pm.SenderID != sess.UserID:
		c.bumpUnread()
	}

	// message activity is the moment presence tends to be stale
	c.Channel.Send(models.Frame{Type: models.FrameRequestUserStatus})

	c.mu.Lock()
	onRoster := c.onRoster
	c.mu.Unlock()
	if onRoster != nil {
		c.UI.QueueUpdate(onRoster)
	}
	return nil
}

func (c *Client) handleUserStatusFrame(data json.RawMessage) error {
	var snapshot []models.UserStatus
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode user status: %w", err)
	}
	c.Roster.Reconcile(snapshot)

	c.mu.Lock()
	onRoster := c.onRoster
	c.mu.Unlock()
	if onRoster != nil {
		c.UI.QueueUpdate(onRoster)
	}
	return nil
}

func (c *Client) handleErrorFrame(data json.RawMessage) error {
	var payload models.ErrorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode error frame: %w", err)
	}
	// the channel manager already reacts to the unauthorized signal;
	// anything else is only worth telling the user about
	if payload.Message != "Unauthorized" {
		c.UI.QueueUpdate(func() {
			c.UI.ShowNotice(payload.Message, 4*time.Second)
		})
	}
	return nil
}

func (c *Client) bumpUnread() {
	c.mu.Lock()
	c.unread++
	count := c.unread
	c.mu.Unlock()

	c.UI.QueueUpdate(func() {
		c.UI.ShowNotice(fmt.Sprintf("You have %d new message(s)", count), 3*time.Second)
	})
}

// handleUnauthorized cascades an unauthorized signal from either transport:
// drop the session, stop the channel, land on the login screen.
func (c *Client) handleUnauthorized() {
	c.log.Warn("session no longer valid, logging out")
	c.Session.Clear()
	c.Channel.Close()
	go c.UI.QueueUpdate(func() {
		c.Router.Navigate("/")
	})
}

func (c *Client) handleReconnectExhausted() {
	c.UI.QueueUpdate(func() {
		c.UI.ShowNotice("Connection lost and could not be re-established.", 6*time.Second)
	})
}

// Login exchanges credentials for a session, connects the channel and
// moves to the homepage.
func (c *Client) Login(identifier, password string) error {
	sess, err := c.API.Login(context.Background(), api.LoginRequest{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return err
	}
	c.Session.Set(sess)
	c.Channel.Connect(sess.Token)
	c.Router.Navigate("/homepage")
	return nil
}

// Logout closes the channel normally (no reconnect), clears the session
// and returns to the login screen.
func (c *Client) Logout() {
	if err := c.API.Logout(context.Background()); err != nil {
		c.log.Warn("logout request failed", zap.Error(err))
	}
	c.Channel.Close()
	c.Session.Clear()
	c.Router.Navigate("/")
}

// CreatePost persists the post over HTTP and announces the authoritative
// copy on the channel, mirroring the create-then-broadcast flow.
func (c *Client) CreatePost(subject, content string, categoryIDs []string) error {
	post, err := c.API.CreatePost(context.Background(), api.CreatePostRequest{
		Subject:    subject,
		Content:    content,
		Categories: categoryIDs,
	})
	if err != nil {
		return err
	}
	c.markPostSeen(post.ID)

	frame, err := models.NewFrame(models.FramePost, post)
	if err != nil {
		return err
	}
	c.Channel.Send(frame)
	c.Router.Navigate("/homepage")
	return nil
}

// CreateComment persists the comment and announces it on the channel.
func (c *Client) CreateComment(postID, content string) error {
	comment, err := c.API.CreateComment(context.Background(), api.CreateCommentRequest{
		PostID:  postID,
		Content: content,
	})
	if err != nil {
		return err
	}
	frame, err := models.NewFrame(models.FrameComment, comment)
	if err != nil {
		return err
	}
	c.Channel.Send(frame)
	return nil
}

// SendPrivateMessage sends a direct message with optimistic local echo:
// the provisional copy renders immediately and is replaced when the
// authoritative server echo arrives under the same message id.
func (c *Client) SendPrivateMessage(receiverID, content string) error {
	sess, ok := c.Session.Current()
	if !ok {
		return models.ErrUnauthorized
	}

	pm := models.PrivateMessage{
		MessageID:  uuid.NewString(),
		SenderID:   sess.UserID,
		ReceiverID: receiverID,
		SenderName: sess.UserName,
		Content:    content,
		Timestamp:  time.Now(),
	}
	frame, err := models.NewFrame(models.FramePrivateMessage, pm)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pending[pm.MessageID] = pm
	onMessage := c.onMessage
	c.mu.Unlock()

	c.Channel.Send(frame)
	c.Roster.RecordInteraction(receiverID, "", pm.Timestamp)
	if onMessage != nil {
		// we are on the draw goroutine here (send button handler)
		onMessage(pm, false)
	}
	c.Channel.Send(models.Frame{Type: models.FrameRequestUserStatus})
	return nil
}
