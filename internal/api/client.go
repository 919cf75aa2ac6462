// Package api holds the thin HTTP request helpers: one-shot calls against
// the forum backend, with the session credential attached as a bearer
// token. Anything realtime goes over the channel instead.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"agora/internal/models"
)

// TokenSource yields the current session credential, or "" when logged
// out. *session.Store satisfies it.
type TokenSource interface {
	Token() string
}

type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger

	// onUnauthorized fires when any request other than the session
	// validation probe comes back 401.
	onUnauthorized func()
}

func NewClient(baseURL string, tokens TokenSource, onUnauthorized func(), log *zap.Logger) *Client {
	return &Client{
		base:           strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 10 * time.Second},
		tokens:         tokens,
		log:            log,
		onUnauthorized: onUnauthorized,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.log.Warn("request unauthorized", zap.String("path", path))
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, models.ErrUnauthorized
	}
	return resp, nil
}

// doJSON performs the request and decodes a 2xx response body into out
// (which may be nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ValidateSession probes the session-validation endpoint. Only a 2xx means
// authenticated; any other status or a network failure means not. The
// unauthorized callback intentionally does not fire here: the router guard
// owns the redirect for failed checks.
func (c *Client) ValidateSession(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/validate-session", nil)
	if err != nil {
		return false
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("session validation unreachable", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

type LoginRequest struct {
	Identifier string `json:"identifier"` // username or e-mail
	Password   string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login exchanges credentials for a session. Credential issuance itself is
// the backend's business; the client only stores what comes back.
func (c *Client) Login(ctx context.Context, req LoginRequest) (models.Session, error) {
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return models.Session{}, err
	}
	return models.Session{
		Token:    resp.Token,
		UserID:   resp.User.ID,
		UserName: resp.User.Username,
	}, nil
}

type RegistrationRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegistrationRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/registration", req, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/logout", nil, nil)
}

func (c *Client) FetchPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) FetchPost(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

type CreatePostRequest struct {
	Subject    string   `json:"subject"`
	Content    string   `json:"content"`
	Categories []string `json:"categories,omitempty"`
}

func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (models.Post, error) {
	var post models.Post
	if err := c.doJSON(ctx, http.MethodPost, "/api/posts", req, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (c *Client) FetchComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	path := "/api/comments?post_id=" + url.QueryEscape(postID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

type CreateCommentRequest struct {
	PostID  string `json:"post_id"`
	Content string `json:"content"`
}

// CreateComment persists a comment and returns the server's authoritative
// copy, which the caller then announces over the channel.
func (c *Client) CreateComment(ctx context.Context, req CreateCommentRequest) (models.Comment, error) {
	var comment models.Comment
	if err := c.doJSON(ctx, http.MethodPost, "/api/comments", req, &comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (c *Client) FetchCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.doJSON(ctx, http.MethodGet, "/api/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/categories", map[string]string{"name": name}, nil)
}

// FetchMessages loads one page of private-message history with userID,
// newest page first, mirroring the paged scrollback the messages screen
// uses.
func (c *Client) FetchMessages(ctx context.Context, userID string, limit, offset int) ([]models.PrivateMessage, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var msgs []models.PrivateMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/get-messages?"+q.Encode(), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
