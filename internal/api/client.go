package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cinder/internal/models"

	"github.com/c-pro/geche"
	"github.com/h2non/filetype"
)

const profileCacheTTL = 5 * time.Minute

// Client talks to the Cinder REST API. All methods return the canonical
// payload type; response envelope differences are normalized in unwrap.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	profiles geche.Geche[string, models.Profile]
}

func NewClient(ctx context.Context, baseURL string) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{},
		profiles: geche.NewMapTTLCache[string, models.Profile](ctx, profileCacheTTL, time.Minute),
	}
}

// SetToken sets the bearer token used for all subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode)
	}

	return data, nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req)
	if err != nil {
		return LoginResponse{}, err
	}
	return decodePayload[LoginResponse](body)
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (LoginResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, req)
	if err != nil {
		return LoginResponse{}, err
	}
	return decodePayload[LoginResponse](body)
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/notifications", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[[]models.Notification](body)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, nil)
	if err != nil {
		return 0, err
	}
	payload, err := decodePayload[struct {
		Count int `json:"count"`
	}](body)
	return payload.Count, err
}

func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/notifications/read", nil, struct {
		IDs []string `json:"ids"`
	}{IDs: ids})
	return err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil)
	return err
}

func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	q := url.Values{"userId": {userID}}
	body, err := c.do(ctx, http.MethodGet, "/api/conversations", q, nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[[]models.Conversation](body)
}

func (c *Client) ListMessages(ctx context.Context, userID, otherUserID string) ([]models.ChatMessage, error) {
	q := url.Values{"userId": {userID}}
	body, err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(otherUserID), q, nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[[]models.ChatMessage](body)
}

type SendMessageRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (models.ChatMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/messages", nil, req)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return decodePayload[models.ChatMessage](body)
}

// Page carries the server's pagination metadata alongside one page of items.
type Page[T any] struct {
	Items       []T  `json:"items"`
	HasNextPage bool `json:"hasNextPage"`
	CurrentPage int  `json:"currentPage"`
}

func (c *Client) ListFeed(ctx context.Context, page int) (Page[models.Post], error) {
	q := url.Values{"page": {fmt.Sprint(page)}}
	body, err := c.do(ctx, http.MethodGet, "/api/posts", q, nil)
	if err != nil {
		return Page[models.Post]{}, err
	}
	return decodePayload[Page[models.Post]](body)
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (models.Post, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/like", nil, nil)
	if err != nil {
		return models.Post{}, err
	}
	return decodePayload[models.Post](body)
}

func (c *Client) ListMatches(ctx context.Context, page int) (Page[models.Profile], error) {
	q := url.Values{"page": {fmt.Sprint(page)}}
	body, err := c.do(ctx, http.MethodGet, "/api/matches", q, nil)
	if err != nil {
		return Page[models.Profile]{}, err
	}
	return decodePayload[Page[models.Profile]](body)
}

type CreateSwipeRequest struct {
	TargetID string                `json:"targetId"`
	Action   models.SwipeDirection `json:"action"`
}

func (c *Client) CreateSwipe(ctx context.Context, req CreateSwipeRequest) (models.SwipeResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/swipes", nil, req)
	if err != nil {
		return models.SwipeResult{}, err
	}
	return decodePayload[models.SwipeResult](body)
}

// GetProfile reads through a short-lived cache. Profiles are denormalized
// snapshots everywhere else, so slightly stale data is acceptable here.
func (c *Client) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	if p, err := c.profiles.Get(userID); err == nil {
		return p, nil
	}

	body, err := c.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(userID), nil, nil)
	if err != nil {
		return models.Profile{}, err
	}

	p, err := decodePayload[models.Profile](body)
	if err != nil {
		return models.Profile{}, err
	}

	c.profiles.Set(userID, p)
	return p, nil
}

// UploadPhoto uploads a profile photo. The image type is sniffed locally
// before any bytes go over the wire.
func (c *Client) UploadPhoto(ctx context.Context, data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", fmt.Errorf("photo is not a recognized image format")
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("failed to detect file type: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/profiles/photo", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", kind.MIME.Value)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("photo upload returned %d", resp.StatusCode)
	}

	payload, err := decodePayload[struct {
		URL string `json:"url"`
	}](body)
	return payload.URL, err
}
