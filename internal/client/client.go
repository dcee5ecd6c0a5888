package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/npezzotti/go-tripplanner/internal/types"
)

const defaultTimeout = 15 * time.Second

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// Is maps statuses onto the planner sentinels so callers can use errors.Is.
func (e *StatusError) Is(target error) bool {
	switch target {
	case planner.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case planner.ErrNotController:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// Client talks to the trip planner API as one logged in user. It implements
// planner.Backend and planner.OpportunitySource.
type Client struct {
	log     *log.Logger
	baseURL *url.URL
	http    *http.Client

	mu     sync.Mutex
	userId string
	feed   *feed
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(logger *log.Logger, baseURL *url.URL, opts ...Option) (*Client, error) {
	if baseURL == nil {
		return nil, fmt.Errorf("base url is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		log:     logger,
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}

	return c, nil
}

// UserId is the id of the logged in user, empty before Login.
func (c *Client) UserId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userId
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends body as JSON and decodes a 2xx answer into out. Other statuses
// come back as *StatusError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(statusErr); err != nil {
		statusErr.Message = ""
	}
	statusErr.StatusCode = resp.StatusCode
	return statusErr
}

func (c *Client) Register(ctx context.Context, username, email, password string) (types.Profile, error) {
	var p types.Profile
	err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, &p)
	return p, err
}

// Login authenticates and keeps the session cookie for later calls,
// including the websocket dial.
func (c *Client) Login(ctx context.Context, email, password string) (types.Profile, error) {
	var p types.Profile
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &p); err != nil {
		return types.Profile{}, err
	}

	c.mu.Lock()
	c.userId = p.Id
	c.mu.Unlock()

	return p, nil
}

func (c *Client) CreateRoom(ctx context.Context, name, description string, isPublic bool) (types.Room, error) {
	var room types.Room
	err := c.do(ctx, http.MethodPost, "/api/rooms", nil, map[string]any{
		"name":        name,
		"description": description,
		"is_public":   isPublic,
	}, &room)
	return room, err
}

func (c *Client) JoinRoom(ctx context.Context, code string) (types.Participant, error) {
	var p types.Participant
	err := c.do(ctx, http.MethodPost, "/api/rooms/join", nil, map[string]string{"room_code": code}, &p)
	return p, err
}

func (c *Client) LeaveRoom(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/leave", nil, map[string]string{"room_code": code}, nil)
}

func (c *Client) PublicRooms(ctx context.Context) ([]types.Room, error) {
	var rooms []types.Room
	err := c.do(ctx, http.MethodGet, "/api/rooms/public", nil, nil, &rooms)
	return rooms, err
}

func (c *Client) GetRoom(ctx context.Context, code string) (types.Room, error) {
	var room types.Room
	err := c.do(ctx, http.MethodGet, "/api/rooms", url.Values{"code": {code}}, nil, &room)
	return room, err
}

func (c *Client) UpdateSelection(ctx context.Context, sel types.Selection) (types.Room, error) {
	if sel.SelectedCountry != nil && !planner.IsEligibleCountry(*sel.SelectedCountry) {
		return types.Room{}, planner.ErrIneligibleCountry
	}

	var room types.Room
	err := c.do(ctx, http.MethodPut, "/api/rooms/selection", nil, sel, &room)
	return room, err
}

func (c *Client) GetMessages(ctx context.Context, roomCode string) ([]types.Message, error) {
	var messages []types.Message
	err := c.do(ctx, http.MethodGet, "/api/messages", url.Values{"room_code": {roomCode}}, nil, &messages)
	return messages, err
}

func (c *Client) SendMessage(ctx context.Context, roomCode, text string) (types.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Message{}, planner.ErrEmptyMessage
	}

	var msg types.Message
	err := c.do(ctx, http.MethodPost, "/api/messages", nil, map[string]string{
		"room_code": roomCode,
		"message":   text,
	}, &msg)
	return msg, err
}

func (c *Client) GetProfile(ctx context.Context, userId string) (types.Profile, error) {
	var p types.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles", url.Values{"id": {userId}}, nil, &p)
	return p, err
}

// GetOpportunities streams the grouped opportunity dataset. The caller
// closes the body.
func (c *Client) GetOpportunities(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/opportunities", nil), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get opportunities: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeStatusError(resp)
	}

	return resp.Body, nil
}

// Subscribe registers fn for row changes of table in roomCode over the
// shared websocket, dialing it on first use or after it dropped.
func (c *Client) Subscribe(ctx context.Context, roomCode, table string, fn func(types.RowChange)) (planner.Subscription, error) {
	f, err := c.liveFeed(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := f.subscribe(ctx, roomCode, table, fn)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) liveFeed(ctx context.Context) (*feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.feed != nil && !c.feed.closed() {
		return c.feed, nil
	}

	f, err := dialFeed(ctx, c.log, c.wsURL(), c.http.Jar)
	if err != nil {
		return nil, err
	}
	c.feed = f
	return f, nil
}

func (c *Client) wsURL() string {
	u := *c.baseURL.JoinPath("/ws")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// Close drops the websocket. REST calls keep working.
func (c *Client) Close() error {
	c.mu.Lock()
	f := c.feed
	c.feed = nil
	c.mu.Unlock()

	if f == nil {
		return nil
	}
	return f.close()
}

var (
	_ planner.Backend           = (*Client)(nil)
	_ planner.OpportunitySource = (*Client)(nil)
)
