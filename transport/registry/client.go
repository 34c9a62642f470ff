// Package registry talks to the Room Registry: the HTTP endpoints that mint
// room codes and admit players before they open a realtime connection.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrGameInProgress = errors.New("game in progress")
)

const defaultTimeout = 10 * time.Second

// Error is a refusal reported by the registry
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("registry error: %d", e.Status)
	}
	return e.Detail
}

// Is lets callers match refusals with errors.Is
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRoomNotFound:
		return e.Status == http.StatusNotFound
	case ErrGameInProgress:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// Client is a thin HTTP client for the registry endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a registry client. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

type checkRoomRequest struct {
	RoomID   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

// CreateRoom asks the registry for a fresh room code
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var resp createRoomResponse
	if err := c.apiCall(ctx, http.MethodPost, "/create-room", nil, &resp); err != nil {
		return "", err
	}
	if resp.RoomID == "" {
		return "", fmt.Errorf("create-room returned no room id")
	}
	return resp.RoomID, nil
}

// CheckRoom asks whether nickname may enter roomID. A refusal is an *Error
// carrying the server's detail message.
func (c *Client) CheckRoom(ctx context.Context, roomID, nickname string) error {
	return c.apiCall(ctx, http.MethodPost, "/check-room", checkRoomRequest{RoomID: roomID, Nickname: nickname}, nil)
}

// apiCall makes a JSON request against the registry
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		c.logger.Debug("registry refused request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", errResp.Detail))
		return &Error{Status: resp.StatusCode, Detail: errResp.Detail}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}

	return nil
}
