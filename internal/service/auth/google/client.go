package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/todo/internal/logger"
)

const (
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo?alt=json"

	defaultTimeout = 5 * time.Second
)

const (
	CodeUnauthorized = "unauthorized"
	CodeNoEmail      = "no-email"
	CodeUnknown      = "unknown"
)

type Error struct {
	Code       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, status: %d, error: %v", e.Code, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(code string, statusCode int, err error) *Error {
	return &Error{Code: code, StatusCode: statusCode, Err: err}
}

type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Client exchanges Google OAuth access token for the user profile
type Client struct {
	UserInfoURL string
	Timeout     time.Duration

	client *http.Client
	logger logger.Logger
}

func NewClient(userInfoURL string, l logger.Logger) *Client {
	if userInfoURL == "" {
		userInfoURL = DefaultUserInfoURL
	}

	return &Client{
		UserInfoURL: userInfoURL,
		Timeout:     defaultTimeout,
		client:      &http.Client{},
		logger:      l,
	}
}

func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var info UserInfo

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserInfoURL, nil)
	if err != nil {
		return info, NewError(CodeUnknown, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return info, NewError(CodeUnknown, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		return c.processSuccess(resp)
	case http.StatusUnauthorized, http.StatusForbidden:
		return info, NewError(CodeUnauthorized, resp.StatusCode, errors.New("access token rejected"))
	default:
		c.logger.Warn("Failed to get user info", "status_code", resp.StatusCode)
		return info, NewError(CodeUnknown, resp.StatusCode, fmt.Errorf("unknown status code %d", resp.StatusCode))
	}
}

// UserEmail returns email of the token owner or error if there is none
func (c *Client) UserEmail(ctx context.Context, accessToken string) (string, error) {
	info, err := c.GetUserInfo(ctx, accessToken)
	if err != nil {
		return "", err
	}
	if info.Email == "" {
		return "", NewError(CodeNoEmail, http.StatusOK, errors.New("user info has no email"))
	}
	return info.Email, nil
}

func (c *Client) processSuccess(resp *http.Response) (UserInfo, error) {
	var info UserInfo
	err := json.NewDecoder(resp.Body).Decode(&info)
	if err != nil {
		c.logger.Warn("Failed to decode response", "error", err)
		return info, NewError(CodeUnknown, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	c.logger.Debug("Google user info response", "id", info.ID, "verified_email", info.VerifiedEmail)
	return info, nil
}
