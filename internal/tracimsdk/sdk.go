package tracimsdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/version"
)

const (
	DefaultTimeout = 30 * time.Second

	pathWhoami = "/auth/whoami"
)

var (
	ErrNoAddress   = errors.New("sdk: server address missing")
	ErrNoWorkspace = errors.New("sdk: workspace id missing")
	ErrNoUsername  = errors.New("sdk: username missing")
)

// Config is the configuration of a Client.
type Config struct {
	Address     string // Address is host[:port], required
	UseTLS      bool
	WorkspaceID int64 // WorkspaceID is required
	Username    string
	Password    string
	Timeout     time.Duration // Timeout bounds every non streaming request
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return ErrNoAddress
	}
	if c.WorkspaceID <= 0 {
		return ErrNoWorkspace
	}
	if c.Username == "" {
		return ErrNoUsername
	}
	return nil
}

// BaseURL returns `https://host/api`
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api", scheme, c.Address)
}

// Client talks to the Tracim HTTP API of one workspace.
type Client struct {
	config *Config
	http   *req.Client
	stream *req.Client
}

var _ remote.Client = (*Client)(nil)

func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		config: config,
		http:   newHTTPClient(config).SetTimeout(timeout),
		// live messages never complete
		stream: newHTTPClient(config).SetTimeout(0),
	}, nil
}

func newHTTPClient(config *Config) *req.Client {
	return req.C().
		SetBaseURL(config.BaseURL()).
		SetUserAgent(version.UserAgent()).
		SetCommonBasicAuth(config.Username, config.Password).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
}

func (c *Client) WorkspaceID() int64 {
	return c.config.WorkspaceID
}

func (c *Client) workspacePath(format string, args ...any) string {
	return fmt.Sprintf("/workspaces/%d/", c.config.WorkspaceID) + fmt.Sprintf(format, args...)
}

// Whoami returns the id of the authenticated user, checking the credentials on the way.
func (c *Client) Whoami(ctx context.Context) (int64, error) {
	var user struct {
		UserID int64 `json:"user_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&user).
		Get(pathWhoami)

	if err := handleAPIError(resp, err, "whoami"); err != nil {
		return 0, err
	}
	return user.UserID, nil
}
