// Package graph sends review notifications through Microsoft Graph: Teams
// one-on-one chat messages and mail from a shared sender mailbox.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/joescharf/nsreview/internal/output"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	defaultScope   = "https://graph.microsoft.com/.default"
)

// Config holds Graph connection settings. Either AccessToken or the
// TenantID/ClientID/ClientSecret triple must be set.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	Sender       string // UPN of the mailbox mail is sent from

	BaseURL  string // defaults to DefaultBaseURL
	TokenURL string // defaults to the tenant's v2.0 token endpoint
}

// Configured reports whether cfg carries a sender and a way to get a token.
func (c Config) Configured() bool {
	if c.Sender == "" {
		return false
	}
	if c.AccessToken != "" {
		return true
	}
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

func (c Config) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(c.TenantID))
}

// APIError is returned for any non-2xx Graph response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph API returned %d: %s", e.StatusCode, e.Body)
}

// Client is a minimal Graph REST client. Mutating calls are suppressed when
// the UI is in dry-run mode.
type Client struct {
	baseURL    string
	sender     string
	httpClient *http.Client
	limiter    *rate.Limiter
	ui         *output.UI
}

// New builds a Client from cfg. The token source is a static bearer token
// when AccessToken is set, otherwise the OAuth2 client credentials flow.
func New(ctx context.Context, cfg Config, ui *output.UI) (*Client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("graph: sender and credentials are required")
	}

	var hc *http.Client
	if cfg.AccessToken != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}))
	} else {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.tokenURL(),
			Scopes:       []string{defaultScope},
		}
		hc = cc.Client(ctx)
	}
	hc.Timeout = 30 * time.Second

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		sender:     cfg.Sender,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		ui:         ui,
	}, nil
}

// Sender returns the mailbox UPN notifications are sent from.
func (c *Client) Sender() string { return c.sender }

func (c *Client) dryRun(format string, a ...any) bool {
	if c.ui.DryRun {
		c.ui.DryRunMsg(format, a...)
		return true
	}
	return false
}

func (c *Client) userPath() string {
	return "/users/" + url.PathEscape(c.sender)
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. headers may be nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any, headers map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal graph payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.ui.VerboseLog("graph %s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}
