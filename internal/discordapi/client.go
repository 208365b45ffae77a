package discordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIBaseURL = "https://discord.com/api/v10"
	userAgent         = "DiscordBot (https://github.com/michaelhelvey/crabbot, 1.0.0)"

	defaultHTTPTimeout = 15 * time.Second
	maxErrorBodyBytes  = 64 << 10
)

var (
	ErrAppIDRequired    = errors.New("application id is required")
	ErrBotTokenRequired = errors.New("bot token is required")
)

// Client talks to the Discord REST API on behalf of the bot.
type Client struct {
	httpClient *http.Client
	apiBaseURL string
	appID      string
	botToken   string
}

// NewClient creates a Discord REST client. An empty apiBaseURL selects the
// public v10 API.
func NewClient(apiBaseURL, appID, botToken string, httpClient *http.Client) (*Client, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, ErrAppIDRequired
	}
	botToken = strings.TrimSpace(botToken)
	if botToken == "" {
		return nil, ErrBotTokenRequired
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	apiBaseURL = strings.TrimSpace(apiBaseURL)
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	return &Client{
		httpClient: httpClient,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		appID:      appID,
		botToken:   botToken,
	}, nil
}

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("discord api: status %d: %s", e.StatusCode, msg)
}

// PutCommands replaces the application's global command list and returns the
// commands as registered.
func (c *Client) PutCommands(ctx context.Context, commands []Command) ([]RegisteredCommand, error) {
	if commands == nil {
		commands = []Command{}
	}
	body, err := json.Marshal(commands)
	if err != nil {
		return nil, fmt.Errorf("marshaling commands: %w", err)
	}

	endpoint := c.apiBaseURL + "/applications/" + url.PathEscape(c.appID) + "/commands"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var registered []RegisteredCommand
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return nil, fmt.Errorf("decoding discord response: %w", err)
	}
	return registered, nil
}
