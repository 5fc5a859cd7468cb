// Package strawpoll creates polls on a strawpoll.me compatible service
package strawpoll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint  = "http://www.strawpoll.me/api/v2/polls"
	DefaultShareBase = "http://www.strawpoll.me"
)

// ErrTransport is returned when the poll service could not be reached
var ErrTransport = errors.New("error contacting poll service")

// Client is the struct that creates polls over http
type Client struct {
	endpoint   string
	shareBase  string
	httpClient *http.Client

	l *zap.SugaredLogger
}

type Config struct {
	Endpoint  string
	ShareBase string
	// Optional forward proxy URL (http, https or socks5)
	Proxy string
	// Zero means requests never time out
	Timeout time.Duration
}

// A Poll is a poll the service has created
type Poll struct {
	ID    string
	Title string
}

// NewClient produces a new client with the given config
func NewClient(c Config, l *zap.SugaredLogger) (*Client, error) {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.ShareBase == "" {
		c.ShareBase = DefaultShareBase
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return nil, fmt.Errorf("error parsing proxy url: %s", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Client{
		endpoint:  c.Endpoint,
		shareBase: strings.TrimRight(c.ShareBase, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   c.Timeout,
		},
		l: l,
	}, nil
}

// Represents the request to create a poll
type createPoll struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
	Multi   bool     `json:"multi"`
}

type createPollResp struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

// CreatePoll creates a single-choice poll and returns its id and title
func (c *Client) CreatePoll(ctx context.Context, title string, options []string) (Poll, error) {
	byts, err := json.Marshal(createPoll{
		Title:   title,
		Options: options,
		Multi:   false,
	})
	if err != nil {
		return Poll{}, fmt.Errorf("error marshalling poll: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(byts))
	if err != nil {
		return Poll{}, fmt.Errorf("error creating request to create poll: %s", err)
	}
	req.Header.Add("Content-Type", "application/json")

	c.l.Debugw("calling to create poll", "url", c.endpoint, "title", title)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Poll{}, fmt.Errorf("%w: %s", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		er := readErr(res)
		c.l.Errorw("received error response from poll service", "err", er, "status_code", res.StatusCode)
		return Poll{}, er
	}

	var pr createPollResp
	if err := json.NewDecoder(res.Body).Decode(&pr); err != nil {
		return Poll{}, fmt.Errorf("error reading from response body: %s", err)
	}
	if pr.ID == "" {
		return Poll{}, errors.New("poll service returned no id")
	}

	c.l.Infow("created poll", "id", pr.ID, "title", pr.Title)

	return Poll{ID: pr.ID.String(), Title: pr.Title}, nil
}

// ShareURL is the public link for a poll
func (c *Client) ShareURL(p Poll) string {
	return c.shareBase + "/" + p.ID
}
