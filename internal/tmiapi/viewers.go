// Package tmiapi looks up the viewers present in a chat channel.
//
// NAMES only lists operators once a room holds more than 1000 chatters, so
// the chatters endpoint is used instead.
package tmiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// DefaultBaseURL is the chatters endpoint root.
const DefaultBaseURL = "http://tmi.twitch.tv"

// ErrUnavailable is wrapped by every APIError.
var ErrUnavailable = errors.New("viewer list unavailable")

// APIError reports a failed viewer lookup.
type APIError struct {
	Channel string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tmiapi: viewers of %s: status %d: %v", e.Channel, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tmiapi: viewers of %s: %v", e.Channel, e.Err)
}

func (e *APIError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// ViewerList is a snapshot of a channel's chatters.
type ViewerList struct {
	// Chatters maps a role (moderators, staff, viewers, ...) to its names.
	Chatters map[string][]string
	// Viewers is every name in Chatters, sorted.
	Viewers []string
	// Count is the gateway's own chatter count, which may lag Viewers.
	Count int
}

type chattersResponse struct {
	ChatterCount int                 `json:"chatter_count"`
	Chatters     map[string][]string `json:"chatters"`
}

// Client queries the chatters endpoint.
type Client struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client
}

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// Viewers returns the chatters of channel.
func (c *Client) Viewers(ctx context.Context, channel string) (*ViewerList, error) {
	name := strings.ToLower(strings.TrimPrefix(channel, "#"))
	if name == "" {
		return nil, &APIError{Channel: channel, Err: errors.New("empty channel name")}
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = defaultHTTPClient
	}

	url := strings.TrimRight(base, "/") + "/group/user/" + name + "/chatters"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{Channel: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &APIError{Channel: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			Channel:    name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	var data chattersResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &APIError{Channel: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}

	list := &ViewerList{Chatters: data.Chatters, Count: data.ChatterCount}
	if list.Chatters == nil {
		list.Chatters = map[string][]string{}
	}
	for _, names := range list.Chatters {
		list.Viewers = append(list.Viewers, names...)
	}
	sort.Strings(list.Viewers)
	return list, nil
}
