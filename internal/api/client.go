package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/httputil"
)

// Client talks to a running node's API.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the API served at base, e.g.
// "http://localhost:8080". A nil http client uses the default.
func NewClient(base string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

// SendCommand posts a raw board command.
func (c *Client) SendCommand(command string) (CommandResult, error) {
	var out CommandResult
	resp, err := c.http.PostForm(c.base+"/api/command", url.Values{"command": {command}})
	if err != nil {
		return out, err
	}
	return out, decodeResponse(resp, &out)
}

// Board fetches the board description.
func (c *Client) Board() (BoardInfo, error) {
	var out BoardInfo
	resp, err := c.http.Get(c.base + "/api/board")
	if err != nil {
		return out, err
	}
	return out, decodeResponse(resp, &out)
}

// LatestFrame fetches the most recent frame.
func (c *Client) LatestFrame() (frame.Frame, error) {
	var out frame.Frame
	resp, err := c.http.Get(c.base + "/api/frames/latest")
	if err != nil {
		return out, err
	}
	return out, decodeResponse(resp, &out)
}

func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, v)
}
