package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// errRequestFailed is returned when the daemon answers with a non-2xx
// status.
var errRequestFailed = errors.New("request failed")

// restClient is a minimal JSON client for the linkwatchd REST API.
type restClient struct {
	baseURL    string
	httpClient *http.Client
}

func newRESTClient(baseURL string) *restClient {
	return &restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// get fetches path and decodes the JSON response into out.
func (c *restClient) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	return c.decode(path, resp, out)
}

// post sends body as JSON to path and decodes the response into out
// (out may be nil).
func (c *restClient) post(path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	return c.decode(path, resp, out)
}

func (c *restClient) decode(path string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s",
			errRequestFailed, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// Wire shapes mirrored from the daemon's REST API.

type interfaceView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DPID       string `json:"dpid"`
	PortNumber int    `json:"port_number"`
	LLDP       bool   `json:"lldp"`
	Active     bool   `json:"active"`
	Enabled    bool   `json:"enabled"`
	Liveness   string `json:"liveness,omitempty"`
}

type endpointView struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	LastHelloAt *time.Time `json:"last_hello_at,omitempty"`
}

type pairView struct {
	A     endpointView `json:"interface_a"`
	B     endpointView `json:"interface_b"`
	State string       `json:"state"`
}

type loopView struct {
	DPID        string     `json:"dpid"`
	PortNumbers [2]int     `json:"port_numbers"`
	State       string     `json:"state"`
	DetectedAt  time.Time  `json:"detected_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
}

type pollingTimeView struct {
	PollingTime string `json:"polling_time"`
}

type interfacesRequest struct {
	Interfaces []string `json:"interfaces"`
}
