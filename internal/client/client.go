// Package client talks to a running tcan-bench control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kstaniek/go-tcan-bench/internal/api"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/device"
)

// ErrStatus wraps every non-2xx reply.
var ErrStatus = errors.New("unexpected response status")

type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
			c.dialer.HandshakeTimeout = d
		}
	}
}

// New accepts "host:port" or a full http(s) URL.
func New(addr string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("server address %q: %w", addr, err)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 5 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) url(elem ...string) string { return c.base.JoinPath(elem...).String() }

func (c *Client) EnterMode(ctx context.Context, m device.Mode) error {
	return c.post(ctx, nil, "enter_mode", strconv.Itoa(int(m)))
}

// SetAxis sends up to 8 raw axis bytes.
func (c *Client) SetAxis(ctx context.Context, axis []byte) error {
	values := make([]int, len(axis))
	for i, b := range axis {
		values[i] = int(b)
	}
	return c.post(ctx, values, "set_axis")
}

// SetSteering encodes a steering value in [-1000, 1000] as the axis payload.
func (c *Client) SetSteering(ctx context.Context, steering int) error {
	p, err := device.SteeringPayload(steering)
	if err != nil {
		return err
	}
	return c.SetAxis(ctx, p[:])
}

func (c *Client) Autocal(ctx context.Context) error { return c.post(ctx, nil, "autocal") }

func (c *Client) Command(ctx context.Context, tok command.Token) error {
	return c.post(ctx, nil, "command", string(tok))
}

func (c *Client) State(ctx context.Context) (api.State, error) {
	var st api.State
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("state"), nil)
	if err != nil {
		return st, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return st, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

// Monitor streams transmitted frames to fn until ctx ends or the server goes away.
func (c *Client) Monitor(ctx context.Context, fn func(can.Frame)) error {
	u := c.base.JoinPath("ws", "frames")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
		}
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		var batch []api.Frame
		if err := conn.ReadJSON(&batch); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		for _, f := range batch {
			fr, err := f.CAN()
			if err != nil {
				return err
			}
			fn(fr)
		}
	}
}

func (c *Client) post(ctx context.Context, body any, elem ...string) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(elem...), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// checkStatus turns a non-2xx reply into ErrStatus carrying the server's message.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var st api.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&st); err == nil && st.Message != "" {
		return fmt.Errorf("%w: %s: %s", ErrStatus, resp.Status, st.Message)
	}
	return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
}
