// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: September 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client is the Go client for the hutch wire protocol: one
// websocket, JSON envelopes, responses matched to requests by the
// envelope's correlation id. Safe for concurrent use; responses may
// arrive in any order.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// DefaultURL is the conventional server endpoint.
const DefaultURL = "ws://localhost:5919"

// ErrClosed is returned by calls made on (or interrupted by) a closed
// connection.
var ErrClosed = errors.New("connection closed")

// Response is one decoded response envelope.
type Response struct {
	ID     int64           `json:"i"`
	Status string          `json:"status"`
	Doc    json.RawMessage `json:"doc,omitempty"`
}

// CallError is a non-ok response: the server's status code plus its
// optional structured payload.
type CallError struct {
	Status string
	Doc    json.RawMessage
}

func (e *CallError) Error() string {
	if len(e.Doc) == 0 {
		return fmt.Sprintf("server error: %s", e.Status)
	}
	return fmt.Sprintf("server error: %s %s", e.Status, e.Doc)
}

// Lineage extracts the conflict chain from a lineage-status error: the
// ordered snapshots (oldest to newest) between the caller's base revision
// and the current leaf.
func Lineage(err error) ([]map[string]any, bool) {
	var ce *CallError
	if !errors.As(err, &ce) || ce.Status != "lineage" {
		return nil, false
	}
	var payload struct {
		Lineage []map[string]any `json:"lineage"`
	}
	if json.Unmarshal(ce.Doc, &payload) != nil {
		return nil, false
	}
	return payload.Lineage, true
}

// Client is one wire connection.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan Response
	readErr error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to a hutch server, e.g. "ws://localhost:5919".
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan Response),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var resp Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			c.fail(fmt.Errorf("response decode: %w", err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// fail closes the connection and wakes every pending call.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	c.conn.Close()
}

// Close tears the connection down; pending calls return ErrClosed.
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return nil
}

// Call sends `{method: args, i}` and waits for the matching response. A
// non-ok status is returned as a *CallError.
func (c *Client) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	id := c.nextID.Add(1)
	frame, err := json.Marshal(map[string]any{method: args, "i": id})
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", method, err)
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: write: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.closeReason()
		}
		if resp.Status != "ok" {
			return nil, &CallError{Status: resp.Status, Doc: resp.Doc}
		}
		return resp.Doc, nil
	case <-c.closed:
		return nil, c.closeReason()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) closeReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return ErrClosed
}

// Auth authenticates this connection.
func (c *Client) Auth(ctx context.Context, username, password string) error {
	_, err := c.Call(ctx, "auth", username, password)
	return err
}

// Save writes a new revision of doc into collection.
func (c *Client) Save(ctx context.Context, collection string, doc map[string]any) error {
	_, err := c.Call(ctx, "save", collection, doc)
	return err
}

// Get fetches the current leaf snapshot of a document.
func (c *Client) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	raw, err := c.Call(ctx, "get", collection, id)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("get: decode: %w", err)
	}
	return doc, nil
}

// CreateUser creates or resets a credentialed user.
func (c *Client) CreateUser(ctx context.Context, username, password string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	_, err := c.Call(ctx, "create-user", username, password, roles)
	return err
}

// RevokeUser revokes a user's credentials.
func (c *Client) RevokeUser(ctx context.Context, username string) error {
	_, err := c.Call(ctx, "revoke-user", username)
	return err
}

// ListUsers returns known usernames.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	raw, err := c.Call(ctx, "list-users")
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("list-users: decode: %w", err)
	}
	return names, nil
}
