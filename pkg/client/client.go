package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/omg/pkg/rpc"
)

// DefaultDialTimeout bounds how long Dial waits for the domain socket
// to accept a connection.
const DefaultDialTimeout = 5 * time.Second

// Client is a single connection to the daemon. It is safe for
// concurrent use: requests are serialized onto the wire one at a time,
// matching the request/response pairing the server assumes per-write.
type Client struct {
	conn   net.Conn
	mu     sync.Mutex
	nextID atomic.Uint64
}

// Dial connects to the daemon's domain socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends req (after stamping it with a fresh request id) and
// blocks for the matching response.
func (c *Client) Call(req rpc.Request) (rpc.Response, error) {
	req.ID = c.nextID.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := rpc.EncodeRequest(req)
	if err != nil {
		return rpc.Response{}, err
	}
	if err := rpc.WriteFrame(c.conn, payload); err != nil {
		return rpc.Response{}, fmt.Errorf("client: write: %w", err)
	}

	respPayload, err := rpc.ReadFrame(c.conn)
	if err != nil {
		return rpc.Response{}, fmt.Errorf("client: read: %w", err)
	}
	resp, err := rpc.DecodeResponse(respPayload)
	if err != nil {
		return rpc.Response{}, err
	}
	return *resp, nil
}

// Status is a convenience wrapper around a Status call.
func (c *Client) Status() (rpc.Response, error) {
	return c.Call(rpc.Request{Kind: rpc.KindStatus})
}

// Search is a convenience wrapper around a Search call.
func (c *Client) Search(query string, limit uint32) (rpc.Response, error) {
	return c.Call(rpc.Request{Kind: rpc.KindSearch, Search: &rpc.SearchRequest{Query: query, Limit: limit}})
}
