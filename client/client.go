// Package client talks to a tecnicofs server over its unix datagram socket.
//
// Every call sends one request and blocks for exactly one reply. Requests are
// not retried: a lost reply cannot be told apart from a lost request, so each
// call is at-most-once.
package client

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/requests"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var ErrNotMounted = errors.New("client not mounted")

const replySize = 4

// Client is a mounted session. Safe for concurrent use; calls are serialized
// so at most one request is in flight.
type Client struct {
	mu             sync.Mutex
	conn           *net.UnixConn
	localPath      string
	maxMessageSize int
}

type MountOption func(*Client)

// WithMaxMessageSize sets the largest request the client will send. It must
// not exceed the server's limit (default [config.DefaultMaxMessageSize]).
func WithMaxMessageSize(n int) MountOption {
	return func(c *Client) { c.maxMessageSize = n }
}

// Mount binds a unique local socket in the temp dir and connects it to the
// server socket at serverPath.
func Mount(serverPath string, opts ...MountOption) (*Client, error) {
	logger := util.GetLogger("Client")

	local := filepath.Join(os.TempDir(), fmt.Sprintf("tecnicofs-client-%s.sock", uuid.NewString()))
	conn, err := net.DialUnix("unixgram",
		&net.UnixAddr{Name: local, Net: "unixgram"},
		&net.UnixAddr{Name: serverPath, Net: "unixgram"},
	)
	if err != nil {
		_ = os.Remove(local)
		return nil, fmt.Errorf("failed to mount %s: %w", serverPath, err)
	}

	logger.Debug().Str("server", serverPath).Str("local", local).Msg("Mounted")
	c := &Client{conn: conn, localPath: local, maxMessageSize: config.DefaultMaxMessageSize}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LocalPath returns the client socket path
func (c *Client) LocalPath() string {
	return c.localPath
}

func (c *Client) call(cmd tecnicofs.Command) (int32, error) {
	msg, err := requests.MarshalCommand(cmd)
	if err != nil {
		return 0, err
	}
	if len(msg) > c.maxMessageSize {
		return 0, fmt.Errorf("%w: request of %d bytes exceeds the %d byte limit",
			tecnicofs.ErrMalformedCommand, len(msg), c.maxMessageSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0, ErrNotMounted
	}

	if _, err := c.conn.Write(msg); err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	var reply [replySize]byte
	n, err := c.conn.Read(reply[:])
	if err != nil {
		return 0, fmt.Errorf("failed to receive reply: %w", err)
	}
	if n != replySize {
		return 0, fmt.Errorf("%w: reply of %d bytes", tecnicofs.ErrInternal, n)
	}
	return int32(binary.NativeEndian.Uint32(reply[:])), nil
}

func (c *Client) callID(cmd tecnicofs.Command) (int, error) {
	code, err := c.call(cmd)
	if err != nil {
		return 0, err
	}
	if err := tecnicofs.ErrorFromCode(code); err != nil {
		return 0, err
	}
	return int(code), nil
}

// Create asks the server to create a node and returns its id
func (c *Client) Create(path string, kind tecnicofs.Kind) (int, error) {
	return c.callID(tecnicofs.Command{Op: tecnicofs.OpCreate, Path: path, Kind: kind})
}

func (c *Client) Delete(path string) error {
	_, err := c.callID(tecnicofs.Command{Op: tecnicofs.OpDelete, Path: path})
	return err
}

func (c *Client) Lookup(path string) (int, error) {
	return c.callID(tecnicofs.Command{Op: tecnicofs.OpLookup, Path: path})
}

// Print asks the server to dump its tree into outPath on the server host
func (c *Client) Print(outPath string) error {
	_, err := c.callID(tecnicofs.Command{Op: tecnicofs.OpPrint, Path: outPath})
	return err
}

// Unmount closes the socket and removes the local path. Calling it again is
// a no-op.
func (c *Client) Unmount() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	if rmErr := os.Remove(c.localPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = multierr.Append(err, rmErr)
	}
	return err
}
