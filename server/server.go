// Package server exposes a tree to local client processes over a unix
// datagram socket. Each request is one text command; each reply is one int32
// in native byte order: a node id or 0 on success, a negative code on failure.
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/filesystem"
	"github.com/brettbedarf/tecnicofs/internal/engine"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/metrics"
	"github.com/brettbedarf/tecnicofs/requests"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ReplySize is the size in bytes of every reply datagram
const ReplySize = 4

var ErrNotListening = errors.New("server not listening")

// Server answers client requests on a unix datagram socket. Commands are
// applied under one global mutex in the order they are received.
type Server struct {
	cfg        *config.Config
	tree       *filesystem.FileSystem
	dispatcher engine.Dispatcher
	metrics    metrics.EngineMetrics
	clock      clock.Clock

	mu     sync.Mutex
	conn   *net.UnixConn
	closed atomic.Bool
}

type Option func(*Server)

func WithMetrics(m metrics.EngineMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// New creates a server for tree, which must be unguarded: the server
// serializes every command itself.
func New(cfg *config.Config, tree *filesystem.FileSystem, opts ...Option) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("server needs a socket path")
	}
	if tree.Guarded() {
		return nil, fmt.Errorf("server needs an unguarded tree")
	}
	s := &Server{
		cfg:        cfg,
		tree:       tree,
		dispatcher: engine.NewCoarse(tree),
		metrics:    metrics.NewNoopEngineMetrics(),
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Listen removes any stale socket file and binds the socket path.
func (s *Server) Listen() error {
	logger := util.GetLogger("Server")

	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: s.cfg.SocketPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.SocketPath, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	logger.Info().Str("socket", s.cfg.SocketPath).Msg("Listening")
	return nil
}

// Addr returns the bound socket path
func (s *Server) Addr() string {
	return s.cfg.SocketPath
}

// Serve runs cfg.Threads readers on the socket until Close is called. It
// returns nil right away if the server was already closed.
func (s *Server) Serve() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		if s.closed.Load() {
			return nil
		}
		return ErrNotListening
	}

	var g errgroup.Group
	for i := range s.cfg.Threads {
		g.Go(func() error {
			return s.read(conn, i)
		})
	}
	return g.Wait()
}

// ListenAndServe is Listen followed by Serve
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) read(conn *net.UnixConn, reader int) error {
	logger := util.GetLogger("Server")
	// One spare byte: a datagram over the limit reads as n > MaxMessageSize
	buf := make([]byte, s.cfg.MaxMessageSize+1)

	for {
		n, addr, err := conn.ReadFromUnix(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				logger.Trace().Int("reader", reader).Msg("Reader stopped")
				return nil
			}
			logger.Warn().Err(err).Int("reader", reader).Msg("Receive failed")
			continue
		}

		code := s.handle(buf[:n])

		if addr == nil || addr.Name == "" {
			logger.Warn().Int32("code", code).Msg("Client socket is unbound, dropping reply")
			continue
		}
		var reply [ReplySize]byte
		binary.NativeEndian.PutUint32(reply[:], uint32(code))
		if _, err := conn.WriteToUnix(reply[:], addr); err != nil {
			logger.Warn().Err(err).Str("client", addr.Name).Msg("Reply failed")
		}
	}
}

// handle parses and applies one message, returning the reply code
func (s *Server) handle(msg []byte) int32 {
	logger := util.GetLogger("Server")

	if len(msg) > s.cfg.MaxMessageSize {
		logger.Warn().Int("size", len(msg)).Int("limit", s.cfg.MaxMessageSize).Msg("Skipping oversized message")
		s.metrics.RecordMalformed(metrics.SourceServer)
		return tecnicofs.ResultMalformed
	}

	cmd, err := requests.UnmarshalCommand(msg)
	if err != nil {
		logger.Warn().Err(err).Str("message", string(msg)).Msg("Skipping malformed message")
		s.metrics.RecordMalformed(metrics.SourceServer)
		return tecnicofs.ResultMalformed
	}

	start := s.clock.Now()
	res, err := s.dispatcher.Dispatch(cmd)
	if err != nil {
		logger.Error().Err(err).Str("command", cmd.String()).Msg("Dispatch rejected command")
		s.metrics.RecordMalformed(metrics.SourceServer)
		return tecnicofs.ResultMalformed
	}
	s.metrics.RecordCommand(metrics.SourceServer, cmd.Op, s.clock.Since(start), res.Err)
	s.metrics.SetLiveNodes(s.tree.Len())

	logger.Debug().Str("command", cmd.String()).Int32("code", res.Code()).Msg(res.String())
	return res.Code()
}

// Close stops the readers, closes the socket and unlinks its path
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := conn.Close()
	if rmErr := os.Remove(s.cfg.SocketPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = multierr.Append(err, rmErr)
	}
	return err
}
