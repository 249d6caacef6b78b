package hooks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultServerAddress binds the event endpoint to the loopback interface
// on an ephemeral port. Runner subprocesses on the same host connect back
// to it; it is never exposed beyond loopback.
const DefaultServerAddress = "127.0.0.1:0"

// ServerConfig contains hook server configuration
type ServerConfig struct {
	Log     log.Logger
	Address string
	// Token authenticates connecting runners. Generated when empty.
	Token string
}

// Server accepts runner connections and posts their newline-delimited JSON
// events to a channel. The first line of every connection must be the auth
// token; everything after it is one JSON event per line.
type Server struct {
	config   ServerConfig
	channel  *Channel
	listener net.Listener
	group    errgroup.Group
	closed   atomic.Bool
}

// NewServer binds the endpoint and starts accepting connections.
func NewServer(cfg ServerConfig, channel *Channel) (*Server, error) {
	if channel == nil {
		return nil, fmt.Errorf("event channel is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Address == "" {
		cfg.Address = DefaultServerAddress
	}
	if cfg.Token == "" {
		cfg.Token = uuid.New().String()
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind hook endpoint: %w", err)
	}

	s := &Server{
		config:   cfg,
		channel:  channel,
		listener: listener,
	}
	s.group.Go(s.acceptLoop)

	cfg.Log.Debug("Hook endpoint listening", "address", listener.Addr())
	return s, nil
}

// Addr returns the bound endpoint address for handing to runners.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Token returns the auth token runners must present.
func (s *Server) Token() string {
	return s.config.Token
}

// Close stops accepting connections and waits for in-flight readers.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.listener.Close()
	_ = s.group.Wait()
	return err
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.config.Log.Error("Hook endpoint accept failed", "error", err)
			}
			return nil
		}
		s.group.Go(func() error {
			s.handleConn(conn)
			return nil
		})
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return
	}
	if scanner.Text() != s.config.Token {
		s.config.Log.Warn("Rejected hook connection with bad token", "remote", conn.RemoteAddr())
		return
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.config.Log.Error("Discarding malformed hook event", "error", err)
			continue
		}
		s.channel.Post(ev)
	}
	if err := scanner.Err(); err != nil && !s.closed.Load() {
		s.config.Log.Warn("Hook connection read failed", "error", err)
	}
}
