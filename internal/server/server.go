// Package server runs the line-oriented TCP protocol: one Session per
// connection, all sharing the store and the price cache.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"stock-alert-server/internal/config"
	"stock-alert-server/internal/pricecache"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Server accepts client connections and runs a Session for each.
type Server struct {
	cfg    *config.Server
	store  Store
	prices *pricecache.Cache
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	active   atomic.Int64
}

// New creates a server. Call ListenAndServe or Serve to start it.
func New(cfg *config.Server, store Store, prices *pricecache.Cache, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		prices: prices,
		logger: logger.Named("server"),
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds cfg.Address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On shutdown the
// listener and every live connection are closed, and Serve waits for the
// sessions to finish before returning nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Listening for clients", zap.String("address", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeConns()
	})
	defer stop()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				s.logger.Info("Server stopped")
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				wait := retry.NextBackOff()
				s.logger.Warn("Accept failed, retrying", zap.Error(err), zap.Duration("backoff", wait))
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					continue
				}
			}
			_ = ln.Close()
			s.closeConns()
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		retry.Reset()

		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	session := newSession(conn, s.store, s.prices, sessionOptions{
		alertInterval: s.cfg.AlertCheckInterval,
		writeTimeout:  s.cfg.WriteTimeout,
		maxLineBytes:  s.cfg.MaxLineBytes,
	}, s.logger)

	session.logger.Info("Client connected", zap.Int64("active_sessions", s.active.Load()))
	err := session.Run(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
		session.logger.Info("Client disconnected")
	default:
		session.logger.Warn("Session ended with error", zap.Error(err))
	}
}

// track registers a live connection. It refuses once shutdown has begun.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.active.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		s.active.Add(-1)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
		s.active.Add(-1)
	}
	s.conns = nil
}

// Addr returns the bound address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveSessions reports the number of connected clients.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}
