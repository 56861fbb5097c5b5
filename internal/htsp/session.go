// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htsp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/tvhgate/internal/log"
)

// ErrNotConnected is returned by Session calls while no connection is up.
var ErrNotConnected = errors.New("htsp: not connected")

// SessionOptions configures a Session.
type SessionOptions struct {
	Client Options
	// Horizon bounds the EPG pushed after each (re)connect. Zero disables
	// asynchronous EPG updates; channels are still pushed.
	Horizon time.Duration
	// MinBackoff and MaxBackoff bound the reconnect delay, which doubles
	// after every failed attempt.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Session keeps a Client connected, redialing with backoff when the
// connection drops. Its call methods use whichever client is current.
type Session struct {
	opts   SessionOptions
	logger zerolog.Logger

	mu      sync.RWMutex
	client  *Client
	lastErr error
}

// NewSession returns an idle Session; Run connects it.
func NewSession(opts SessionOptions) *Session {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	return &Session{
		opts:    opts,
		logger:  xglog.WithComponent("htsp-session"),
		lastErr: ErrNotConnected,
	}
}

// Run connects and reconnects until ctx ends, then closes the current
// client.
func (s *Session) Run(ctx context.Context) error {
	backoff := s.opts.MinBackoff
	for {
		c, err := s.connect(ctx)
		if err == nil {
			backoff = s.opts.MinBackoff
			select {
			case <-ctx.Done():
				s.set(nil, ErrNotConnected)
				_ = c.Close()
				return nil
			case <-c.Done():
				cause := c.Err()
				s.set(nil, cause)
				_ = c.Close()
			}
		} else {
			if ctx.Err() != nil {
				return nil
			}
			s.set(nil, err)
			s.logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "htsp.connect_failed").
				Dur("retry_in", backoff).
				Msg("cannot connect to server")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.opts.MaxBackoff)
	}
}

func (s *Session) connect(ctx context.Context) (*Client, error) {
	c, err := Dial(ctx, s.opts.Client)
	if err != nil {
		return nil, err
	}
	async := AsyncOptions{EPG: s.opts.Horizon > 0}
	if async.EPG {
		async.EPGMaxTime = time.Now().Add(s.opts.Horizon)
	}
	if err := c.EnableAsyncMetadata(ctx, async); err != nil {
		_ = c.Close()
		return nil, err
	}
	s.set(c, nil)
	return c, nil
}

func (s *Session) set(c *Client, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
	s.lastErr = err
}

// Client returns the current connection.
func (s *Session) Client() (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, s.lastErr
	}
	return s.client, nil
}

// Err is nil while connected and the last failure otherwise.
func (s *Session) Err() error {
	_, err := s.Client()
	return err
}

// Info returns the current server's handshake data.
func (s *Session) Info() (ServerInfo, error) {
	c, err := s.Client()
	if err != nil {
		return ServerInfo{}, err
	}
	return c.Info(), nil
}

func (s *Session) GetEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	return c.GetEvents(ctx, q)
}

func (s *Session) GetSysTime(ctx context.Context) (SysTime, error) {
	c, err := s.Client()
	if err != nil {
		return SysTime{}, err
	}
	return c.GetSysTime(ctx)
}

func (s *Session) GetDiskSpace(ctx context.Context) (DiskSpace, error) {
	c, err := s.Client()
	if err != nil {
		return DiskSpace{}, err
	}
	return c.GetDiskSpace(ctx)
}
