// Package scan funnels camera-decoded and manually entered payloads into a
// single stream.
package scan

import (
	"context"
	"strings"
	"sync"

	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/types"
)

// Origin tells where a payload came from.
type Origin string

const (
	OriginCamera Origin = "camera"
	OriginManual Origin = "manual"
)

// Scan is one raw payload.
type Scan struct {
	Payload string
	Origin  Origin
}

// Decoder is an external camera decoder. Decode blocks until a code is read
// or ctx ends.
type Decoder interface {
	Decode(ctx context.Context) (string, error)
}

// Source merges a Decoder and manual submissions into one channel.
type Source struct {
	decoder            Decoder
	continueAfterMatch bool
	logger             logger.Logger

	out chan Scan

	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	run     uint64
	running sync.WaitGroup
}

type Option func(*Source)

// WithDecoder attaches a camera decoder.
func WithDecoder(d Decoder) Option {
	return func(s *Source) {
		s.decoder = d
	}
}

// ContinueAfterMatch keeps the camera decoding after a code is emitted.
func ContinueAfterMatch(enabled bool) Option {
	return func(s *Source) {
		s.continueAfterMatch = enabled
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSource(opts ...Option) *Source {
	s := &Source{
		logger: logger.NoopLogger{},
		out:    make(chan Scan, 8),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scans is closed by Close.
func (s *Source) Scans() <-chan Scan {
	return s.out
}

// Start runs the camera decoder until ctx ends, Stop is called, or a code is
// read while ContinueAfterMatch is off.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return types.NewError(types.ErrInvalidState, "scan source is closed")
	case s.decoder == nil:
		return types.NewError(types.ErrConfigError, "scan source has no decoder")
	case s.cancel != nil:
		return types.NewError(types.ErrInvalidState, "camera is already decoding")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.run++
	s.running.Add(1)
	go s.decode(ctx, s.run)
	return nil
}

func (s *Source) decode(ctx context.Context, run uint64) {
	defer s.running.Done()
	defer s.finish(run)

	for {
		payload, err := s.decoder.Decode(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("camera decode failed", map[string]any{"error": err})
			return
		}
		if strings.TrimSpace(payload) == "" {
			continue
		}

		select {
		case s.out <- Scan{Payload: payload, Origin: OriginCamera}:
		case <-ctx.Done():
			return
		}

		if !s.continueAfterMatch {
			return
		}
	}
}

// Stop halts camera decoding. Manual submission keeps working.
func (s *Source) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// finish releases the decoder slot unless a newer run owns it.
func (s *Source) finish(run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == run && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Decoding reports whether the camera is running.
func (s *Source) Decoding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Submit enqueues manually entered text.
func (s *Source) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &types.Error{Kind: types.ErrParseFailure, Message: "empty payload", Raw: text}
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return types.NewError(types.ErrInvalidState, "scan source is closed")
	}

	select {
	case s.out <- Scan{Payload: text, Origin: OriginManual}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops decoding and closes the Scans channel. Submit must not be
// called concurrently with Close.
func (s *Source) Close() {
	s.Stop()
	s.running.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}
