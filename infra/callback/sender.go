// Package callback delivers outbound protocol callbacks over HTTP with
// bounded retry.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/metrics"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/protocol"
)

// Config defines delivery parameters loaded from configuration.
type Config struct {
	TimeoutSeconds   int `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxAttempts      int `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMS int `json:"initial_backoff_ms" yaml:"initial_backoff_ms"`
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 4
	}
	if c.InitialBackoffMS == 0 {
		c.InitialBackoffMS = 250
	}
}

// Sender posts callback envelopes to the counterparty's registered address.
// Transient failures are retried with exponential backoff up to a bounded
// attempt count; exhaustion surfaces model.ErrCallbackDelivery.
type Sender struct {
	cfg    Config
	client *http.Client
	sink   metrics.Sink
	log    logger.Logger
}

// NewSender creates a Sender. A nil sink disables metrics.
func NewSender(cfg Config, sink metrics.Sink, log logger.Logger) *Sender {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		sink:   sink,
		log:    log,
	}
}

// Deliver posts the envelope to <uri>/<action>. It blocks until delivered or
// retries are exhausted.
func (s *Sender) Deliver(ctx context.Context, uri string, env protocol.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}
	target := strings.TrimSuffix(uri, "/") + "/" + env.Context.Action

	attempts := 0
	began := time.Now()
	op := func() error {
		attempts++
		return s.post(ctx, target, body)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(s.cfg.InitialBackoffMS) * time.Millisecond
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.MaxAttempts-1)), ctx))

	rec := metrics.CallbackRecord{Action: env.Context.Action, Attempts: attempts, Delivered: err == nil, Elapsed: time.Since(began)}
	if serr := s.sink.RecordCallback(rec); serr != nil {
		s.log.Errorf("metrics error: %v", serr)
	}
	if err != nil {
		s.log.Errorf("callback %s to %s failed after %d attempts: %v", env.Context.Action, target, attempts, err)
		return fmt.Errorf("%w: %s after %d attempts: %v", model.ErrCallbackDelivery, env.Context.Action, attempts, err)
	}
	s.log.Debugw("callback delivered", map[string]any{"action": env.Context.Action, "attempts": attempts, "uri": target})
	return nil
}

func (s *Sender) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("callback endpoint returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// client errors will not heal on retry
		return backoff.Permanent(fmt.Errorf("callback endpoint returned %d", resp.StatusCode))
	}
	return nil
}
