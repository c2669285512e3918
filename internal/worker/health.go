// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newHealthClient returns a client for /health probes. Keep-alives are off
// so probes never pin idle connections to short-lived workers.
func newHealthClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func healthURL(port uint16) string {
	return fmt.Sprintf("http://127.0.0.1:%d/health", port)
}

// checkHealth performs one GET /health bounded by timeout.
func (s *Supervisor) checkHealth(ctx context.Context, port uint16, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(port), http.NoBody)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

// probe is the quick liveness check done before spawning.
func (s *Supervisor) probe(ctx context.Context, port uint16) bool {
	return s.checkHealth(ctx, port, s.opts.ProbeTimeout) == nil
}

// waitHealthy polls /health every PollInterval until it answers 200 or ctx
// ends. Each attempt is bounded by ProbeTimeout.
func (s *Supervisor) waitHealthy(ctx context.Context, port uint16) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(s.opts.PollInterval), ctx)
	return backoff.Retry(func() error {
		return s.checkHealth(ctx, port, s.opts.ProbeTimeout)
	}, b)
}
