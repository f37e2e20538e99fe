// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package fetch is the external web/FTP download collaborator: a
// narrow interface plus a bounded-retry HTTP/FTP-catalog client,
// grounded on PdbDownloader.py's download-or-die behavior (§1 places
// the actual archive downloads out of core scope; this package is the
// contract the core's loader stages depend on).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Kind distinguishes the two retry budgets the spec pins: 3 attempts
// for an HTTP query, 10 for an FTP catalog listing.
type Kind int

const (
	// KindHTTPQuery is a single-document HTTP GET (a structure file,
	// a REST metadata query). 3 attempts per §5.
	KindHTTPQuery Kind = iota
	// KindFTPCatalog is a bulk FTP directory listing. 10 attempts per §5.
	KindFTPCatalog
)

func (k Kind) maxAttempts() int {
	switch k {
	case KindFTPCatalog:
		return 10
	default:
		return 3
	}
}

// Client fetches a document by URL with a fixed retry budget per Kind
// and a rate limiter pacing outbound requests so a full-archive sync
// does not hammer the remote endpoint.
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// New builds a Client that allows at most ratePerSecond requests per
// second (burst 1), the pacing half of the bounded-retry policy.
func New(ratePerSecond float64) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	return &Client{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

// Fetch retrieves url's body, retrying up to kind's attempt budget on
// any transport or non-2xx error. The final attempt's error is
// returned wrapped and annotated with the URL and attempt count;
// callers treat exhaustion as fatal
// per §7 ("bounded retry, then escalates").
func (c *Client) Fetch(ctx context.Context, url string, kind Kind) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= kind.maxAttempts(); attempt++ {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch: waiting for rate limiter: %w", err)
		}

		body, err := c.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch: %s exhausted after %d attempts: %w", url, kind.maxAttempts(), lastErr)
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
