// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/metrics"
	"github.com/tomtom215/slotgate/internal/shard"
)

// copyBufferSize is the chunk size for streaming response bodies.
const copyBufferSize = 32 * 1024

// hopHeaders are connection-scoped and never forwarded (RFC 9110 7.6.1).
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ErrorWriter renders a failure response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, message string)

// Forwarder proxies requests to workers listening on 127.0.0.1.
type Forwarder struct {
	transport http.RoundTripper
	host      string

	// OnUpstreamError is called when the worker cannot be reached.
	OnUpstreamError func(r *http.Request, d shard.Descriptor, err error)

	// WriteError renders the 502 response. Defaults to a JSON envelope.
	WriteError ErrorWriter
}

// New creates a Forwarder with a loopback-tuned transport.
func New() *Forwarder {
	return &Forwarder{
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        128,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			// Bodies pass through byte-for-byte; no transparent gzip.
			DisableCompression: true,
		},
		host:       "127.0.0.1",
		WriteError: writeJSONError,
	}
}

// NewWithTransport is New with a caller-supplied transport.
func NewWithTransport(rt http.RoundTripper) *Forwarder {
	f := New()
	f.transport = rt
	return f
}

// Forward sends r to the worker for d and writes the worker's response to
// w. It never returns an error: failures before the response starts become
// a 502, failures mid-stream end the response early.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, d shard.Descriptor) {
	ctx := logging.ContextWithShard(r.Context(), d.ID)
	r = r.WithContext(ctx)

	outReq, err := f.outboundRequest(r, d)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to build upstream request")
		f.WriteError(w, r, http.StatusInternalServerError, "failed to build upstream request")
		return
	}

	resp, err := f.transport.RoundTrip(outReq)
	if err != nil {
		f.upstreamFailed(w, r, d, err)
		return
	}
	defer resp.Body.Close()

	metrics.RecordProxyResponse(d.ID, strconv.Itoa(resp.StatusCode))

	header := w.Header()
	removeConnectionHeaders(resp.Header)
	for k, vv := range resp.Header {
		header[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(resp.StatusCode)

	if err := streamBody(w, resp.Body); err != nil && !errors.Is(err, r.Context().Err()) {
		logging.Ctx(ctx).Debug().Err(err).Msg("Response stream ended early")
	}
}

func (f *Forwarder) outboundRequest(r *http.Request, d shard.Descriptor) (*http.Request, error) {
	target := &url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(f.host, strconv.Itoa(int(d.Port))),
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}

	body, length, err := outboundBody(r)
	if err != nil {
		return nil, err
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("new upstream request: %w", err)
	}
	outReq.Header = r.Header.Clone()
	removeConnectionHeaders(outReq.Header)
	outReq.Header.Del("Content-Length")
	outReq.ContentLength = length
	if length == 0 {
		outReq.Body = http.NoBody
	}
	outReq.Host = target.Host

	if clientIP, _, splitErr := net.SplitHostPort(r.RemoteAddr); splitErr == nil {
		if prior := outReq.Header.Values("X-Forwarded-For"); len(prior) > 0 {
			clientIP = strings.Join(prior, ", ") + ", " + clientIP
		}
		outReq.Header.Set("X-Forwarded-For", clientIP)
	}
	if r.Host != "" {
		outReq.Header.Set("X-Forwarded-Host", r.Host)
	}
	if r.TLS != nil {
		outReq.Header.Set("X-Forwarded-Proto", "https")
	} else {
		outReq.Header.Set("X-Forwarded-Proto", "http")
	}
	return outReq, nil
}

// outboundBody re-serializes a parsed JSON body or passes the original
// stream through. length is -1 when unknown.
func outboundBody(r *http.Request) (io.Reader, int64, error) {
	if parsed, ok := ParsedBody(r.Context()); ok {
		buf, err := json.Marshal(parsed)
		if err != nil {
			return nil, 0, fmt.Errorf("re-encode request body: %w", err)
		}
		return bytes.NewReader(buf), int64(len(buf)), nil
	}
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return http.NoBody, 0, nil
	}
	return r.Body, r.ContentLength, nil
}

func (f *Forwarder) upstreamFailed(w http.ResponseWriter, r *http.Request, d shard.Descriptor, err error) {
	metrics.RecordProxyUpstreamError(d.ID)

	if r.Context().Err() != nil {
		// Client went away; nobody is listening for a 502.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Client cancelled proxied request")
		return
	}

	logging.Ctx(r.Context()).Warn().Err(err).Uint16("port", d.Port).Msg("Worker unreachable")
	if f.OnUpstreamError != nil {
		f.OnUpstreamError(r, d, err)
	}
	f.WriteError(w, r, http.StatusBadGateway, fmt.Sprintf("worker %s unreachable: %v", d.ID, err))
}

// streamBody copies src to w, flushing after every chunk.
func streamBody(w http.ResponseWriter, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// removeConnectionHeaders drops hop-by-hop headers, including any named in
// the Connection header.
func removeConnectionHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// writeJSONError is the fallback envelope when no API error writer is set.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":         false,
		"error":      message,
		"request_id": logging.RequestIDFromContext(r.Context()),
	})
}
