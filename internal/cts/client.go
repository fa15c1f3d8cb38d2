// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cts is an HTTP client for Canonical Text Services endpoints.
// It covers the three requests the structure fetcher needs:
// GetCapabilities (work metadata), GetValidReff (references per level)
// and GetPrevNextUrn (passage neighbours).
package cts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/cts-structure/internal/httputil"
	"github.com/pdiddy/cts-structure/pkg/types"
)

// DefaultEndpoint is the public Perseids CTS API.
const DefaultEndpoint = "http://cts.perseids.org/api/cts"

const (
	defaultCacheSize = 128
	maxReplyBytes    = 64 << 20
)

// ErrWorkNotFound is returned when the inventory has no work with the
// requested URN.
var ErrWorkNotFound = errors.New("work not found in text inventory")

// Error is a CTSError reply from the endpoint.
type Error struct {
	Request string
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("CTS %s: %s", e.Request, e.Message)
	}
	return fmt.Sprintf("CTS %s: error %s: %s", e.Request, e.Code, e.Message)
}

// Client queries one CTS endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	cfg      types.ResolverConfig

	// works caches GetCapabilities results by work URN. Nil when disabled.
	works *lru.Cache[string, *Work]
}

// NewClient returns a client for cfg.Endpoint (DefaultEndpoint when empty).
// A negative cfg.CacheSize disables the metadata cache.
func NewClient(httpClient *http.Client, cfg types.ResolverConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		http:     httpClient,
		endpoint: endpoint,
		cfg:      cfg,
	}

	size := cfg.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, *Work](size)
		if err != nil {
			return nil, fmt.Errorf("creating metadata cache: %w", err)
		}
		c.works = cache
	}
	return c, nil
}

// Endpoint returns the CTS API URL the client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

// Metadata returns the work's texts and their citation schemes.
func (c *Client) Metadata(ctx context.Context, urn string) (*Work, error) {
	u, err := ParseURN(urn)
	if err != nil {
		return nil, err
	}
	workURN := u.WorkURN()

	if c.works != nil {
		if w, ok := c.works.Get(workURN); ok {
			return w, nil
		}
	}

	var reply capabilitiesReply
	params := url.Values{"request": {"GetCapabilities"}, "urn": {workURN}}
	if err := c.get(ctx, params, &reply); err != nil {
		return nil, err
	}

	w, ok := reply.findWork(workURN)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkNotFound, workURN)
	}
	if c.works != nil {
		c.works.Add(workURN, w)
	}
	return w, nil
}

// Reffs lists the passage references of urn at the given citation depth,
// in the order the endpoint returns them. An entry without a passage is an
// error, so the result always has one reference per listed URN.
func (c *Client) Reffs(ctx context.Context, urn string, level int) ([]string, error) {
	var reply validReffReply
	params := url.Values{
		"request": {"GetValidReff"},
		"urn":     {urn},
		"level":   {strconv.Itoa(level)},
	}
	if err := c.get(ctx, params, &reply); err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(reply.URNs))
	for i, u := range reply.URNs {
		ref := passageOf(u)
		if ref == "" {
			return nil, fmt.Errorf("CTS GetValidReff entry %d (%q) has no passage", i, u)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// PrevNext returns the neighbouring passages of urn:ref.
func (c *Client) PrevNext(ctx context.Context, urn, ref string) (Navigation, error) {
	var reply prevNextReply
	params := url.Values{"request": {"GetPrevNextUrn"}, "urn": {urn + ":" + ref}}
	if err := c.get(ctx, params, &reply); err != nil {
		return Navigation{}, err
	}

	var nav Navigation
	if strings.TrimSpace(reply.Prev) != "" {
		nav.Prev = passageOf(reply.Prev)
	}
	if strings.TrimSpace(reply.Next) != "" {
		nav.Next = passageOf(reply.Next)
	}
	return nav, nil
}

// get issues one CTS request and decodes the XML reply into v.
func (c *Client) get(ctx context.Context, params url.Values, v any) error {
	reqName := params.Get("request")

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("CTS %s request: %w", reqName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("reading CTS %s reply: %w", reqName, err)
	}

	if ctsErr := parseCTSError(body); ctsErr != nil {
		ctsErr.Request = reqName
		return ctsErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("CTS %s returned HTTP %d", reqName, resp.StatusCode)
	}

	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing CTS %s reply: %w", reqName, err)
	}
	return nil
}

// parseCTSError returns the error carried by a CTSError body, or nil.
// Only the root element is inspected unless it is a CTSError.
func parseCTSError(body []byte) *Error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "CTSError" {
			return nil
		}
		var reply ctsErrorReply
		if err := dec.DecodeElement(&reply, &start); err != nil {
			return nil
		}
		return &Error{
			Code:    strings.TrimSpace(reply.Code),
			Message: strings.TrimSpace(reply.Message),
		}
	}
}
