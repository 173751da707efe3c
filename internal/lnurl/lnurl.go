package lnurl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	hrp = "lnurl"

	tagPayRequest = "payRequest"

	// maxResponseSize bounds LNURL service responses.
	maxResponseSize = 64 << 10

	defaultTimeout = 15 * time.Second
)

// IsLNURL reports whether s looks like an LNURL or Lightning Address rather
// than an invoice. It does not validate s.
func IsLNURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(strings.ToLower(s), hrp) || strings.Contains(s, "@")
}

// Parse decodes an LNURL or Lightning Address into the pay request URL.
func Parse(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "lightning:"), "LIGHTNING:")

	switch {
	case strings.HasPrefix(strings.ToLower(s), hrp):
		return decodeBech32(s)
	case strings.Contains(s, "@"):
		return addressURL(s)
	default:
		return nil, ErrInvalid
	}
}

func decodeBech32(s string) (*url.URL, error) {
	prefix, data, err := bech32.DecodeNoLimit(strings.ToLower(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if prefix != hrp {
		return nil, fmt.Errorf("%w: unexpected prefix %q", ErrInvalid, prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	u, err := url.Parse(string(raw))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: bad url %q", ErrInvalid, raw)
	}
	if u.Scheme != "https" && !isOnion(u.Hostname()) {
		return nil, fmt.Errorf("%w: url must use https", ErrInvalid)
	}
	return u, nil
}

func addressURL(s string) (*url.URL, error) {
	name, domain, ok := strings.Cut(s, "@")
	if !ok || name == "" || domain == "" || strings.ContainsAny(domain, "/@ ") {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	scheme := "https"
	if isOnion(domain) {
		scheme = "http"
	}
	return &url.URL{
		Scheme: scheme,
		Host:   strings.ToLower(domain),
		Path:   "/.well-known/lnurlp/" + strings.ToLower(name),
	}, nil
}

func isOnion(host string) bool {
	return strings.HasSuffix(host, ".onion")
}

// Encode returns the bech32 LNURL for rawURL.
func Encode(rawURL string) (string, error) {
	data, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}

// PayParams is the LNURL-pay metadata returned by the first round trip.
type PayParams struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    uint64 `json:"minSendable"`
	MaxSendable    uint64 `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed"`
}

type statusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type invoiceResponse struct {
	statusResponse
	PR string `json:"pr"`
}

// Client talks to LNURL-pay services.
type Client struct {
	http *http.Client
}

// NewClient creates a Client. A nil httpClient uses a client with a 15s timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{http: httpClient}
}

// Params fetches the pay request metadata behind target.
func (c *Client) Params(ctx context.Context, target *url.URL) (PayParams, error) {
	var p struct {
		statusResponse
		PayParams
	}
	if err := c.getJSON(ctx, target.String(), &p); err != nil {
		return PayParams{}, err
	}
	if p.Status == "ERROR" {
		return PayParams{}, fmt.Errorf("%w: %s", ErrUnexpectedResponse, p.Reason)
	}
	if p.Tag != tagPayRequest {
		return PayParams{}, fmt.Errorf("%w: tag %q", ErrUnexpectedResponse, p.Tag)
	}
	if p.Callback == "" {
		return PayParams{}, fmt.Errorf("%w: missing callback", ErrUnexpectedResponse)
	}
	return p.PayParams, nil
}

// Invoice resolves target into a BOLT11 invoice for amountMsat. comment is
// sent only when the service allows comments, truncated to its limit.
func (c *Client) Invoice(ctx context.Context, target *url.URL, amountMsat uint64, comment string) (string, error) {
	params, err := c.Params(ctx, target)
	if err != nil {
		return "", err
	}
	if amountMsat < params.MinSendable || (params.MaxSendable > 0 && amountMsat > params.MaxSendable) {
		return "", fmt.Errorf("%w: %d msat not in [%d, %d]",
			ErrAmountOutOfRange, amountMsat, params.MinSendable, params.MaxSendable)
	}

	callback, err := url.Parse(params.Callback)
	if err != nil {
		return "", fmt.Errorf("%w: bad callback: %v", ErrUnexpectedResponse, err)
	}
	q := callback.Query()
	q.Set("amount", strconv.FormatUint(amountMsat, 10))
	if comment != "" && params.CommentAllowed > 0 {
		if len(comment) > params.CommentAllowed {
			comment = comment[:params.CommentAllowed]
		}
		q.Set("comment", comment)
	}
	callback.RawQuery = q.Encode()

	var inv invoiceResponse
	if err := c.getJSON(ctx, callback.String(), &inv); err != nil {
		return "", err
	}
	if inv.Status == "ERROR" {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedResponse, inv.Reason)
	}
	if inv.PR == "" {
		return "", fmt.Errorf("%w: missing invoice", ErrUnexpectedResponse)
	}
	return inv.PR, nil
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building lnurl request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading lnurl response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var s statusResponse
		if json.Unmarshal(body, &s) == nil && s.Reason != "" {
			return fmt.Errorf("%w: %s", ErrUnexpectedResponse, s.Reason)
		}
		return fmt.Errorf("%w: HTTP %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}
