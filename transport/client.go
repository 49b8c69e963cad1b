package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// Client is the HTTP-backed Doer. Each Client owns its own cookie jar, so one
// Client instance corresponds to one SSO session.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a Doer with a fresh cookie jar. Redirects are never
// followed: several SSO responses expose the service ticket only in the
// Location header, so the caller needs to see the 3xx response as-is.
func NewClient(timeout time.Duration, userAgent string) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] cookiejar.New")
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}, nil
}

var _ Doer = (*Client)(nil)

func (c *Client) Do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Do] http.NewRequestWithContext")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Do] %s %s", method, url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Do] reading body of %s %s", method, url)
	}

	return &Response{
		Status:  resp.StatusCode,
		Body:    data,
		Headers: resp.Header,
	}, nil
}
