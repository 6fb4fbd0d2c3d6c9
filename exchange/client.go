package exchange

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// NewClient creates the client side of the exchange protocol. The timeout
// bounds every single peer request (connect and response combined); a peer
// that exceeds it is abandoned for the current tick, not retried.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     timeout,
			},
		},
		failures: xsync.NewCounter(),
	}
}

// Client issues pushes and version-conditional pulls against peer exchange
// endpoints. It is safe for concurrent use by the bounded per-peer tasks of
// a gossip tick.
type Client struct {
	client   *http.Client
	failures *xsync.Counter
}

// Push sends a blob to the peer's exchange endpoint. The peer merges it into
// its store; the response carries no content.
func (c *Client) Push(addr string, blob []byte) error {
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("http://%s/", addr), bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		c.failures.Inc()
		return err
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		c.failures.Inc()
		return fmt.Errorf("peer %s rejected push: %s", addr, resp.Status)
	}
	return nil
}

// Pull asks the peer for its snapshot unless it already matches the given
// local version. changed reports whether the peer returned a snapshot.
func (c *Client) Pull(addr string, version string) (blob []byte, changed bool, err error) {
	requestURL := fmt.Sprintf("http://%s/%s", addr, url.PathEscape(version))

	resp, err := c.client.Get(requestURL)
	if err != nil {
		c.failures.Inc()
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		// versions agree, nothing to transfer
		return nil, false, nil
	case http.StatusOK:
		blob, err := io.ReadAll(resp.Body)
		if err != nil {
			c.failures.Inc()
			return nil, false, err
		}
		return blob, true, nil
	default:
		c.failures.Inc()
		return nil, false, fmt.Errorf("peer %s answered pull with %s", addr, resp.Status)
	}
}

// Failures returns the total number of failed peer requests since creation.
func (c *Client) Failures() int64 {
	return c.failures.Value()
}
