package fetcher

import (
	"context"
	"io"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-triage/internal/resilience"
)

// fetchHTTP downloads the URL, retrying 429s, 5xx responses, and network
// failures under the client's retry policy.
func (c *Client) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	err := c.opts.Retry.Do(ctx, "fetch "+rawURL, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("fetcher: status %d from %s", resp.StatusCode, rawURL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return statusErr
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "fetcher: read body"), 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
