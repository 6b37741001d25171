package courseauth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDrain bounds how much of a rejected response body is read before it is
// closed.
const maxDrain = 64 << 10

// Execute sends req with the current access token as a bearer credential.
//
// Before sending it calls EnsureFresh. When the response status is one of
// Config.Request.AuthFailureStatuses, the response is discarded, one reactive
// refresh is joined, and the request is retried exactly once; the retry's
// outcome is returned whatever it is. If that refresh fails, Execute returns
// an error matching ErrSessionExpired. All other responses and transport
// errors are returned unchanged. The caller's headers are never modified.
func (c *Client) Execute(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	ctx := req.Context()

	if err := c.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	resp, sent, err := c.send(ctx, req, getBody)
	if err != nil {
		return nil, err
	}
	if !c.isAuthFailure(resp.StatusCode) {
		return resp, nil
	}
	discard(resp)

	if err := c.forceRefreshAfterReject(ctx, sent); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.metrics.Inc(MetricRequestSessionExpired)
		return nil, asSessionExpired(err)
	}

	c.metrics.Inc(MetricRequestRetried)
	resp, _, err = c.send(ctx, req, getBody)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// send clones req, attaches the stored access token and issues it. It
// returns the token it sent so a rejection can be matched to it.
func (c *Client) send(ctx context.Context, req *http.Request, getBody func() (io.ReadCloser, error)) (*http.Response, string, error) {
	access, err := c.store.Access(ctx)
	if err != nil {
		return nil, "", err
	}
	if access == "" {
		return nil, "", ErrNotLoggedIn
	}

	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, "", fmt.Errorf("replay request body: %w", err)
		}
		out.Body = body
		out.GetBody = getBody
	}
	out.Header.Set("Authorization", "Bearer "+access)

	start := time.Now()
	resp, err := c.http.Do(out)
	c.metrics.Observe(MetricRequestLatency, time.Since(start))
	if err != nil {
		return nil, access, err
	}
	c.metrics.Inc(MetricRequestExecuted)
	return resp, access, nil
}

func (c *Client) isAuthFailure(status int) bool {
	_, ok := c.authFailure[status]
	return ok
}

// replayableBody returns a body factory for req, buffering the body once when
// the request carries no GetBody.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
	_ = resp.Body.Close()
}
