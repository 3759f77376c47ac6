package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"go-antiraid/internal/logging"
)

const DefaultAPIBaseURL = "https://discord.com/api/v10"

var errTooManyRequests = fmt.Errorf("429 too many requests: %w", ErrRateLimited)

// RESTClient issues ban and kick requests straight over fasthttp.
type RESTClient struct {
	httpPool             *HTTPPool
	rateLimiter          *RateLimitMonitor
	token                string
	baseURL              string
	deleteMessageSeconds int
	defaultTimeout       time.Duration
}

func NewRESTClient(httpPool *HTTPPool, rateLimiter *RateLimitMonitor, token, baseURL string, deleteMessageDays int) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &RESTClient{
		httpPool:             httpPool,
		rateLimiter:          rateLimiter,
		token:                token,
		baseURL:              baseURL,
		deleteMessageSeconds: deleteMessageDays * 24 * 60 * 60,
		defaultTimeout:       5 * time.Second,
	}
}

// StatusError is a non-2xx Discord response.
type StatusError struct {
	Route      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Route, e.StatusCode, e.Body)
}

func (c *RESTClient) Ban(ctx context.Context, guildID, userID, reason string) error {
	body, err := json.Marshal(map[string]int{"delete_message_seconds": c.deleteMessageSeconds})
	if err != nil {
		return err
	}
	uri := fmt.Sprintf("%s/guilds/%s/bans/%s", c.baseURL, guildID, userID)
	return c.do(ctx, "ban", guildID, fasthttp.MethodPut, uri, reason, body)
}

func (c *RESTClient) Kick(ctx context.Context, guildID, userID, reason string) error {
	uri := fmt.Sprintf("%s/guilds/%s/members/%s", c.baseURL, guildID, userID)
	return c.do(ctx, "kick", guildID, fasthttp.MethodDelete, uri, reason, nil)
}

// do sends the request once, and once more after a 429 when the bucket
// resets before the caller's deadline.
func (c *RESTClient) do(ctx context.Context, route, guildID, method, uri, reason string, body []byte) error {
	err := c.send(ctx, route, guildID, method, uri, reason, body)
	if errors.Is(err, errTooManyRequests) && ctx.Err() == nil {
		logging.Debug("[%s] guild %s rate limited, retrying after reset", route, guildID)
		err = c.send(ctx, route, guildID, method, uri, reason, body)
	}
	return err
}

// waitForBucket blocks until the route's bucket resets. It fails at once with
// ErrRateLimited when the reset falls after the deadline.
func (c *RESTClient) waitForBucket(ctx context.Context, route, guildID string, deadline time.Time) error {
	wait := c.rateLimiter.WaitTime(route, guildID)
	if wait <= 0 {
		return nil
	}
	if !time.Now().Add(wait).Before(deadline) {
		return fmt.Errorf("%s in guild %s: bucket resets in %v: %w", route, guildID, wait, ErrRateLimited)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *RESTClient) send(ctx context.Context, route, guildID, method, uri, reason string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.defaultTimeout)
	}
	if err := c.waitForBucket(ctx, route, guildID, deadline); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bot "+c.token)
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	startTime := time.Now()
	if err := c.httpPool.GetClient().DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%s request: %w", route, err)
	}

	c.rateLimiter.UpdateFromFastHTTPResponse(resp, route, guildID)

	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		logging.Debug("[%s] guild %s status %d in %v", route, guildID, status, time.Since(startTime))
		return nil
	}
	if status == fasthttp.StatusTooManyRequests {
		return fmt.Errorf("%s in guild %s: %w", route, guildID, errTooManyRequests)
	}
	return &StatusError{Route: route, StatusCode: status, Body: string(resp.Body())}
}
