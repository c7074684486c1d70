// Package questrade implements domain.BrokerClient against the real
// Questrade REST API (spec §2 C2, §6 upstream surface).
package questrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/questrade-sentinel/internal/broker"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// activitiesWindowCap is the broker's published cap on the width of an
// activities/orders date-range query (spec §4.2, §6).
const activitiesWindowCap = 31 * 24 * time.Hour

// AccessTokenProvider is the subset of domain.TokenStore the client needs:
// it must be able to force a refresh when a call comes back 401.
type AccessTokenProvider interface {
	RefreshAccessToken(ctx context.Context, login domain.Login) (domain.AccessToken, error)
}

// Client is a Questrade-backed domain.BrokerClient. One Client instance is
// shared across all logins; per-login state (access token, api server,
// rate limiter) lives in the cache populated as each login is first used.
type Client struct {
	tokens      AccessTokenProvider
	httpClient  *http.Client
	limiters    *broker.Registry
	retryBudget broker.RetryBudget
	clock       domain.Clock
	log         zerolog.Logger

	cache sessionCache
}

// Config configures a new Client.
type Config struct {
	Tokens      AccessTokenProvider
	HTTPClient  *http.Client
	LimiterCfg  broker.LimiterConfig
	RetryBudget broker.RetryBudget
	Clock       domain.Clock
	Log         zerolog.Logger
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	limiterCfg := cfg.LimiterCfg
	if limiterCfg == (broker.LimiterConfig{}) {
		limiterCfg = broker.DefaultLimiterConfig()
	}
	retryBudget := cfg.RetryBudget
	if retryBudget == (broker.RetryBudget{}) {
		retryBudget = broker.DefaultRetryBudget()
	}

	return &Client{
		tokens:      cfg.Tokens,
		httpClient:  cfg.HTTPClient,
		limiters:    broker.NewRegistry(limiterCfg),
		retryBudget: retryBudget,
		clock:       cfg.Clock,
		log:         cfg.Log.With().Str("component", "questrade_client").Logger(),
		cache:       newSessionCache(),
	}
}

// session holds the per-login access token and host, refreshed on demand.
type session struct {
	accessToken string
	apiServer   string
	expiry      time.Time
}

// ensureSession returns a live session for login, forcing a refresh if none
// is cached or the cached one has expired.
func (c *Client) ensureSession(ctx context.Context, login domain.Login) (session, error) {
	if s, ok := c.cache.get(login.ID); ok && c.clock.Now().Before(s.expiry) {
		return s, nil
	}
	return c.forceRefresh(ctx, login)
}

func (c *Client) forceRefresh(ctx context.Context, login domain.Login) (session, error) {
	// Token refreshes are deliberately run on a background context so a
	// client disconnect never interrupts a rotation already in flight
	// (spec §5).
	tok, err := c.tokens.RefreshAccessToken(context.Background(), login)
	if err != nil {
		return session{}, &domain.AuthError{LoginID: login.ID, Detail: err.Error()}
	}
	s := session{accessToken: tok.AccessToken, apiServer: tok.ApiServer, expiry: tok.Expiry}
	c.cache.set(login.ID, s)
	return s, nil
}

// doJSON performs a single authenticated GET against the login's api server,
// transparently retrying once on 401 via a forced refresh, and retrying
// RateLimited/Transient failures per c.retryBudget. The result is decoded
// into out (a pointer), unless out is nil.
func (c *Client) doJSON(ctx context.Context, login domain.Login, path string, query map[string]string, out interface{}) error {
	limiter := c.limiters.For(login.ID)

	forcedRefresh := false
	err := broker.Do(ctx, c.retryBudget, func(attempt int) (time.Duration, error) {
		release, err := limiter.Acquire(ctx)
		if err != nil {
			return 0, &domain.BrokerError{Kind: domain.BrokerErrTransient, Payload: err.Error()}
		}
		defer release()

		sess, err := c.ensureSession(ctx, login)
		if err != nil {
			return 0, err
		}

		req, err := c.newRequest(ctx, sess, path, query)
		if err != nil {
			return 0, &domain.BrokerError{Kind: domain.BrokerErrPermanent, Payload: err.Error()}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, &domain.BrokerError{Kind: domain.BrokerErrTransient, Payload: err.Error()}
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if forcedRefresh {
				// Second 401 in a row: surface AuthError without further retry.
				return 0, &domain.AuthError{LoginID: login.ID, Detail: "access token rejected after forced refresh"}
			}
			forcedRefresh = true
			if _, err := c.forceRefresh(ctx, login); err != nil {
				return 0, err
			}
			return 0, &domain.BrokerError{Kind: domain.BrokerErrTransient, HTTPStatus: resp.StatusCode, Payload: "retrying after forced refresh"}

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			return retryAfter, &domain.BrokerError{Kind: domain.BrokerErrRateLimited, HTTPStatus: resp.StatusCode, Payload: string(body)}

		case resp.StatusCode >= 500:
			return 0, &domain.BrokerError{Kind: domain.BrokerErrTransient, HTTPStatus: resp.StatusCode, Payload: string(body)}

		case resp.StatusCode >= 400:
			return 0, &domain.BrokerError{Kind: domain.BrokerErrPermanent, HTTPStatus: resp.StatusCode, Payload: string(body)}
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return 0, &domain.BrokerError{Kind: domain.BrokerErrMalformed, HTTPStatus: resp.StatusCode, Payload: err.Error()}
			}
		}
		return 0, nil
	})
	// Once the retry budget is spent, a rate-limited or transient failure is
	// surfaced as the matching type of the domain error taxonomy.
	var brokerErr *domain.BrokerError
	if errors.As(err, &brokerErr) {
		switch brokerErr.Kind {
		case domain.BrokerErrRateLimited:
			return &domain.RateLimitError{HTTPStatus: brokerErr.HTTPStatus}
		case domain.BrokerErrTransient:
			return &domain.TransientError{HTTPStatus: brokerErr.HTTPStatus, Cause: brokerErr}
		}
	}
	return err
}

func (c *Client) newRequest(ctx context.Context, sess session, path string, query map[string]string) (*http.Request, error) {
	u := sess.apiServer
	if u == "" {
		return nil, fmt.Errorf("no api server cached for session")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+path, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+sess.accessToken)
	return req, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// checkWindow enforces the 31-day activities/orders window cap. C4 is
// responsible for slicing; this never silently truncates.
func checkWindow(start, end time.Time) error {
	width := end.Sub(start)
	if width > activitiesWindowCap {
		return &domain.WindowTooWideError{
			MaxDays: int(activitiesWindowCap.Hours() / 24),
			GotDays: int(width.Hours() / 24),
		}
	}
	return nil
}

func rfc3339(t time.Time) string { return t.Format(time.RFC3339) }
