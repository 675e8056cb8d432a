package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/platform/logging"
	"github.com/touchline/matchclock/internal/platform/resilience"
	"github.com/touchline/matchclock/internal/usecase"
	"github.com/valyala/bytebufferpool"
)

const maxResponseBytes = 4 << 20

var errGateTransient = crerr.New("sync gate transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the remote sync gate that mirrors game records for a
// coach's other devices. All failures here are non-fatal to a running
// match; the sync service decides what to retry.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// PushGame uploads one game record, replacing whatever the gate holds.
func (c *Client) PushGame(ctx context.Context, state session.State) error {
	if strings.TrimSpace(state.GameID) == "" {
		return fmt.Errorf("%w: game id is required", usecase.ErrInvalidInput)
	}

	path := "/v1/games/" + state.GameID
	return c.doJSON(ctx, http.MethodPut, path, state, nil)
}

// PullGame downloads one game record. The second return value is false when
// the gate has never seen the game.
func (c *Client) PullGame(ctx context.Context, gameID string) (session.State, bool, error) {
	if strings.TrimSpace(gameID) == "" {
		return session.State{}, false, fmt.Errorf("%w: game id is required", usecase.ErrInvalidInput)
	}

	var state session.State
	err := c.doJSON(ctx, http.MethodGet, "/v1/games/"+gameID, nil, &state)
	if err != nil {
		if crerr.Is(err, errNotFoundUpstream) {
			return session.State{}, false, nil
		}
		return session.State{}, false, err
	}
	return state, true, nil
}

// ListGames downloads every game record the gate holds for this account.
func (c *Client) ListGames(ctx context.Context) ([]session.State, error) {
	var out []session.State
	if err := c.doJSON(ctx, http.MethodGet, "/v1/games", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var errNotFoundUpstream = crerr.New("sync gate record not found")

func (c *Client) doJSON(ctx context.Context, method, path string, body any, target any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: sync gate is not configured", usecase.ErrDependencyUnavailable)
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "sync gate circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: sync gate is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	fullURL := c.baseURL + path

	// Reads for the same path collapse into one upstream request; writes
	// carry distinct bodies and must not be deduplicated.
	run := func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, method, fullURL, body)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errGateTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	}

	var out any
	var err error
	if method == http.MethodGet {
		out, err, _ = c.flight.Do(method+" "+path, run)
	} else {
		out, err = run()
	}
	if err != nil {
		return err
	}

	if target == nil {
		return nil
	}
	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode sync gate payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, method, fullURL string, body any) ([]byte, error) {
	var encoded []byte
	if body != nil {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		if err := sonic.ConfigDefault.NewEncoder(buf).Encode(body); err != nil {
			return nil, crerr.Wrap(err, "marshal sync gate body")
		}
		encoded = append([]byte(nil), buf.Bytes()...)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if encoded != nil {
			reader = strings.NewReader(string(encoded))
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		if encoded != nil {
			req.Header.Set("content-type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = crerr.Wrapf(errGateTransient, "send request: %v", err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = crerr.Wrapf(errGateTransient, "read response body: %v", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusNotFound:
				return nil, errNotFoundUpstream
			case isRetryableStatus(resp.StatusCode):
				lastErr = crerr.Wrapf(errGateTransient, "gate status=%d", resp.StatusCode)
			default:
				return nil, fmt.Errorf("gate status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("sync gate request failed")
	}
	c.logger.WarnContext(ctx, "sync gate request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(raw))
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
