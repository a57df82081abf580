package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"go-ledger-client/pkg/apierror"
)

// ExchangeFunc performs the actual token refresh against the backend and
// stores the new access token on success.
type ExchangeFunc func(ctx context.Context) error

// Coordinator guarantees at most one in-flight refresh. The first caller to
// arrive while idle becomes the leader and runs the exchange; every caller
// arriving during the exchange joins a FIFO queue and receives the leader's
// outcome. The idle/refreshing flag is the only mutual-exclusion point of the
// whole subsystem.
type Coordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan error // FIFO

	exchange     ExchangeFunc
	currentToken func() (string, bool)
	onFailure    func(err error)
	log          *slog.Logger
}

func NewCoordinator(exchange ExchangeFunc, currentToken func() (string, bool), onFailure func(error), log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}

	return &Coordinator{
		exchange:     exchange,
		currentToken: currentToken,
		onFailure:    onFailure,
		log:          log,
	}
}

// Await blocks until a refresh settles and returns its outcome. nil means a
// usable access token is in place and the caller may replay its request.
// staleToken is the token the failing request carried; a caller arriving
// after that token was already replaced does not trigger another refresh.
func (c *Coordinator) Await(ctx context.Context, staleToken string) error {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.currentToken != nil {
		token, ok := c.currentToken()
		if !ok {
			// A failed refresh already tore the session down.
			c.mu.Unlock()
			return apierror.New(apierror.TypeAuthentication, apierror.SeverityHigh, "No active session")
		}
		if token != staleToken {
			// Another caller finished the refresh before we arrived.
			c.mu.Unlock()
			return nil
		}
	}

	c.refreshing = true
	c.mu.Unlock()

	c.log.Debug("token refresh started")
	err := c.exchange(ctx)

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	// Drain in arrival order so replays happen in the order requests failed.
	for _, ch := range waiters {
		ch <- err
	}

	if err != nil {
		c.log.Warn("token refresh failed", "error", err, "waiters", len(waiters))
		if c.onFailure != nil {
			c.onFailure(err)
		}
	} else {
		c.log.Debug("token refresh succeeded", "waiters", len(waiters))
	}

	return err
}

// Refreshing reports whether a refresh is currently in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.refreshing
}
