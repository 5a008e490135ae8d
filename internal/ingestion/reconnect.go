package ingestion

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// backoff tracks the exponential reconnect delay used by every feed
// subscriber, doubling from an initial delay up to a cap and resetting on
// a successful connection. Grounded on the teacher's websocket dial
// handling (internal/websocket) and generalized using the reconnect-state
// shape from svyatogor45-abitrage's WSReconnectManager.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{initial: time.Second, max: 30 * time.Second}
}

func (b *backoff) reset() {
	b.current = 0
}

func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
		return b.current
	}
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// defaultDialer abstracts websocket.DefaultDialer so tests can substitute a fake.
var defaultDialer = websocket.DefaultDialer

// runWithReconnect dials url repeatedly, invoking onConn for each
// successful connection. onConn should block, reading messages until the
// connection fails or ctx is cancelled; its return value is logged and
// triggers a reconnect with exponential backoff unless ctx is done.
func runWithReconnect(ctx context.Context, name, url string, onConn func(context.Context, *websocket.Conn) error) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := defaultDialer.DialContext(ctx, url, http.Header{})
		if err != nil {
			delay := bo.next()
			log.Warn().Err(err).Str("feed", name).Dur("retry_in", delay).Msg("feed websocket dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		bo.reset()
		log.Info().Str("feed", name).Str("url", url).Msg("feed websocket connected")

		err = onConn(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}

		delay := bo.next()
		log.Warn().Err(err).Str("feed", name).Dur("retry_in", delay).Msg("feed websocket disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
