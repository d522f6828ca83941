// Package natsconn dials the NATS server that carries analytics
// events. Callers that can run without analytics treat a failed
// connect as a warning, not a fatal error.
package natsconn

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	defaultURL           = "nats://nats:4222"
	defaultMaxReconnects = 5
	defaultReconnectWait = 2 * time.Second
)

// Options configures the connection. Zero values fall back to env vars
// or the package defaults.
type Options struct {
	URL           string
	Name          string // connection name shown in NATS monitoring
	MaxReconnects int
	ReconnectWait time.Duration
}

// Connect establishes a NATS connection with the configured retry
// policy. It fails fast rather than retrying the initial dial, so the
// caller decides whether a missing broker is fatal.
func Connect(opts Options) (*nats.Conn, error) {
	if opts.URL == "" {
		opts.URL = strings.TrimSpace(os.Getenv("NATS_URL"))
		if opts.URL == "" {
			opts.URL = defaultURL
		}
	}
	if opts.Name == "" {
		opts.Name = "animewatch"
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = envInt("NATS_MAX_RECONNECTS", defaultMaxReconnects)
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = envDuration("NATS_RECONNECT_WAIT", defaultReconnectWait)
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
