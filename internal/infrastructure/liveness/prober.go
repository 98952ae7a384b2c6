package liveness

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 3 * time.Second

type Options struct {
	Timeout    time.Duration
	HealthPath string
}

// Prober asks another gateway instance whether it is still serving.
type Prober struct {
	client     *http.Client
	healthPath string
	logger     logging.Logger
	metrics    *metrics.Metrics
}

func NewProber(opts Options, logger logging.Logger, m *metrics.Metrics) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/health"
	}
	return &Prober{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		healthPath: opts.HealthPath,
		logger:     logger,
		metrics:    m,
	}
}

// IsOwnerAlive reports whether address answers its health endpoint with a
// 2xx status within the timeout. Any failure counts as not alive.
func (p *Prober) IsOwnerAlive(ctx context.Context, address string) bool {
	alive := p.probe(ctx, address)
	p.metrics.Probe(alive)
	return alive
}

func (p *Prober) probe(ctx context.Context, address string) bool {
	if address == "" {
		return false
	}

	url := address
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimRight(url, "/") + p.healthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Info(logging.Session, logging.Probe, "owner unreachable", map[logging.ExtraKey]any{
			logging.Instance:     address,
			logging.ErrorMessage: err.Error(),
		})
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
