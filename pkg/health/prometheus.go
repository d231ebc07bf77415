package health

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"ChatDash/pkg/logger"
)

// DefaultUpQuery selects the scrape health of the chat server job.
const DefaultUpQuery = `up{job="chat-server"}`

// PrometheusProber treats the chat server as reachable when Prometheus last
// scraped it successfully. This is still only a liveness signal.
type PrometheusProber struct {
	Client v1.API
	Query  string
	Log    logger.Logger
}

// NewPrometheusProber initializes the Prometheus client connection.
func NewPrometheusProber(promURL, query string, log logger.Logger) (*PrometheusProber, error) {
	client, err := api.NewClient(api.Config{
		Address: promURL,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Prometheus client: %w", err)
	}
	if query == "" {
		query = DefaultUpQuery
	}
	if log == nil {
		log = logger.Noop()
	}

	return &PrometheusProber{
		Client: v1.NewAPI(client),
		Query:  query,
		Log:    log,
	}, nil
}

// Probe implements Prober. Query errors, empty results and any sample other
// than 1 are reported as unreachable.
func (p *PrometheusProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	result, warnings, err := p.Client.Query(ctx, p.Query, time.Now())
	if err != nil {
		p.Log.Debug("prometheus query %q failed: %v", p.Query, err)
		return false
	}
	for _, w := range warnings {
		p.Log.Debug("prometheus warning: %s", w)
	}

	// Expecting an instant vector; any healthy target is enough.
	v, ok := result.(model.Vector)
	if !ok || len(v) == 0 {
		return false
	}
	for _, sample := range v {
		if sample.Value == 1 {
			return true
		}
	}
	return false
}
