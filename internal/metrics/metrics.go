// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "colppy-to-gsheets"

// Metrics counts Colppy calls and sync progress. A nil *Metrics is a no-op.
type Metrics struct {
	reg      *prometheus.Registry
	provider *sdk.MeterProvider

	calls        api.Int64Counter
	callDuration api.Float64Histogram
	items        api.Int64Counter
	itemErrors   api.Int64Counter
	flushes      api.Int64Counter
}

func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	provider := sdk.NewMeterProvider(sdk.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &Metrics{reg: reg, provider: provider}
	if m.calls, err = meter.Int64Counter("colppy_api_calls",
		api.WithDescription("Colppy API calls by operation and outcome")); err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}
	if m.callDuration, err = meter.Float64Histogram("colppy_api_call_duration",
		api.WithDescription("Duration of Colppy API calls"),
		api.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if m.items, err = meter.Int64Counter("sync_items_processed",
		api.WithDescription("Inventory items looked up by the sync")); err != nil {
		return nil, fmt.Errorf("create items counter: %w", err)
	}
	if m.itemErrors, err = meter.Int64Counter("sync_item_errors",
		api.WithDescription("Items written as Error")); err != nil {
		return nil, fmt.Errorf("create item errors counter: %w", err)
	}
	if m.flushes, err = meter.Int64Counter("sync_batch_flushes",
		api.WithDescription("Batches written to the working sheet")); err != nil {
		return nil, fmt.Errorf("create flushes counter: %w", err)
	}
	return m, nil
}

// Registry is what gets scraped or written to a textfile.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveCall implements colppy.Observer.
func (m *Metrics) ObserveCall(ctx context.Context, op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	attrs := api.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", Outcome(err)),
	)
	m.calls.Add(ctx, 1, attrs)
	m.callDuration.Record(ctx, d.Seconds(), api.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) ItemProcessed(ctx context.Context, deposit string, failed bool) {
	if m == nil {
		return
	}
	attrs := api.WithAttributes(attribute.String("deposit", deposit))
	m.items.Add(ctx, 1, attrs)
	if failed {
		m.itemErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) BatchFlushed(ctx context.Context, deposit string) {
	if m == nil {
		return
	}
	m.flushes.Add(ctx, 1, api.WithAttributes(attribute.String("deposit", deposit)))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// Outcome labels an error by its kind.
func Outcome(err error) string {
	var (
		auth      *colppy.AuthenticationError
		transport *colppy.TransportError
		malformed *colppy.MalformedResponseError
		remote    *colppy.RemoteOperationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &auth):
		return "auth"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &remote):
		return "remote"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
