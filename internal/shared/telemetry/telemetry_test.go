package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/parmr/internal/shared/config"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	"github.com/nemanja-m/parmr/pkg/core"
	"github.com/nemanja-m/parmr/pkg/local"
)

// collector records the OTLP paths it receives.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *collector) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func runPipeline(t *testing.T, opts []local.Option) {
	t.Helper()
	p, err := core.WithMapper(
		core.WithReader(func(_ context.Context, in []int) ([]int, error) { return in, nil }),
		func(n int) ([]core.KeyValue[int, int], error) {
			return []core.KeyValue[int, int]{{Key: n % 2, Value: n}}, nil
		}).
		WithReducer(func(_ int, values []int) (int, error) { return len(values), nil }).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error { return nil }).
		Build()
	require.NoError(t, err)
	require.NoError(t, local.Run(context.Background(), p, []int{1, 2, 3}, opts...))
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{}, logging.NewNop())
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.Nil(t, p.EngineOptions())

	runPipeline(t, p.EngineOptions())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_ExportsToCollector(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(c)
	defer srv.Close()

	p, err := Setup(context.Background(), config.TelemetryConfig{
		Endpoint:       strings.TrimPrefix(srv.URL, "http://"),
		Insecure:       true,
		ServiceName:    "parmr-test",
		MetricInterval: time.Hour,
	}, logging.NewNop())
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.Len(t, p.EngineOptions(), 2)

	runPipeline(t, p.EngineOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	require.Contains(t, c.received(), "/v1/traces")
	require.Contains(t, c.received(), "/v1/metrics")
}
