package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/mythic-to-moxfield/config"
)

const testBaseURL = "https://api.example.test"

type queryLog struct {
	mu      sync.Mutex
	queries []map[string]string
	headers []http.Header
}

func (ql *queryLog) record(req *http.Request) {
	ql.mu.Lock()
	defer ql.mu.Unlock()
	q := req.URL.Query()
	ql.queries = append(ql.queries, map[string]string{
		"exact":   q.Get("exact"),
		"version": q.Get("version"),
	})
	ql.headers = append(ql.headers, req.Header.Clone())
}

func (ql *queryLog) count() int {
	ql.mu.Lock()
	defer ql.mu.Unlock()
	return len(ql.queries)
}

// scryfallResponder answers like the named-card endpoint for a fixed set of
// printed names and records every query.
func scryfallResponder(log *queryLog, known map[string]string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		log.record(req)
		name, ok := known[req.URL.Query().Get("exact")]
		if !ok {
			return httpmock.NewJsonResponse(http.StatusNotFound, map[string]string{
				"object":  "error",
				"code":    "not_found",
				"details": "No cards found matching the given name",
			})
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]string{
			"object": "card",
			"name":   name,
		})
	}
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func newTestClient(t *testing.T, responder httpmock.Responder) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testBaseURL+namedPath, responder)

	client, err := NewClient(cfg)
	require.NoError(t, err)
	client.WithTransport(transport)
	return client
}

func TestClientResolve(t *testing.T) {
	log := &queryLog{}
	client := newTestClient(t, scryfallResponder(log, map[string]string{"Montaña": "Mountain"}))

	name, err := client.Resolve(context.Background(), "Montaña")
	require.NoError(t, err)
	assert.Equal(t, "Mountain", name)

	require.Equal(t, 1, log.count())
	assert.Equal(t, "Montaña", log.queries[0]["exact"])
	assert.Equal(t, "printed", log.queries[0]["version"])
	assert.Equal(t, "application/json", log.headers[0].Get("Accept"))
	assert.Equal(t, config.DefaultConfig().UserAgent, log.headers[0].Get("User-Agent"))

	assert.Equal(t, 1.0, counterValue(t, client.Metrics.ResolvedTotal))
	assert.Equal(t, 1.0, counterValue(t, client.Metrics.RequestsTotal.WithLabelValues("resolved")))
}

func TestClientResolveIsCaseSensitive(t *testing.T) {
	log := &queryLog{}
	client := newTestClient(t, scryfallResponder(log, map[string]string{"Montaña": "Mountain"}))

	_, err := client.Resolve(context.Background(), "montaña")
	require.Error(t, err)
	assert.Equal(t, "montaña", log.queries[0]["exact"])
}

func TestClientResolveRequeriesRepeatedNames(t *testing.T) {
	log := &queryLog{}
	client := newTestClient(t, scryfallResponder(log, map[string]string{"Isla": "Island"}))

	for i := 0; i < 3; i++ {
		name, err := client.Resolve(context.Background(), "Isla")
		require.NoError(t, err)
		assert.Equal(t, "Island", name)
	}
	assert.Equal(t, 3, log.count())
}

func TestClientResolveMisses(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		reason    string
	}{
		{
			name:      "not found",
			responder: httpmock.NewStringResponder(http.StatusNotFound, `{"object":"error","code":"not_found"}`),
			reason:    "not_found",
		},
		{
			name:      "rate limited",
			responder: httpmock.NewStringResponder(http.StatusTooManyRequests, `{"object":"error"}`),
			reason:    "rate_limited",
		},
		{
			name:      "server error",
			responder: httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"),
			reason:    "server_error",
		},
		{
			name:      "success without name",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"object":"card"}`),
			reason:    "missing_name",
		},
		{
			name:      "success with malformed body",
			responder: httpmock.NewStringResponder(http.StatusOK, `<html>`),
			reason:    "decode",
		},
		{
			name:      "connection failure",
			responder: httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}),
			reason:    "connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.responder)

			name, err := client.Resolve(context.Background(), "Unknown Card")
			require.Error(t, err)
			assert.Empty(t, name)

			var miss *MissError
			require.True(t, errors.As(err, &miss), "expected *MissError, got %T", err)
			assert.Equal(t, "Unknown Card", miss.Name)
			assert.Equal(t, tt.reason, miss.Reason())
			assert.Equal(t, 1.0, counterValue(t, client.Metrics.ErrorsTotal.WithLabelValues(tt.reason)))
			assert.Equal(t, 0.0, counterValue(t, client.Metrics.ResolvedTotal))
		})
	}
}

func TestClientResolveCancelledContext(t *testing.T) {
	log := &queryLog{}
	client := newTestClient(t, scryfallResponder(log, map[string]string{"Isla": "Island"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Resolve(ctx, "Isla")
	require.ErrorIs(t, err, context.Canceled)

	var miss *MissError
	assert.False(t, errors.As(err, &miss))
	assert.Zero(t, log.count())
}

func TestNewClientEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "https://api.example.test/"
	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/cards/named?exact=Isla&version=printed", client.namedURL("Isla"))

	cfg.BaseURL = "not a url"
	_, err = NewClient(cfg)
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Service Unavailable"), statusCode: http.StatusServiceUnavailable, expected: "server_error"},
		{name: "non-authoritative", err: nil, statusCode: http.StatusNonAuthoritativeInfo, expected: "server_error"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestMissErrorMessage(t *testing.T) {
	err := &MissError{Name: "Unknown Card", Err: ErrNotFound{Err: fmt.Errorf("http status %d", http.StatusNotFound)}}
	assert.Equal(t, `unresolved "Unknown Card": not_found: http status 404`, err.Error())
}
