package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	RelayedMessages.WithLabelValues("to_admin").Inc()
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), `deskbot_relayed_messages_total{direction="to_admin"}`)
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCountersAccumulate(t *testing.T) {
	before := counterValue(t, FilesRejected.WithLabelValues("too_large"))
	FilesRejected.WithLabelValues("too_large").Inc()
	assert.Equal(t, before+1, counterValue(t, FilesRejected.WithLabelValues("too_large")))
}

func TestStartDisabled(t *testing.T) {
	s := Start("")
	assert.Nil(t, s)
	assert.NoError(t, s.Shutdown(context.Background()))
}
