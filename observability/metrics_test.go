package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nftlend/core/events"
)

type staticEvent string

func (e staticEvent) EventType() string { return string(e) }

func TestEmitCountsByType(t *testing.T) {
	metrics := NewLoanMetrics()
	fanout := events.Fanout{metrics}

	fanout.Emit(staticEvent("loan.offer_created"))
	fanout.Emit(staticEvent("loan.offer_created"))
	fanout.Emit(staticEvent("loan.repaid"))

	require.Equal(t, float64(2), metrics.EventCount("loan.offer_created"))
	require.Equal(t, float64(1), metrics.EventCount("loan.repaid"))
	require.Equal(t, float64(0), metrics.EventCount("loan.collateral_claimed"))
}

func TestHandlerServesExposition(t *testing.T) {
	metrics := NewLoanMetrics()
	metrics.Emit(staticEvent("loan.started"))

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, recorder.Code)

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `nftlend_events_total{type="loan.started"} 1`))
}

func TestNilEventIgnored(t *testing.T) {
	metrics := NewLoanMetrics()
	metrics.Emit(nil)
	require.Equal(t, float64(0), metrics.EventCount(""))
}
