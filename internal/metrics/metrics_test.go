package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

func TestCollector_Zone(t *testing.T) {
	c := New()
	temp := 19.5

	c.ZoneEvaluated(heating.ZoneSnapshot{Location: "bad", CurrentTemp: &temp, EffectiveTarget: 21, Claim: true, Boost: 1.5})
	c.ZoneEvaluated(heating.ZoneSnapshot{Location: "bad", EffectiveTarget: 21})

	assert.Equal(t, 0.0, testutil.ToFloat64(c.zoneClaim.WithLabelValues("bad")))
	assert.Equal(t, 19.5, testutil.ToFloat64(c.zoneTemp.WithLabelValues("bad")), "keeps last valid reading")
	assert.Equal(t, 21.0, testutil.ToFloat64(c.zoneTarget.WithLabelValues("bad")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.zoneEvals.WithLabelValues("bad")))
}

func TestCollector_Supply(t *testing.T) {
	c := New()
	outdoor := -2.0

	c.SupplyEvaluated(heating.SupplySnapshot{
		State:       heating.Active,
		Mode:        heating.ModeHeating,
		FlowTarget:  37.5,
		ActiveZones: []string{"bad", "kueche"},
		OutdoorTemp: &outdoor,
	})
	c.SupplyEvent(heating.SupplyEvent{Kind: heating.EventModeChanged})
	c.SupplyEvent(heating.SupplyEvent{Kind: heating.EventModeChanged})
	c.KeepAlive(12, 1)

	assert.Equal(t, 37.5, testutil.ToFloat64(c.flowTarget))
	assert.Equal(t, -2.0, testutil.ToFloat64(c.outdoorTemp))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.supplyActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeZones))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mode.WithLabelValues("Heating")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.mode.WithLabelValues("Auto")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.supplyEvents.WithLabelValues("mode_changed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.keepAliveWrite))
}

func TestCollector_HandlerAndMiddleware(t *testing.T) {
	c := New()

	h := c.Middleware("status", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("status", "418")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "heating_http_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
