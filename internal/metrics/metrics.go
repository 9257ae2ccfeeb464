// Package metrics exposes the controller's state as Prometheus metrics.
//
// The Collector observes zone and supply evaluations on the dispatch loop
// and keeps gauges for the latest values. It uses its own registry so
// tests and multiple instances do not collide with the global one.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

const namespace = "heating"

var modes = []heating.Mode{heating.ModeOff, heating.ModeAuto, heating.ModeHeating, heating.ModeParty}

// Collector holds the heating metrics.
type Collector struct {
	registry *prometheus.Registry

	flowTarget     prometheus.Gauge
	outdoorTemp    prometheus.Gauge
	supplyActive   prometheus.Gauge
	mode           *prometheus.GaugeVec
	activeZones    prometheus.Gauge
	supplyEvals    prometheus.Counter
	supplyEvents   *prometheus.CounterVec
	zoneClaim      *prometheus.GaugeVec
	zoneTemp       *prometheus.GaugeVec
	zoneTarget     *prometheus.GaugeVec
	zoneBoost      *prometheus.GaugeVec
	zoneEvals      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	keepAliveWrite prometheus.Gauge
	keepAliveReset prometheus.Gauge
}

// New creates a collector with Go runtime and process metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		flowTarget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "flow_target_celsius",
			Help: "Flow temperature setpoint requested from the boiler.",
		}),
		outdoorTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outdoor_temperature_celsius",
			Help: "Outdoor temperature used for the baseline.",
		}),
		supplyActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "supply_active",
			Help: "1 once the supply arbitrator has completed startup.",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mode",
			Help: "Current master heating mode (1 for the active mode).",
		}, []string{"mode"}),
		activeZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_zones",
			Help: "Zones whose claim has matured.",
		}),
		supplyEvals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "supply_evaluations_total",
			Help: "Supply evaluations performed.",
		}),
		supplyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "supply_events_total",
			Help: "Supply decisions by kind.",
		}, []string{"kind"}),
		zoneClaim: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "zone_claim",
			Help: "1 while the zone claims heat.",
		}, []string{"zone"}),
		zoneTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "zone_temperature_celsius",
			Help: "Last valid room temperature.",
		}, []string{"zone"}),
		zoneTarget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "zone_target_celsius",
			Help: "Effective target temperature including sun compensation.",
		}, []string{"zone"}),
		zoneBoost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "zone_boost_celsius",
			Help: "Flow boost contribution of the zone.",
		}, []string{"zone"}),
		zoneEvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "zone_evaluations_total",
			Help: "Zone evaluations performed.",
		}, []string{"zone"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "API requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "API request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		keepAliveWrite: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "keepalive_writes",
			Help: "Flow setpoint writes sent to the boiler bridge since start.",
		}),
		keepAliveReset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "keepalive_automatic_resets",
			Help: "Boiler operating mode resets to automatic since start.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.flowTarget, c.outdoorTemp, c.supplyActive, c.mode, c.activeZones,
		c.supplyEvals, c.supplyEvents,
		c.zoneClaim, c.zoneTemp, c.zoneTarget, c.zoneBoost, c.zoneEvals,
		c.httpRequests, c.httpDuration, c.keepAliveWrite, c.keepAliveReset,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ZoneEvaluated implements heating.ZoneObserver.
func (c *Collector) ZoneEvaluated(s heating.ZoneSnapshot) {
	c.zoneEvals.WithLabelValues(s.Location).Inc()
	c.zoneClaim.WithLabelValues(s.Location).Set(boolGauge(s.Claim))
	c.zoneTarget.WithLabelValues(s.Location).Set(s.EffectiveTarget)
	c.zoneBoost.WithLabelValues(s.Location).Set(s.Boost)
	if s.CurrentTemp != nil {
		c.zoneTemp.WithLabelValues(s.Location).Set(*s.CurrentTemp)
	}
}

// SupplyEvaluated implements heating.SupplyObserver.
func (c *Collector) SupplyEvaluated(s heating.SupplySnapshot) {
	c.supplyEvals.Inc()
	c.supplyActive.Set(boolGauge(s.State == heating.Active))
	c.flowTarget.Set(s.FlowTarget)
	c.activeZones.Set(float64(len(s.ActiveZones)))
	if s.OutdoorTemp != nil {
		c.outdoorTemp.Set(*s.OutdoorTemp)
	}
	for _, m := range modes {
		c.mode.WithLabelValues(m.String()).Set(boolGauge(m == s.Mode))
	}
}

// SupplyEvent implements heating.SupplyObserver.
func (c *Collector) SupplyEvent(e heating.SupplyEvent) {
	c.supplyEvents.WithLabelValues(string(e.Kind)).Inc()
}

// KeepAlive records the keep-alive counters.
func (c *Collector) KeepAlive(writes, resets uint64) {
	c.keepAliveWrite.Set(float64(writes))
	c.keepAliveReset.Set(float64(resets))
}

// Middleware records request counts and durations. route names the
// handler so path parameters do not explode the label set.
func (c *Collector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		c.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
