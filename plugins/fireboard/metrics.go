package fireboard

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gohome_fireboard_requests_total",
		Help: "Fireboard API requests by method and HTTP status (error for transport failures)",
	}, []string{"method", "status"})

	discoveryProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gohome_fireboard_discovery_probes_total",
		Help: "Endpoint discovery probes by family and result",
	}, []string{"family", "result"})
)

// RequestCollectors returns the package-level request counters.
func RequestCollectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, discoveryProbes}
}

// MetricsCollector exports the coordinator's latest snapshot. It never calls
// the API itself.
type MetricsCollector struct {
	coordinator *Coordinator

	temperature      *prometheus.GaugeVec
	alerts           *prometheus.GaugeVec
	devices          prometheus.Gauge
	workingEndpoints prometheus.Gauge
	apiStatus        *prometheus.GaugeVec
	lastSuccess      prometheus.Gauge
	success          prometheus.Gauge
}

func NewMetricsCollector(coordinator *Coordinator) *MetricsCollector {
	return &MetricsCollector{
		coordinator: coordinator,
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_fireboard_channel_temperature",
			Help: "Latest probe temperature per channel, in the unit label",
		}, []string{"device_id", "device_name", "channel", "channel_name", "unit"}),
		alerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_fireboard_device_alerts",
			Help: "Configured alerts per device",
		}, []string{"device_id", "device_name"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_fireboard_devices",
			Help: "Devices in the latest snapshot",
		}),
		workingEndpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_fireboard_working_endpoints",
			Help: "Endpoints learned by discovery",
		}),
		apiStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_fireboard_api_status",
			Help: "Current API status (1 for the active status)",
		}, []string{"status"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_fireboard_last_success_timestamp_seconds",
			Help: "Last successful Fireboard poll timestamp (epoch seconds)",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_fireboard_scrape_success",
			Help: "Last poll success (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.temperature.Describe(ch)
	c.alerts.Describe(ch)
	c.devices.Describe(ch)
	c.workingEndpoints.Describe(ch)
	c.apiStatus.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.success.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	snap, ok := c.coordinator.Snapshot()
	if !ok {
		c.success.Set(0)
		c.collectAll(ch)
		return
	}

	c.temperature.Reset()
	c.alerts.Reset()
	c.apiStatus.Reset()

	for _, status := range []APIStatus{StatusOK, StatusNoDevices, StatusAuthFailed, StatusError} {
		value := 0.0
		if snap.APIStatus == status {
			value = 1
		}
		c.apiStatus.WithLabelValues(string(status)).Set(value)
	}

	c.devices.Set(float64(len(snap.Devices)))
	c.workingEndpoints.Set(float64(len(snap.WorkingEndpoints)))

	for _, d := range snap.Devices {
		c.alerts.WithLabelValues(d.ID, d.Title).Set(float64(len(d.Alerts)))
		for _, channel := range d.Channels {
			if channel.Temperature == nil {
				continue
			}
			c.temperature.WithLabelValues(
				d.ID, d.Title, strconv.Itoa(channel.Number), channel.Name, channel.Unit,
			).Set(*channel.Temperature)
		}
	}

	if snap.APIStatus == StatusOK {
		c.success.Set(1)
		c.lastSuccess.Set(float64(snap.UpdatedAt.Unix()))
	} else {
		c.success.Set(0)
	}
	c.collectAll(ch)
}

func (c *MetricsCollector) collectAll(ch chan<- prometheus.Metric) {
	c.temperature.Collect(ch)
	c.alerts.Collect(ch)
	c.devices.Collect(ch)
	c.workingEndpoints.Collect(ch)
	c.apiStatus.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.success.Collect(ch)
}
