// Package metrics exports channel buffers and counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/cirbuf/pkg/channel"
	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

const namespace = "cirbuf"

var (
	bufferLabels  = []string{"channel", "buffer"}
	channelLabels = []string{"channel"}

	descBufferCount = prometheus.NewDesc(namespace+"_buffer_count_bytes",
		"Bytes waiting in a buffer.", bufferLabels, nil)
	descBufferFree = prometheus.NewDesc(namespace+"_buffer_free_bytes",
		"Free space of a buffer.", bufferLabels, nil)
	descBufferCapacity = prometheus.NewDesc(namespace+"_buffer_capacity_bytes",
		"Capacity of a buffer.", bufferLabels, nil)
	descBufferStatus = prometheus.NewDesc(namespace+"_buffer_status",
		"Sticky status code of a buffer, 0 is no error.", bufferLabels, nil)

	descFrames = prometheus.NewDesc(namespace+"_frames_total",
		"Frames recovered from the receive stream.", channelLabels, nil)
	descDroppedBytes = prometheus.NewDesc(namespace+"_dropped_bytes_total",
		"Received bytes discarded while out of sync.", channelLabels, nil)
	descDecodeErrors = prometheus.NewDesc(namespace+"_decode_errors_total",
		"Malformed escape sequences received.", channelLabels, nil)
	descOverflows = prometheus.NewDesc(namespace+"_frame_overflows_total",
		"Frames lost because the frames buffer was full.", channelLabels, nil)
	descRxBytes = prometheus.NewDesc(namespace+"_port_rx_bytes_total",
		"Bytes received from the device.", channelLabels, nil)
	descTxBytes = prometheus.NewDesc(namespace+"_port_tx_bytes_total",
		"Bytes sent to the device.", channelLabels, nil)
	descLagged = prometheus.NewDesc(namespace+"_subscriber_lagged_total",
		"Frames not delivered to a lagging subscriber.", channelLabels, nil)
)

// Collector implements prometheus.Collector over a channel registry.
type Collector struct {
	Registry *channel.Registry
}

// NewCollector creates a Collector.
func NewCollector(r *channel.Registry) *Collector {
	return &Collector{Registry: r}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		descBufferCount, descBufferFree, descBufferCapacity, descBufferStatus,
		descFrames, descDroppedBytes, descDecodeErrors, descOverflows,
		descRxBytes, descTxBytes, descLagged,
	} {
		ch <- desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, chn := range c.Registry.Channels() {
		name := chn.Name()
		for _, b := range []struct {
			label string
			buf   *cirbuf.Buffer
		}{
			{"rx", chn.Rx},
			{"tx", chn.Tx},
			{"frames", chn.Frames},
		} {
			ch <- prometheus.MustNewConstMetric(descBufferCount, prometheus.GaugeValue, float64(b.buf.Count()), name, b.label)
			ch <- prometheus.MustNewConstMetric(descBufferFree, prometheus.GaugeValue, float64(b.buf.Free()), name, b.label)
			ch <- prometheus.MustNewConstMetric(descBufferCapacity, prometheus.GaugeValue, float64(b.buf.Cap()), name, b.label)
			ch <- prometheus.MustNewConstMetric(descBufferStatus, prometheus.GaugeValue, float64(b.buf.Status()), name, b.label)
		}
		st := chn.Status()
		_, lagged := chn.SubscriberStats()
		counter := func(desc *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), name)
		}
		counter(descFrames, st.Frames)
		counter(descDroppedBytes, st.DroppedBytes)
		counter(descDecodeErrors, st.DecodeErrors)
		counter(descOverflows, st.Overflows)
		counter(descRxBytes, st.RxBytes)
		counter(descTxBytes, st.TxBytes)
		counter(descLagged, lagged)
	}
}

// NewRegistry creates a prometheus registry with the channel collector
// and the process/Go collectors.
func NewRegistry(r *channel.Registry) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(r),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics of reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
