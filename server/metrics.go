package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/byte4ever/image_updater/updater"
)

const metricsNamespace = "image_updater"

type metrics struct {
	requests *prometheus.CounterVec
	files    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Update requests by response status code.",
			},
			[]string{"code"},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "files_total",
				Help:      "Candidate manifests by outcome.",
			},
			[]string{"status"},
		),
	}

	for _, co := range []prometheus.Collector{m.requests, m.files} {
		if err := reg.Register(co); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *metrics) observe(code int, res *updater.Result) {
	m.requests.WithLabelValues(strconv.Itoa(code)).Inc()

	if res == nil {
		return
	}

	for _, out := range res.Outcomes {
		m.files.WithLabelValues(string(out.Status)).Inc()
	}
}
