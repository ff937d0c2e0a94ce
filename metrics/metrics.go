// Package metrics serves the Prometheus scrape endpoint and the
// liveness probe on a dedicated listener.
package metrics

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/errgo.v1"
	"gopkg.in/tomb.v2"
)

// HealthFunc reports whether the service is able to do work.
type HealthFunc func() bool

type Metrics struct {
	s       *Settings
	r       *httprouter.Router
	healthy HealthFunc
	t       tomb.Tomb
}

func NewMetrics(s *Settings, healthy HealthFunc) *Metrics {
	if s == nil {
		s = DefaultSettings()
	}

	m := &Metrics{
		s:       s,
		r:       httprouter.New(),
		healthy: healthy,
	}
	m.r.Handler("GET", m.s.MetricsPath, promhttp.Handler())
	m.r.GET(m.s.HealthPath, m.health)

	return m
}

func (m *Metrics) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if m.healthy != nil && !m.healthy() {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (m *Metrics) Start() {
	m.t.Go(func() error {
		log.Info("metrics: starting")
		if err := http.ListenAndServe(m.s.MetricsAddr, m.r); err != nil {
			log.Errorf("failed to serve metrics: %v", err)
			return err
		}
		return nil
	})
}

func (m *Metrics) Stop() {
	log.Info("metrics: stopping")
	m.t.Kill(nil)
	if err := m.t.Wait(); err != nil {
		log.Error(errgo.Details(err))
	}
	log.Info("metrics: stopped")
}
