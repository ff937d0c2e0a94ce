package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paulvi/xipki/store"
)

var metricsCounters = struct {
	certsAdded     prometheus.Counter
	certsRevoked   prometheus.Counter
	certsUnrevoked prometheus.Counter
	crlsAdded      prometheus.Counter
}{
	certsAdded: prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xipki",
			Name:      "certs_added",
			Help:      "Certificates stored since startup",
		},
	),
	certsRevoked: prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xipki",
			Name:      "certs_revoked",
			Help:      "Certificates revoked since startup",
		},
	),
	certsUnrevoked: prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xipki",
			Name:      "certs_unrevoked",
			Help:      "Revocations released since startup",
		},
	),
	crlsAdded: prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xipki",
			Name:      "crls_added",
			Help:      "CRLs stored since startup",
		},
	),
}

var metricsRegister sync.Once

func registerMetrics() {
	metricsRegister.Do(func() {
		prometheus.MustRegister(metricsCounters.certsAdded)
		prometheus.MustRegister(metricsCounters.certsRevoked)
		prometheus.MustRegister(metricsCounters.certsUnrevoked)
		prometheus.MustRegister(metricsCounters.crlsAdded)
	})
}

func metricsStorageNotifier(change store.CertChange) error {
	switch change.(type) {
	case store.CertAdded:
		metricsCounters.certsAdded.Inc()
	case store.CertRevoked:
		metricsCounters.certsRevoked.Inc()
	case store.CertUnrevoked:
		metricsCounters.certsUnrevoked.Inc()
	case store.CRLAdded:
		metricsCounters.crlsAdded.Inc()
	}
	return nil
}
