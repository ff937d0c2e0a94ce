package server

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/paulvi/xipki/metrics"
	"github.com/paulvi/xipki/pgstore"
	"github.com/paulvi/xipki/pki"
	"github.com/paulvi/xipki/store"
)

type Server struct {
	settings        *Settings
	st              store.Storage
	logWriter       io.WriteCloser
	metricsListener *metrics.Metrics

	t tomb.Tomb
}

func NewServer(settings *Settings) (*Server, error) {
	if settings == nil {
		defaults := DefaultSettings()
		settings = &defaults
	}
	s := &Server{
		settings: settings,
	}

	var err error
	s.st, err = DialStorage(settings)
	if err != nil {
		return nil, err
	}

	s.metricsListener = metrics.NewMetrics(settings.Metrics, s.st.IsHealthy)

	registerMetrics()
	s.st.Subscribe(metricsStorageNotifier)

	return s, nil
}

func DialStorage(settings *Settings) (store.Storage, error) {
	switch settings.DB.Driver {
	case "postgres":
		return pgstore.Dial(settings.DB.DSN, settings.Shard)
	}
	return nil, errors.Errorf("storage driver %q not supported", settings.DB.Driver)
}

// Storage exposes the server's store, for embedding callers.
func (s *Server) Storage() store.Storage {
	return s.st
}

func (s *Server) Start() error {
	s.openLog()

	if s.metricsListener != nil {
		s.metricsListener.Start()
	}
	if s.settings.Maintenance.Interval.Duration > 0 {
		s.t.Go(s.maintain)
	}

	return nil
}

// maintain periodically purges unreferenced requests and trims old
// CRLs per the configured retention.
func (s *Server) maintain() error {
	ticker := time.NewTicker(s.settings.Maintenance.Interval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-s.t.Dying():
			return nil
		case <-ticker.C:
		}

		err := s.st.DeleteUnreferencedRequests()
		if err != nil {
			log.Errorf("could not delete unreferenced requests: %v", err)
		}

		for _, ca := range s.settings.CAs {
			if ca.CRLRetention <= 0 {
				continue
			}
			deleted, err := s.st.CleanupCRLs(pki.NameID{ID: ca.ID, Name: ca.Name}, ca.CRLRetention)
			if err != nil {
				log.Errorf("could not clean up CRLs of CA %q: %v", ca.Name, err)
				continue
			}
			if deleted > 0 {
				log.Infof("removed %d obsolete CRLs of CA %q", deleted, ca.Name)
			}
		}
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func (s *Server) openLog() {
	defer func() {
		level, err := log.ParseLevel(strings.ToLower(s.settings.LogLevel))
		if err != nil {
			log.Warningf("invalid LogLevel=%q: %v", s.settings.LogLevel, err)
			return
		}
		log.SetLevel(level)
	}()

	s.logWriter = nopCloser{os.Stderr}
	if s.settings.LogFile != "" {
		f, err := os.OpenFile(s.settings.LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			log.Errorf("failed to open LogFile=%q: %v", s.settings.LogFile, err)
		}
		s.logWriter = f
	}
	log.SetOutput(s.logWriter)
	log.Debug("log opened")
}

func (s *Server) closeLog() {
	log.SetOutput(os.Stderr)
	s.logWriter.Close()
}

func (s *Server) LogRotate() {
	w := s.logWriter
	s.openLog()
	w.Close()
}

func (s *Server) Wait() error {
	return s.t.Wait()
}

func (s *Server) Stop() {
	defer s.closeLog()

	if s.metricsListener != nil {
		s.metricsListener.Stop()
	}
	s.t.Kill(nil)
	s.t.Wait()

	err := s.st.Close()
	if err != nil {
		log.Errorf("error closing storage: %v", err)
	}
}
