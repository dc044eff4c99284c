package commands

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/config"
	"github.com/opd-ai/avdecc/entity"
	"github.com/opd-ai/avdecc/pending"
	"github.com/opd-ai/avdecc/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// initLogger configures logrus from the logging section.
func initLogger(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	switch cfg.Logging.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// session is a protocol interface together with everything it depends on.
type session struct {
	pi       *avdecc.ProtocolInterface
	registry *prometheus.Registry
	cleanup  []func()
}

// Close releases the session in reverse order of creation.
func (s *session) Close() {
	if s.pi != nil {
		_ = s.pi.Close()
	}
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

// newSession opens the configured transport and starts a protocol
// interface on it. The sim transport also starts an in-process entity that
// answers every command.
func newSession(cfg *config.Config) (*session, error) {
	s := &session{registry: prometheus.NewRegistry()}
	s.registry.MustRegister(collectors.NewGoCollector())

	opts := cfg.ToOptions()
	opts.Metrics = pending.NewMetrics(s.registry)

	t, err := openTransport(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	pi, err := avdecc.New(t, opts)
	if err != nil {
		_ = t.Close()
		s.Close()
		return nil, err
	}
	s.pi = pi
	return s, nil
}

func openTransport(cfg *config.Config, s *session) (transport.Transport, error) {
	mac, err := localMAC(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Transport.Kind {
	case "raw":
		return openRaw(cfg.Transport.Interface)
	case "sim":
		network := transport.NewSimulatedNetwork()
		network.SetAsync(true)

		remoteMAC := net.HardwareAddr{0x02, 0x1B, 0xC5, 0x0A, 0xC1, 0x01}
		remote, err := avdecc.New(network.Endpoint(remoteMAC), avdecc.NewOptions())
		if err != nil {
			return nil, err
		}
		responder := entity.NewResponder(remote, &entity.Options{})
		s.cleanup = append(s.cleanup, func() {
			responder.Close()
			_ = remote.Close()
		})
		return network.Endpoint(mac), nil
	default:
		t, err := transport.NewUDPTransport(cfg.Transport.Listen, cfg.Transport.Group, mac)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// localMAC returns the configured source address, or a locally
// administered one derived from the entity ID.
func localMAC(cfg *config.Config) (net.HardwareAddr, error) {
	if cfg.Transport.MAC != "" {
		return net.ParseMAC(cfg.Transport.MAC)
	}
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(cfg.Entity.ID))
	mac := net.HardwareAddr{0x02, id[3], id[4], id[5], id[6], id[7]}
	return mac, nil
}

// serveMetrics exposes registry on the configured address until ctx is
// done.
func serveMetrics(ctx context.Context, cfg *config.Config, registry *prometheus.Registry) error {
	if !cfg.Metrics.Enabled {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"function": "serveMetrics",
			"address":  cfg.Metrics.Address,
		}).Info("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
