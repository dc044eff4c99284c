package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/avdecc/entity"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	respondEntityID         protocol.UniqueIdentifier
	respondDelay            time.Duration
	respondInProgress       bool
	respondProgressInterval time.Duration
	respondStatsInterval    time.Duration
)

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Answer commands as an AVDECC entity",
	Long: `Run a responding entity that answers every ACMP, AEM and Milan
vendor-unique command addressed to it. Useful to exercise controllers
without real hardware.

Examples:
  # Answer everything on the default UDP group
  avdeccctl respond

  # Answer for one entity on eth0, slowly, with IN_PROGRESS keep-alives
  avdeccctl respond --transport raw --interface eth0 \
    --entity-id 0x001BC50AC1000042 --delay 2s --in-progress --progress-interval 120ms`,
	RunE: runRespond,
}

func init() {
	flags := respondCmd.Flags()
	flags.Var(entityIDValue{&respondEntityID}, "entity-id", "entity ID to answer for (default: any)")
	flags.DurationVar(&respondDelay, "delay", 0, "delay before each final response")
	flags.BoolVar(&respondInProgress, "in-progress", false, "send IN_PROGRESS before AEM responses")
	flags.DurationVar(&respondProgressInterval, "progress-interval", 0, "repeat IN_PROGRESS at this interval while delayed")
	flags.DurationVar(&respondStatsInterval, "stats-interval", 10*time.Second, "how often to log response counts")
}

func runRespond(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	responder := entity.NewResponder(s.pi, &entity.Options{
		EntityID:         respondEntityID,
		Delay:            respondDelay,
		InProgress:       respondInProgress,
		ProgressInterval: respondProgressInterval,
	})
	defer responder.Close()

	logrus.WithFields(logrus.Fields{
		"function":  "runRespond",
		"transport": cfg.Transport.Kind,
		"entity_id": respondEntityID.String(),
	}).Info("Responder running. Press Ctrl+C to stop.")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveMetrics(ctx, cfg, s.registry)
	})
	g.Go(func() error {
		logStats(ctx, responder, respondStatsInterval)
		return nil
	})
	return g.Wait()
}

func logStats(ctx context.Context, r *entity.Responder, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := r.Stats()
			logrus.WithFields(logrus.Fields{
				"function": "logStats",
				"acmp":     stats.Acmp,
				"aem":      stats.Aem,
				"mvu":      stats.Mvu,
				"dropped":  stats.Dropped,
			}).Info("Responder statistics")
		}
	}
}
