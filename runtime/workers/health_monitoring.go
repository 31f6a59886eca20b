package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"

	"realtime-core/observability"
)

// HealthMonitoringWorker samples own-process resource usage together with
// live coordinator figures on a ticker and logs them. There is no metrics
// surface here, only ambient self-observation.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	stats          observability.StatsProvider
}

func NewHealthMonitoringWorker(log *slog.Logger, metricInterval time.Duration,
	stats observability.StatsProvider) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, metricInterval: metricInterval, stats: stats}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("Error while finding process memory usage", "err", err)
				continue
			}

			stats := w.stats.Stats()
			w.log.Info("Coordinator health",
				"rooms", stats.Rooms,
				"room_connections", stats.RoomConnections,
				"presence_connections", stats.PresenceConnections,
				"known_users", stats.KnownUsers,
				"cpu_percent", cpu,
				"rss_bytes", memInfo.RSS,
			)
		}
	}
}
