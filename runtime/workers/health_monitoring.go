package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-room/observability"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoring samples the server process on an interval and logs
// resource usage together with the room counters. Diagnostic only; the
// room keeps running if sampling fails.
type HealthMonitoring struct {
	log            *slog.Logger
	stats          *observability.Stats
	metricInterval time.Duration
}

func NewHealthMonitoring(log *slog.Logger, stats *observability.Stats, metricInterval time.Duration) *HealthMonitoring {
	return &HealthMonitoring{log: log, stats: stats, metricInterval: metricInterval}
}

func (w *HealthMonitoring) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Error("Error while reading process cpu usage", "err", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Error("Error while reading process ram usage", "err", err)
				continue
			}
			w.log.Info("Room health",
				"cpu_percent", cpu,
				"ram_percent", ram,
				"stats", w.stats.Snapshot())
		}
	}
}
