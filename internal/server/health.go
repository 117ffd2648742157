package server

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type hostStats struct {
	Hostname      string  `json:"hostname,omitempty"`
	UptimeSeconds uint64  `json:"uptime_seconds,omitempty"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	Goroutines    int     `json:"goroutines"`
}

// collectHostStats samples without blocking; unavailable readings stay zero.
func collectHostStats(c echo.Context) hostStats {
	ctx := c.Request().Context()
	stats := hostStats{Goroutines: runtime.NumGoroutine()}

	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = v.UsedPercent
	}
	if p, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(p) > 0 {
		stats.CPUPercent = p[0]
	}
	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		stats.DiskPercent = d.UsedPercent
	}
	if h, err := host.InfoWithContext(ctx); err == nil {
		stats.Hostname = h.Hostname
		stats.UptimeSeconds = h.Uptime
	}
	return stats
}

// healthHandler reports database, classifier and host state. It returns 503 when the database is down.
func (s *Server) healthHandler(c echo.Context) error {
	status := http.StatusOK
	resp := map[string]any{"status": "ok"}

	if s.DB != nil {
		db := s.DB.Health()
		resp["database"] = db
		if db["status"] != "up" {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
		}
	}

	if s.Classifier != nil {
		cls := map[string]string{"state": s.Classifier.State().String()}
		if err := s.Classifier.Ready(); err != nil {
			cls["error"] = err.Error()
		}
		resp["classifier"] = cls
	}

	resp["host"] = collectHostStats(c)
	return c.JSON(status, resp)
}
