package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves health and runtime diagnostics endpoints.
type SystemHandlers struct {
	startupTime time.Time
	log         zerolog.Logger
}

func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth reports liveness and uptime.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.respond(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startupTime).Round(time.Second).String(),
	})
}

// HandleSystemInfo reports process and host resource usage.
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"goVersion":  runtime.Version(),
		"uptime":     time.Since(h.startupTime).Round(time.Second).String(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = map[string]interface{}{
			"totalMB":     vm.Total / 1024 / 1024,
			"usedMB":      vm.Used / 1024 / 1024,
			"usedPercent": vm.UsedPercent,
		}
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory stats")
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info["cpuPercent"] = percents[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU stats")
	}

	h.respond(w, info)
}

func (h *SystemHandlers) respond(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
