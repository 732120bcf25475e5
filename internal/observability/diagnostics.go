package observability

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Diagnostics is a snapshot of process and host resource usage, surfaced by
// the /v1/observability/metrics endpoint.
type Diagnostics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemPercent    float64 `json:"mem_percent"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Collect samples CPU usage over a short window and reads current memory
// usage, returning zero values for any metric gopsutil cannot read on this
// host rather than returning an error.
func Collect(startupTime time.Time) Diagnostics {
	var d Diagnostics
	d.UptimeSeconds = time.Since(startupTime).Seconds()

	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		d.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		d.MemPercent = vm.UsedPercent
	}
	return d
}
