package api

import (
	"net/http"
	"time"

	"promptharvest/internal/governor"
)

// Recommendation is one piece of operator advice derived from the live
// status. Severity is "info", "warning", or "critical".
type Recommendation struct {
	Severity string `json:"severity"`
	Action   string `json:"action"`
	Detail   string `json:"detail"`
}

func (s *Server) getRecommendations(w http.ResponseWriter, _ *http.Request) {
	status := s.status.Snapshot()
	memoryMB, cpuPercent, haveSample := s.resourceSample()
	recs := recommend(status, resourceView{
		MemoryMB:      memoryMB,
		CPUPercent:    cpuPercent,
		HaveSample:    haveSample,
		MaxMemoryMB:   s.cfg.MaxMemoryMB,
		MaxCPUPercent: s.cfg.MaxCPUPercent,
	})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":          s.runID.String(),
		"health":          string(status.Health.State),
		"circuit":         string(status.Circuit.State),
		"recommendations": recs,
	})
}

func (s *Server) resourceSample() (memoryMB, cpuPercent float64, ok bool) {
	if s.resources == nil {
		return 0, 0, false
	}
	sample := s.resources.Last()
	if sample.At.IsZero() {
		return 0, 0, false
	}
	return sample.MemoryMB, sample.CPUPercent, true
}

type resourceView struct {
	MemoryMB      float64
	CPUPercent    float64
	HaveSample    bool
	MaxMemoryMB   float64
	MaxCPUPercent float64
}

func recommend(status governor.Status, res resourceView) []Recommendation {
	var recs []Recommendation

	switch status.Circuit.State {
	case governor.CircuitOpen:
		recs = append(recs, Recommendation{
			Severity: "critical",
			Action:   "pause the fleet",
			Detail:   "circuit is open; new attempts are denied until the recovery timeout elapses",
		})
	case governor.CircuitHalfOpen:
		recs = append(recs, Recommendation{
			Severity: "warning",
			Action:   "hold steady",
			Detail:   "a single probe is testing recovery; do not add load until it succeeds",
		})
	}

	switch status.Health.State {
	case governor.HealthBlocked:
		recs = append(recs, Recommendation{
			Severity: "critical",
			Action:   "stop and rotate",
			Detail:   "the target is actively blocking; change exit IPs or user agents before resuming",
		})
	case governor.HealthCritical:
		recs = append(recs, Recommendation{
			Severity: "critical",
			Action:   "cut request rate",
			Detail:   "over half of recent attempts failed; reduce workers or raise delays",
		})
	case governor.HealthWarning:
		if status.Health.AvgLatency > 30*time.Second {
			recs = append(recs, Recommendation{
				Severity: "warning",
				Action:   "raise delays",
				Detail:   "responses are slow; the target may be throttling",
			})
		} else {
			recs = append(recs, Recommendation{
				Severity: "warning",
				Action:   "watch the error rate",
				Detail:   "failures are elevated but below the critical threshold",
			})
		}
	}

	if res.HaveSample {
		if res.MaxMemoryMB > 0 && res.MemoryMB > 0.9*res.MaxMemoryMB {
			recs = append(recs, Recommendation{
				Severity: "warning",
				Action:   "shrink the cache",
				Detail:   "process memory is near the ceiling; cleanup callbacks may fire soon",
			})
		}
		if res.MaxCPUPercent > 0 && res.CPUPercent > 0.9*res.MaxCPUPercent {
			recs = append(recs, Recommendation{
				Severity: "warning",
				Action:   "reduce workers",
				Detail:   "process CPU is running hot",
			})
		}
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Severity: "info",
			Action:   "none",
			Detail:   "governor is healthy; current pacing is appropriate",
		})
	}
	return recs
}
