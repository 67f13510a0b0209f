package match

import "github.com/WessleyAI/career-agent/pkg/metrics"

type engineMetrics struct {
	requests  *metrics.Counter
	fallbacks *metrics.Counter
	duration  *metrics.Histogram
}

func newEngineMetrics(reg *metrics.Registry, mode Mode) engineMetrics {
	if reg == nil {
		reg = metrics.New()
	}
	return engineMetrics{
		requests:  reg.Counter(metrics.WithLabels("match_requests_total", "mode", string(mode)), "Match computations started."),
		fallbacks: reg.Counter("match_fallback_total", "Resume chunks scored by brute force after the nearest-neighbour path failed."),
		duration:  reg.Histogram("match_duration_seconds", "Time to compute a match, cache misses only.", nil),
	}
}
