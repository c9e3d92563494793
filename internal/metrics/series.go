package metrics

import "sync"

// Series is an ordered sequence of periodic samples.
type Series struct {
	mu     sync.Mutex
	values []float64
}

// SeriesStats summarizes a Series. Empty is set when no sample was taken,
// in which case Min, Max and Mean are all zero.
type SeriesStats struct {
	Samples int     `json:"samples" yaml:"samples"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Empty   bool    `json:"empty" yaml:"empty"`
}

// Add appends one sample.
func (s *Series) Add(v float64) {
	s.mu.Lock()
	s.values = append(s.values, v)
	s.mu.Unlock()
}

// Len returns the number of samples.
func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Values returns a copy of the samples in order.
func (s *Series) Values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.values...)
}

// Summarize computes min, max and arithmetic mean.
func (s *Series) Summarize() SeriesStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.values) == 0 {
		return SeriesStats{Empty: true}
	}

	stats := SeriesStats{
		Samples: len(s.values),
		Min:     s.values[0],
		Max:     s.values[0],
	}
	var sum float64
	for _, v := range s.values {
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
		sum += v
	}
	stats.Mean = sum / float64(len(s.values))
	return stats
}
