package metrics

import "testing"

func TestSeriesSummarize(t *testing.T) {
	var s Series
	for _, v := range []float64{3, 1, 4, 1, 5} {
		s.Add(v)
	}

	stats := s.Summarize()
	if stats.Empty {
		t.Fatal("expected non-empty series")
	}
	if stats.Samples != 5 {
		t.Errorf("expected 5 samples, got %d", stats.Samples)
	}
	if stats.Min != 1 || stats.Max != 5 {
		t.Errorf("expected min 1 max 5, got min %f max %f", stats.Min, stats.Max)
	}
	if stats.Mean != 2.8 {
		t.Errorf("expected mean 2.8, got %f", stats.Mean)
	}
}

func TestSeriesSummarizeEmpty(t *testing.T) {
	var s Series
	stats := s.Summarize()
	if !stats.Empty {
		t.Fatal("expected empty marker")
	}
	if stats.Mean != 0 || stats.Samples != 0 {
		t.Fatalf("expected zero mean and samples, got %+v", stats)
	}
}

func TestSeriesValuesIsCopy(t *testing.T) {
	var s Series
	s.Add(1)
	vals := s.Values()
	vals[0] = 99
	if s.Values()[0] != 1 {
		t.Fatal("Values must return a copy")
	}
	if s.Len() != 1 {
		t.Fatalf("expected len 1, got %d", s.Len())
	}
}
