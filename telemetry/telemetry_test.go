package telemetry

import "testing"

func TestCountersIndependent(t *testing.T) {
	var r Registry
	r.Inc(SDInitAttempts)
	r.Inc(SDInitAttempts)
	r.Add(UploadsCommitted, 5)

	snap := r.Read()
	if got := snap.Counters[SDInitAttempts]; got != 2 {
		t.Errorf("SDInitAttempts = %d, want 2", got)
	}
	if got := snap.Counters[UploadsCommitted]; got != 5 {
		t.Errorf("UploadsCommitted = %d, want 5", got)
	}
	if got := snap.Counters[SDReadErrors]; got != 0 {
		t.Errorf("SDReadErrors = %d, want 0", got)
	}
}

func TestHistogramTracksMaxAndMean(t *testing.T) {
	var r Registry
	r.Observe(RedrawDuration, 10)
	r.Observe(RedrawDuration, 30)
	r.Observe(RedrawDuration, 20)

	snap := r.Read().Histograms[RedrawDuration]
	if snap.Count != 3 {
		t.Fatalf("Count = %d, want 3", snap.Count)
	}
	if snap.Max != 30 {
		t.Errorf("Max = %d, want 30", snap.Max)
	}
	if snap.Last != 20 {
		t.Errorf("Last = %d, want 20", snap.Last)
	}
	if mean := snap.Mean(); mean != 20 {
		t.Errorf("Mean = %d, want 20", mean)
	}
}
