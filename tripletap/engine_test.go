package tripletap

import "testing"

func quietFrame(nowMs uint64, ax int16) SensorFrame {
	return SensorFrame{NowMs: nowMs, Ax: ax}
}

// spikeFrame is quietFrame under another name at call sites that intend a
// jerk-producing accel step rather than a steady reading.
var spikeFrame = quietFrame

func countTriggers(actions [][]Action) int {
	n := 0
	for _, as := range actions {
		for _, a := range as {
			if a.Kind == ActionTrigger {
				n++
			}
		}
	}
	return n
}

// TestScenarioS7TripleTapTrigger transcribes §9's S7: three accepted
// jerk-only candidates at t=100,300,550ms (all X-axis) trigger exactly
// once; a fourth similar candidate at t=700 is suppressed as
// CooldownActive, matching invariant 10 (exactly one trigger per three
// qualifying candidates, never two).
func TestScenarioS7TripleTapTrigger(t *testing.T) {
	e := NewEngine(DefaultConfig())

	frames := []SensorFrame{
		quietFrame(0, 0),
		quietFrame(50, 0),
		spikeFrame(100, 3000), // candidate 1
		quietFrame(150, 3000),
		quietFrame(200, 3000),
		spikeFrame(300, 6000), // candidate 2
		quietFrame(350, 6000),
		quietFrame(450, 6000),
		spikeFrame(550, 9000), // candidate 3: triggers
		quietFrame(600, 9000),
		quietFrame(650, 9000),
		spikeFrame(700, 12000), // candidate 4: suppressed, still in cooldown
	}

	var allActions [][]Action
	for _, f := range frames {
		allActions = append(allActions, e.Tick(f))
	}

	if got := countTriggers(allActions); got != 1 {
		t.Fatalf("expected exactly one trigger action, got %d", got)
	}
	if e.State() != StateTriggeredCooldown {
		t.Fatalf("expected engine in TriggeredCooldown after the run, got %v", e.State())
	}

	trace := e.Trace()
	if len(trace) == 0 {
		t.Fatal("expected trace samples to have been recorded")
	}
	last := trace[len(trace)-1]
	if last.RejectReason != ReasonCooldownActive {
		t.Fatalf("expected last tick's trace to record CooldownActive, got %v", last.RejectReason)
	}
}

// TestTwoCandidatesNeverTrigger is invariant 10's other half: a sequence
// that only reaches TapSeq2 (two accepted candidates) must never emit a
// trigger.
func TestTwoCandidatesNeverTrigger(t *testing.T) {
	e := NewEngine(DefaultConfig())
	frames := []SensorFrame{
		quietFrame(0, 0),
		quietFrame(50, 0),
		spikeFrame(100, 3000),
		quietFrame(150, 3000),
		quietFrame(200, 3000),
		spikeFrame(300, 6000),
	}
	var allActions [][]Action
	for _, f := range frames {
		allActions = append(allActions, e.Tick(f))
	}
	if got := countTriggers(allActions); got != 0 {
		t.Fatalf("expected no trigger after only two candidates, got %d", got)
	}
	if e.State() != StateTapSeq2 {
		t.Fatalf("expected TapSeq2, got %v", e.State())
	}
}

// TestGapTooLongResetsSequence checks that exceeding max_gap_ms between
// the first and second candidate returns the engine to Idle.
func TestGapTooLongResetsSequence(t *testing.T) {
	e := NewEngine(DefaultConfig())
	frames := []SensorFrame{
		quietFrame(0, 0),
		quietFrame(50, 0),
		spikeFrame(100, 3000),
	}
	for _, f := range frames {
		e.Tick(f)
	}
	if e.State() != StateTapSeq1 {
		t.Fatalf("expected TapSeq1 after first candidate, got %v", e.State())
	}

	// Advance well past max_gap_ms (700) with no further candidate.
	e.Tick(quietFrame(900, 3000))
	if e.State() != StateIdle {
		t.Fatalf("expected Idle after gap exceeded max_gap_ms, got %v", e.State())
	}
}

// TestGyroVetoBlocksMotionOnlyCandidate checks that a jerk-only candidate
// is rejected while the gyro veto window is active, per the gate in
// assessTapCandidate.
func TestGyroVetoBlocksMotionOnlyCandidate(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Tick(quietFrame(0, 0))
	e.Tick(quietFrame(50, 0))

	big := SensorFrame{NowMs: 80, Gx: 5000, Gy: 5000, Gz: 4100}
	e.Tick(big)

	actions := e.Tick(SensorFrame{NowMs: 100, Ax: 3000})
	if len(actions) != 0 {
		t.Fatalf("expected no action while gyro veto active")
	}
	if e.State() != StateIdle {
		t.Fatalf("expected candidate rejected by gyro veto to leave engine in Idle, got %v", e.State())
	}

	trace := e.Trace()
	last := trace[len(trace)-1]
	if last.RejectReason != ReasonGyroVeto {
		t.Fatalf("expected GyroVeto reject reason, got %v", last.RejectReason)
	}
}

// TestImuFaultEntersBackoffAndRecovers checks the suppressed superstate
// transition and its recovery back to Idle.
func TestImuFaultEntersBackoffAndRecovers(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Tick(quietFrame(0, 0))
	e.Tick(spikeFrame(100, 3000))
	if e.State() != StateTapSeq1 {
		t.Fatalf("expected TapSeq1 before fault, got %v", e.State())
	}

	e.ImuFault(150)
	if e.State() != StateSensorFaultBackoff {
		t.Fatalf("expected SensorFaultBackoff after fault, got %v", e.State())
	}
	if e.haveSeqLastTap {
		t.Fatal("expected sequence cleared on fault")
	}

	// Ticks while faulted are handled but never progress the sequence.
	e.Tick(spikeFrame(200, 6000))
	if e.State() != StateSensorFaultBackoff {
		t.Fatalf("expected engine to remain in SensorFaultBackoff, got %v", e.State())
	}

	e.ImuRecovered(250)
	if e.State() != StateIdle {
		t.Fatalf("expected Idle after recovery, got %v", e.State())
	}
}

func TestAccelL1JerkAndAxisPrefersLargestDeltaAxis(t *testing.T) {
	jerk, axis := accelL1JerkAndAxis(accelState{valid: true, ax: 100, ay: 120, az: 140}, 160, 122, 139)
	if jerk != 63 {
		t.Fatalf("expected jerk 63, got %d", jerk)
	}
	if axis != tapSrcXBit {
		t.Fatalf("expected X axis, got %#x", axis)
	}
}

func TestStrongJerkCandidateRejectedWhenDebounced(t *testing.T) {
	cfg := DefaultConfig()
	features := MotionFeatures{JerkL1: 3000, PrevJerkL1: 100, CandidateAxis: tapSrcXBit}
	assessment := assessTapCandidate(&features, 0, 0, 1000, true, 1050, &cfg)
	if assessment.Accepted {
		t.Fatal("expected candidate rejected")
	}
	if assessment.Reason != ReasonDebounced {
		t.Fatalf("expected Debounced, got %v", assessment.Reason)
	}
}
