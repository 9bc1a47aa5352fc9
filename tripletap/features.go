package tripletap

// LSM6-style tap_src bit layout (axis mask, single-tap latch, tap-event
// latch), matching the sensor's register semantics.
const (
	tapSrcZBit        byte = 0x01
	tapSrcYBit        byte = 0x02
	tapSrcXBit        byte = 0x04
	tapSrcSingleBit   byte = 0x20
	tapSrcEventBit    byte = 0x40
	tapSrcAxisMaskAll byte = tapSrcXBit | tapSrcYBit | tapSrcZBit
)

// Candidate source-mask bits, reported on CandidateAssessment/TraceSample
// for telemetry.
const (
	candSrcAxis byte = 1 << iota
	candSrcSingle
	candSrcInt1
	candSrcTapEvent
	candSrcJerkAxis
	candSrcJerkOnly
	candSrcGyroVeto
	candSrcSeqAssist
)

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// accelState is an Option<(ax,ay,az)>: the previous tick's accel sample,
// absent on the very first tick.
type accelState struct {
	valid      bool
	ax, ay, az int16
}

// accelL1JerkAndAxis returns the L1 jerk magnitude and the axis with the
// largest per-axis delta (ties favor X, then Y, then Z). It returns
// (0, 0) when prev is absent.
func accelL1JerkAndAxis(prev accelState, ax, ay, az int16) (int32, byte) {
	if !prev.valid {
		return 0, 0
	}
	dx := abs32(int32(ax) - int32(prev.ax))
	dy := abs32(int32(ay) - int32(prev.ay))
	dz := abs32(int32(az) - int32(prev.az))
	total := dx + dy + dz

	var axis byte
	switch {
	case dx >= dy && dx >= dz:
		axis = tapSrcXBit
	case dy >= dx && dy >= dz:
		axis = tapSrcYBit
	default:
		axis = tapSrcZBit
	}
	return total, axis
}

// computeMotionFeatures derives the tick's MotionFeatures and the updated
// last-big-gyro timestamp (present once the gyro has swung above
// GyroL1SwingMax, latched until the next such swing).
func computeMotionFeatures(frame SensorFrame, prevAccel accelState, prevJerkL1 int32, lastBigGyroAtMs uint64, haveLastBigGyro bool, cfg *Config) (MotionFeatures, uint64, bool) {
	gyroL1 := abs32(int32(frame.Gx)) + abs32(int32(frame.Gy)) + abs32(int32(frame.Gz))

	newLastBigGyro, haveNewLastBigGyro := lastBigGyroAtMs, haveLastBigGyro
	if gyroL1 >= cfg.Thresholds.GyroL1SwingMax {
		newLastBigGyro, haveNewLastBigGyro = frame.NowMs, true
	}

	gyroVetoActive := haveNewLastBigGyro && frame.NowMs-newLastBigGyro < cfg.GyroVetoHoldMs
	if haveNewLastBigGyro && frame.NowMs < newLastBigGyro {
		gyroVetoActive = false
	}

	tapAxisMask := frame.TapSrc & tapSrcAxisMaskAll
	hasAxisTap := tapAxisMask != 0
	hasSingleTap := frame.TapSrc&tapSrcSingleBit != 0
	hasTapEvent := frame.TapSrc&tapSrcEventBit != 0

	jerkL1, jerkAxis := accelL1JerkAndAxis(prevAccel, frame.Ax, frame.Ay, frame.Az)

	candidateAxis := jerkAxis
	if hasAxisTap {
		candidateAxis = tapAxisMask
	}

	return MotionFeatures{
		TapSrc:         frame.TapSrc,
		Int1:           frame.Int1,
		TapAxisMask:    tapAxisMask,
		HasAxisTap:     hasAxisTap,
		HasSingleTap:   hasSingleTap,
		HasTapEvent:    hasTapEvent,
		JerkL1:         jerkL1,
		PrevJerkL1:     prevJerkL1,
		JerkAxis:       jerkAxis,
		CandidateAxis:  candidateAxis,
		GyroL1:         gyroL1,
		GyroVetoActive: gyroVetoActive,
	}, newLastBigGyro, haveNewLastBigGyro
}

// assessTapCandidate runs the weighted-vote gate: it decides whether this
// tick's features amount to an accepted tap candidate, applying the
// debounce window and the gyro veto on motion-only candidates.
func assessTapCandidate(features *MotionFeatures, seqCount uint8, seqAxis byte, lastCandidateAtMs uint64, haveLastCandidate bool, nowMs uint64, cfg *Config) CandidateAssessment {
	axisMatchesSequence := seqAxis == 0 || features.CandidateAxis == 0 || seqAxis&features.CandidateAxis != 0

	moderateJerk := features.JerkL1 >= cfg.Thresholds.JerkL1Min
	strongJerk := features.JerkL1 >= cfg.Thresholds.JerkStrongL1Min

	srcAxis := features.HasAxisTap
	srcSingle := features.HasSingleTap
	srcInt1 := features.Int1
	srcTapEvent := features.HasTapEvent
	srcJerkAxis := features.HasAxisTap && moderateJerk
	srcJerkOnly := !features.HasAxisTap && strongJerk && features.PrevJerkL1 <= cfg.Thresholds.PrevJerkQuietMax
	srcSeqFinishAssist := seqCount >= 2 && axisMatchesSequence && features.JerkL1 >= cfg.Thresholds.JerkSeqContMin

	fusedTapCandidate := srcJerkOnly || srcSeqFinishAssist || (srcAxis && (srcSingle || srcInt1 || srcTapEvent || srcJerkAxis))

	var sourceMask byte
	if srcAxis {
		sourceMask |= candSrcAxis
	}
	if srcSingle {
		sourceMask |= candSrcSingle
	}
	if srcInt1 {
		sourceMask |= candSrcInt1
	}
	if srcTapEvent {
		sourceMask |= candSrcTapEvent
	}
	if srcJerkAxis {
		sourceMask |= candSrcJerkAxis
	}
	if srcJerkOnly {
		sourceMask |= candSrcJerkOnly
	}
	if srcSeqFinishAssist {
		sourceMask |= candSrcSeqAssist
	}

	score := saturatingAddWeight(0, srcAxis, cfg.Weights.AxisWeight)
	score = saturatingAddWeight(score, srcSingle, cfg.Weights.SingleTapWeight)
	score = saturatingAddWeight(score, srcInt1, cfg.Weights.Int1Weight)
	score = saturatingAddWeight(score, srcTapEvent, cfg.Weights.TapEventWeight)
	score = saturatingAddWeight(score, srcJerkAxis, cfg.Weights.JerkAxisWeight)
	score = saturatingAddWeight(score, srcJerkOnly, cfg.Weights.JerkOnlyWeight)
	score = saturatingAddWeight(score, srcSeqFinishAssist, cfg.Weights.SeqFinishWeight)

	base := CandidateAssessment{
		SourceMask:          sourceMask,
		Score:               score,
		CandidateAxis:       features.CandidateAxis,
		AxisMatchesSequence: axisMatchesSequence,
		SeqFinishAssist:     srcSeqFinishAssist,
	}

	if !fusedTapCandidate {
		base.Reason = ReasonCandidateWeak
		return base
	}

	debounceWindowMs := cfg.DebounceMs
	if srcSeqFinishAssist {
		debounceWindowMs = cfg.SeqFinishDebounceMs
	}
	debounced := haveLastCandidate && nowMs-lastCandidateAtMs < debounceWindowMs
	if haveLastCandidate && nowMs < lastCandidateAtMs {
		debounced = false
	}
	if debounced {
		base.Reason = ReasonDebounced
		return base
	}

	motionOnlyCandidate := srcJerkOnly || srcSeqFinishAssist
	if features.GyroVetoActive && motionOnlyCandidate {
		base.SourceMask |= candSrcGyroVeto
		base.Reason = ReasonGyroVeto
		return base
	}

	base.Accepted = true
	base.Reason = ReasonNone
	return base
}

func saturatingAddWeight(score uint16, active bool, weight uint16) uint16 {
	if !active {
		return score
	}
	sum := uint32(score) + uint32(weight)
	if sum > 0xffff {
		return 0xffff
	}
	return uint16(sum)
}
