package tripletap

// Engine runs the Idle -> TapSeq1 -> TapSeq2 -> TriggeredCooldown tap
// sequence state machine over a stream of SensorFrame ticks, gated by a
// SensorFaultBackoff superstate entered on IMU fault notifications.
//
// There is one Engine per IMU; like touch.Machine it holds all of its
// state inline and is stepped synchronously from the runtime's tick loop,
// matching the firmware's single-owner cooperative-scheduling model.
type Engine struct {
	cfg Config

	state StateID

	prevAccel  accelState
	prevJerkL1 int32

	haveLastCandidate bool
	lastCandidateAtMs uint64

	haveLastBigGyro bool
	lastBigGyroAtMs uint64

	haveSeqLastTap bool
	seqLastTapMs   uint64
	seqAxis        byte
	seqCount       uint8

	haveLastTrigger bool
	lastTriggerAtMs uint64

	trace traceRing
}

// NewEngine constructs an Engine starting in Idle with cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, state: StateIdle}
}

// State reports the engine's current HSM state.
func (e *Engine) State() StateID { return e.state }

// Trace returns the telemetry ring's contents, oldest first.
func (e *Engine) Trace() []TraceSample { return e.trace.Samples() }

func (e *Engine) inCooldown(nowMs uint64) bool {
	if !e.haveLastTrigger {
		return false
	}
	if nowMs < e.lastTriggerAtMs {
		return false
	}
	return nowMs-e.lastTriggerAtMs < e.cfg.CooldownMs
}

func (e *Engine) clearSequence() {
	e.haveSeqLastTap = false
	e.seqAxis = 0
	e.seqCount = 0
}

func (e *Engine) startSequence(nowMs uint64, axis byte) {
	e.haveSeqLastTap = true
	e.seqLastTapMs = nowMs
	e.seqAxis = axis
	e.seqCount = 1
}

// evaluateTick runs feature extraction and candidate assessment for one
// tick, updates the rolling accel/gyro/candidate state, and records a
// trace sample. It does not touch the sequence or HSM state.
func (e *Engine) evaluateTick(stateID StateID, seqCount uint8, frame SensorFrame) CandidateAssessment {
	features, newBigGyro, haveNewBigGyro := computeMotionFeatures(frame, e.prevAccel, e.prevJerkL1, e.lastBigGyroAtMs, e.haveLastBigGyro, &e.cfg)
	e.prevAccel = accelState{valid: true, ax: frame.Ax, ay: frame.Ay, az: frame.Az}
	e.prevJerkL1 = features.JerkL1
	e.lastBigGyroAtMs, e.haveLastBigGyro = newBigGyro, haveNewBigGyro

	assessment := assessTapCandidate(&features, seqCount, e.seqAxis, e.lastCandidateAtMs, e.haveLastCandidate, frame.NowMs, &e.cfg)
	if assessment.Accepted {
		e.lastCandidateAtMs, e.haveLastCandidate = frame.NowMs, true
	}

	windowMs := e.cfg.DebounceMs
	if assessment.SeqFinishAssist {
		windowMs = e.cfg.SeqFinishDebounceMs
	}

	e.pushTrace(TraceSample{
		NowMs:               frame.NowMs,
		StateID:             stateID,
		RejectReason:        assessment.Reason,
		SeqCount:            seqCount,
		TapCandidate:        assessment.Accepted,
		CandidateSourceMask: assessment.SourceMask,
		CandidateScore:      assessment.Score,
		WindowMs:            windowMs,
		CooldownActive:      e.inCooldown(frame.NowMs),
		TapSrc:              features.TapSrc,
		JerkL1:              features.JerkL1,
		MotionVeto:          features.GyroVetoActive,
		GyroL1:              features.GyroL1,
	})

	return assessment
}

func (e *Engine) pushTrace(s TraceSample) { e.trace.push(s) }

func (e *Engine) rejectWithReason(reason RejectReason) {
	last := e.trace.buf[(e.trace.next-1+traceRingSize)%traceRingSize]
	last.RejectReason = reason
	e.trace.buf[(e.trace.next-1+traceRingSize)%traceRingSize] = last
}

// Tick advances the engine by one sensor frame, returning any actions
// triggered this tick (at most one in practice).
func (e *Engine) Tick(frame SensorFrame) []Action {
	switch e.state {
	case StateIdle:
		return e.stepIdle(frame)
	case StateTapSeq1:
		return e.stepTapSeq1(frame)
	case StateTapSeq2:
		return e.stepTapSeq2(frame)
	case StateTriggeredCooldown:
		return e.stepTriggeredCooldown(frame)
	case StateSensorFaultBackoff:
		e.pushTrace(TraceSample{
			NowMs:        frame.NowMs,
			StateID:      StateSensorFaultBackoff,
			RejectReason: ReasonSensorFault,
			TapSrc:       frame.TapSrc,
			GyroL1:       abs32(int32(frame.Gx)) + abs32(int32(frame.Gy)) + abs32(int32(frame.Gz)),
		})
		return nil
	default:
		return nil
	}
}

// ImuFault transitions the engine into SensorFaultBackoff from any active
// state, clearing the in-progress tap sequence.
func (e *Engine) ImuFault(nowMs uint64) {
	if e.state == StateSensorFaultBackoff {
		return
	}
	e.clearSequence()
	e.state = StateSensorFaultBackoff
	e.pushTrace(TraceSample{NowMs: nowMs, StateID: StateSensorFaultBackoff, RejectReason: ReasonSensorFault})
}

// ImuRecovered returns the engine to Idle once a fault has cleared; it is
// a no-op outside SensorFaultBackoff.
func (e *Engine) ImuRecovered(nowMs uint64) {
	if e.state != StateSensorFaultBackoff {
		return
	}
	e.state = StateIdle
	e.pushTrace(TraceSample{NowMs: nowMs, StateID: StateIdle, RejectReason: ReasonNone})
}

func (e *Engine) stepIdle(frame SensorFrame) []Action {
	assessment := e.evaluateTick(StateIdle, 0, frame)
	if !assessment.Accepted {
		return nil
	}
	if e.inCooldown(frame.NowMs) {
		e.rejectWithReason(ReasonCooldownActive)
		e.state = StateTriggeredCooldown
		return nil
	}
	e.startSequence(frame.NowMs, assessment.CandidateAxis)
	e.state = StateTapSeq1
	return nil
}

func (e *Engine) stepTapSeq1(frame SensorFrame) []Action {
	assessment := e.evaluateTick(StateTapSeq1, 1, frame)

	if !e.haveSeqLastTap {
		e.clearSequence()
		e.state = StateIdle
		return nil
	}
	dt := satSub(frame.NowMs, e.seqLastTapMs)

	if dt > e.cfg.MaxGapMs {
		e.clearSequence()
		e.rejectWithReason(ReasonGapTooLong)
		e.state = StateIdle
		return nil
	}
	if !assessment.Accepted {
		return nil
	}
	if !assessment.AxisMatchesSequence {
		e.startSequence(frame.NowMs, assessment.CandidateAxis)
		e.rejectWithReason(ReasonAxisMismatch)
		return nil
	}
	if dt < e.cfg.MinGapMs {
		e.startSequence(frame.NowMs, assessment.CandidateAxis)
		e.rejectWithReason(ReasonGapTooShort)
		return nil
	}

	e.startSequence(frame.NowMs, assessment.CandidateAxis)
	e.seqCount = 2
	e.state = StateTapSeq2
	return nil
}

func (e *Engine) stepTapSeq2(frame SensorFrame) []Action {
	assessment := e.evaluateTick(StateTapSeq2, 2, frame)

	if !e.haveSeqLastTap {
		e.clearSequence()
		e.state = StateIdle
		return nil
	}
	dt := satSub(frame.NowMs, e.seqLastTapMs)

	if dt > e.cfg.LastMaxGapMs {
		e.clearSequence()
		e.rejectWithReason(ReasonGapTooLong)
		e.state = StateIdle
		return nil
	}
	if !assessment.Accepted {
		return nil
	}
	if !assessment.AxisMatchesSequence {
		e.startSequence(frame.NowMs, assessment.CandidateAxis)
		e.rejectWithReason(ReasonAxisMismatch)
		e.state = StateTapSeq1
		return nil
	}
	if dt < e.cfg.MinGapMs {
		e.startSequence(frame.NowMs, assessment.CandidateAxis)
		e.rejectWithReason(ReasonGapTooShort)
		e.state = StateTapSeq1
		return nil
	}

	e.clearSequence()
	if e.inCooldown(frame.NowMs) {
		e.rejectWithReason(ReasonCooldownActive)
		e.state = StateTriggeredCooldown
		return nil
	}

	e.lastTriggerAtMs, e.haveLastTrigger = frame.NowMs, true
	e.state = StateTriggeredCooldown
	return []Action{{Kind: ActionTrigger, Score: assessment.Score, SourceMask: assessment.SourceMask}}
}

func (e *Engine) stepTriggeredCooldown(frame SensorFrame) []Action {
	assessment := e.evaluateTick(StateTriggeredCooldown, 0, frame)
	if !e.inCooldown(frame.NowMs) {
		e.state = StateIdle
		return nil
	}
	if assessment.Accepted {
		e.rejectWithReason(ReasonCooldownActive)
	}
	return nil
}

// satSub is a saturating (floor-at-zero) subtraction, mirroring Rust's
// saturating_sub for the monotonic millisecond clock.
func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
