// Package tripletap implements the triple-tap sensor-fusion engine (§4.I):
// per-tick motion-feature extraction and weighted-vote candidate assessment
// feeding a hierarchical state machine (Idle -> TapSeq1 -> TapSeq2 ->
// TriggeredCooldown, with a SensorFaultBackoff superstate) that emits a
// trigger action on three axis-compatible taps within the configured gap
// windows.
package tripletap

// Thresholds gates candidate acceptance on jerk and gyro magnitude.
type Thresholds struct {
	JerkL1Min        int32
	JerkStrongL1Min  int32
	JerkSeqContMin   int32
	PrevJerkQuietMax int32
	GyroL1SwingMax   int32
}

// Weights are the per-source contributions to a candidate's saturating
// score, reported for telemetry; acceptance itself is gated by Thresholds
// and the debounce/cooldown windows, not by the score.
type Weights struct {
	AxisWeight      uint16
	SingleTapWeight uint16
	Int1Weight      uint16
	TapEventWeight  uint16
	JerkAxisWeight  uint16
	JerkOnlyWeight  uint16
	SeqFinishWeight uint16
}

// Config is the engine's full tuning surface.
type Config struct {
	Enabled bool

	MinGapMs            uint64
	MaxGapMs            uint64
	LastMaxGapMs        uint64
	CooldownMs          uint64
	DebounceMs          uint64
	SeqFinishDebounceMs uint64
	GyroVetoHoldMs      uint64

	Thresholds Thresholds
	Weights    Weights
}

// DefaultConfig reproduces the firmware's shipped tuning.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MinGapMs:            55,
		MaxGapMs:            700,
		LastMaxGapMs:        900,
		CooldownMs:          900,
		DebounceMs:          110,
		SeqFinishDebounceMs: 55,
		GyroVetoHoldMs:      180,
		Thresholds: Thresholds{
			JerkL1Min:        900,
			JerkStrongL1Min:  2_600,
			JerkSeqContMin:   650,
			PrevJerkQuietMax: 1_100,
			GyroL1SwingMax:   14_000,
		},
		Weights: Weights{
			AxisWeight:      30,
			SingleTapWeight: 25,
			Int1Weight:      15,
			TapEventWeight:  20,
			JerkAxisWeight:  10,
			JerkOnlyWeight:  35,
			SeqFinishWeight: 20,
		},
	}
}
