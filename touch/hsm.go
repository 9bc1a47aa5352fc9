package touch

// Constants §4.H marks "authoritative" are reproduced verbatim. The ones
// the spec only bounds approximately (DRAG_START_PX, MOVE_DEADZONE_PX,
// the swipe distance/path thresholds, the post-swipe rearm window, the
// no-move release debounce, and the pre-debounce-motion preservation
// threshold) are fixed at the values below; see the design notes for why.
const (
	debounceDownMs      = 24
	debounceDownAbortMs = 40
	longPressMs         = 750

	dragStartPx   = 12
	dragStartPxSq = dragStartPx * dragStartPx

	moveDeadzonePx   = 4
	moveDeadzonePxSq = moveDeadzonePx * moveDeadzonePx

	releaseDebounceShortMs  = 20
	releaseDebounceNoMoveMs = 96

	swipeMinDistancePx    = 60
	swipeMinPathPx        = 80
	swipeMinNetDistancePx = 40
	swipeAxisDominanceX100 = 180
	swipeMaxDurationMs    = 500

	postSwipeRearmMs       = 250
	postSwipeRearmRadiusPx = 40

	preserveMotionThresholdPx   = 20
	preserveMotionThresholdPxSq = preserveMotionThresholdPx * preserveMotionThresholdPx
)

var postSwipeRearmRadiusSq = int64(postSwipeRearmRadiusPx * postSwipeRearmRadiusPx)

type state int

const (
	stateIdle state = iota
	stateDebounceDown
	statePressed
	stateDragging
	stateDebounceUp
)

// Machine is the per-touch-stream hierarchical state machine of §4.H. It
// consumes normalized samples and emits TouchEvents; there is no locking,
// matching the HAL's single-owner cooperative-scheduling model.
type Machine struct {
	state state

	firstContactAtMs int64
	downPoint        Point
	lastPoint        Point
	maxTravelSq      int64
	moveCount        int
	dragActive       bool
	longPressFired   bool
	dropoutCount     int

	pathSum     Point
	totalPathPx int64

	releaseAtMs int64
	releasePoint Point

	hasPostGuard     bool
	postGuardUntilMs int64
	postGuardPoint   Point

	preDebounceOrigin Point
	preDebounceMaxSq  int64
}

// Step advances the machine by one normalized sample at nowMs, returning
// zero or more events (a single tick can both finalize a release and
// begin a new press).
func (m *Machine) Step(nowMs int64, n Normalized) []Event {
	switch m.state {
	case stateIdle:
		return m.stepIdle(nowMs, n)
	case stateDebounceDown:
		return m.stepDebounceDown(nowMs, n)
	case statePressed:
		return m.stepPressed(nowMs, n)
	case stateDragging:
		return m.stepDragging(nowMs, n)
	case stateDebounceUp:
		return m.stepDebounceUp(nowMs, n)
	default:
		return nil
	}
}

func (m *Machine) stepIdle(nowMs int64, n Normalized) []Event {
	if n.TouchCount != 1 || !n.HasPrimary {
		return nil
	}
	if m.hasPostGuard && nowMs <= m.postGuardUntilMs && distSq(n.Primary, m.postGuardPoint) <= postSwipeRearmRadiusSq {
		return nil
	}
	m.hasPostGuard = false
	m.beginPress(nowMs, n.Primary)
	return nil
}

func (m *Machine) beginPress(nowMs int64, p Point) {
	m.state = stateDebounceDown
	m.firstContactAtMs = nowMs
	m.downPoint = p
	m.lastPoint = p
	m.preDebounceOrigin = p
	m.preDebounceMaxSq = 0
	m.resetPressAccumulators()
}

func (m *Machine) resetPressAccumulators() {
	m.maxTravelSq = 0
	m.moveCount = 0
	m.dragActive = false
	m.longPressFired = false
	m.dropoutCount = 0
	m.pathSum = Point{}
	m.totalPathPx = 0
}

func (m *Machine) stepDebounceDown(nowMs int64, n Normalized) []Event {
	elapsed := nowMs - m.firstContactAtMs

	if n.TouchCount == 0 {
		switch {
		case elapsed >= debounceDownMs && elapsed <= debounceDownAbortMs:
			ev := Event{Kind: Down, TMs: nowMs, Point: m.lastPoint, StartPoint: m.downPoint, TouchCount: 1}
			m.state = stateDebounceUp
			m.releaseAtMs = nowMs
			m.releasePoint = m.lastPoint
			return []Event{ev}
		case elapsed > debounceDownAbortMs:
			m.state = stateIdle
			return nil
		default:
			return nil
		}
	}

	if n.TouchCount == 1 {
		m.lastPoint = n.Primary
		if d := distSq(n.Primary, m.preDebounceOrigin); d > m.preDebounceMaxSq {
			m.preDebounceMaxSq = d
		}
		if elapsed < debounceDownMs {
			return nil
		}
		if m.preDebounceMaxSq < preserveMotionThresholdPxSq {
			m.downPoint = n.Primary
		}
		ev := Event{Kind: Down, TMs: nowMs, Point: n.Primary, StartPoint: m.downPoint, TouchCount: 1}
		m.state = statePressed
		return []Event{ev}
	}

	m.state = stateIdle
	return []Event{{Kind: Cancel, TMs: nowMs, TouchCount: n.TouchCount}}
}

func (m *Machine) stepPressed(nowMs int64, n Normalized) []Event {
	if n.TouchCount == 0 {
		m.releaseAtMs = nowMs
		m.releasePoint = m.lastPoint
		m.state = stateDebounceUp
		return nil
	}
	if n.TouchCount > 1 {
		m.state = stateIdle
		return []Event{{Kind: Cancel, TMs: nowMs, TouchCount: n.TouchCount}}
	}

	m.recordMotion(m.lastPoint, n.Primary)
	m.lastPoint = n.Primary

	if distSq(n.Primary, m.downPoint) >= dragStartPxSq {
		m.dragActive = true
		m.moveCount++
		m.state = stateDragging
		return []Event{m.moveEvent(nowMs, n.Primary)}
	}
	if !m.longPressFired && nowMs-m.firstContactAtMs >= longPressMs {
		m.longPressFired = true
		return []Event{{
			Kind:       LongPress,
			TMs:        nowMs,
			Point:      n.Primary,
			StartPoint: m.downPoint,
			DurationMs: nowMs - m.firstContactAtMs,
			TouchCount: 1,
		}}
	}
	return nil
}

func (m *Machine) stepDragging(nowMs int64, n Normalized) []Event {
	if n.TouchCount == 0 {
		m.releaseAtMs = nowMs
		m.releasePoint = m.lastPoint
		m.state = stateDebounceUp
		return nil
	}
	if n.TouchCount > 1 {
		m.state = stateIdle
		return []Event{{Kind: Cancel, TMs: nowMs, TouchCount: n.TouchCount}}
	}
	if distSq(n.Primary, m.lastPoint) < moveDeadzonePxSq {
		return nil
	}
	m.recordMotion(m.lastPoint, n.Primary)
	m.lastPoint = n.Primary
	m.moveCount++
	return []Event{m.moveEvent(nowMs, n.Primary)}
}

func (m *Machine) stepDebounceUp(nowMs int64, n Normalized) []Event {
	window := m.releaseDebounceWindow()
	elapsed := nowMs - m.releaseAtMs

	if n.TouchCount == 0 {
		if elapsed >= window {
			return m.finalizeRelease(nowMs)
		}
		return nil
	}

	if elapsed <= window {
		m.dropoutCount++
		m.lastPoint = n.Primary
		if m.dragActive || distSq(n.Primary, m.downPoint) >= dragStartPxSq {
			m.dragActive = true
			m.state = stateDragging
		} else {
			m.state = statePressed
		}
		return nil
	}

	events := m.finalizeRelease(nowMs)
	if m.hasPostGuard && nowMs <= m.postGuardUntilMs && distSq(n.Primary, m.postGuardPoint) <= postSwipeRearmRadiusSq {
		return events
	}
	m.hasPostGuard = false
	m.beginPress(nowMs, n.Primary)
	return events
}

func (m *Machine) releaseDebounceWindow() int64 {
	if m.moveCount > 0 || m.maxTravelSq > 0 {
		return releaseDebounceShortMs
	}
	return releaseDebounceNoMoveMs
}

func (m *Machine) recordMotion(prev, next Point) {
	d := next.sub(prev)
	m.pathSum.X += d.X
	m.pathSum.Y += d.Y
	m.totalPathPx += int64(absI32(d.X)) + int64(absI32(d.Y))
	if ds := distSq(next, m.downPoint); ds > m.maxTravelSq {
		m.maxTravelSq = ds
	}
}

func (m *Machine) moveEvent(nowMs int64, p Point) Event {
	return Event{
		Kind:        Move,
		TMs:         nowMs,
		Point:       p,
		StartPoint:  m.downPoint,
		DurationMs:  nowMs - m.firstContactAtMs,
		TouchCount:  1,
		MoveCount:   m.moveCount,
		MaxTravelPx: m.maxTravelSq,
	}
}

// finalizeRelease emits Up plus the tap/swipe outcome and returns the
// machine to Idle.
func (m *Machine) finalizeRelease(nowMs int64) []Event {
	duration := m.releaseAtMs - m.firstContactAtMs
	up := Event{
		Kind:              Up,
		TMs:               m.releaseAtMs,
		Point:             m.releasePoint,
		StartPoint:        m.downPoint,
		DurationMs:        duration,
		MoveCount:         m.moveCount,
		MaxTravelPx:       m.maxTravelSq,
		ReleaseDebounceMs: m.releaseDebounceWindow(),
		DropoutCount:      m.dropoutCount,
	}
	events := []Event{up}

	if dir, ok := m.classifySwipe(); ok {
		events = append(events, Event{
			Kind:       Swipe,
			TMs:        m.releaseAtMs,
			Point:      m.releasePoint,
			StartPoint: m.downPoint,
			DurationMs: duration,
			Direction:  dir,
		})
		m.hasPostGuard = true
		m.postGuardUntilMs = nowMs + postSwipeRearmMs
		m.postGuardPoint = m.releasePoint
	} else if !m.longPressFired {
		events = append(events, Event{
			Kind:       Tap,
			TMs:        m.releaseAtMs,
			Point:      m.releasePoint,
			StartPoint: m.downPoint,
			DurationMs: duration,
		})
	}

	m.state = stateIdle
	m.resetPressAccumulators()
	return events
}

// classifySwipe compares the net displacement against the summed
// per-sample path on each axis, taking whichever signal is stronger
// (defends against late jitter), per §4.H.
func (m *Machine) classifySwipe() (Direction, bool) {
	disp := m.releasePoint.sub(m.downPoint)

	majorX, majorY := disp.X, disp.Y
	if absI32(m.pathSum.X) > absI32(majorX) {
		majorX = m.pathSum.X
	}
	if absI32(m.pathSum.Y) > absI32(majorY) {
		majorY = m.pathSum.Y
	}

	var major, minor int32
	axisIsX := absI32(majorX) >= absI32(majorY)
	if axisIsX {
		major, minor = majorX, majorY
	} else {
		major, minor = majorY, majorX
	}
	majorAbs, minorAbs := absI32(major), absI32(minor)

	distanceOK := majorAbs >= swipeMinDistancePx ||
		(m.totalPathPx >= swipeMinPathPx && majorAbs >= swipeMinNetDistancePx)
	axisDominant := int64(majorAbs)*100 >= int64(minorAbs)*swipeAxisDominanceX100
	durationOK := m.dragActive || (m.releaseAtMs-m.firstContactAtMs) <= swipeMaxDurationMs

	if !distanceOK || !axisDominant || !durationOK {
		return DirNone, false
	}
	if axisIsX {
		if major > 0 {
			return DirRight, true
		}
		return DirLeft, true
	}
	if major > 0 {
		return DirDown, true
	}
	return DirUp, true
}
