package balance

import "time"

// machine ties every per-tick component together into the single balance
// state machine: fault detection, setpoint shaping, nose/ATR/turn-tilt
// lean, and the gain-scheduled PID, in the same order balance_thread
// evaluates them.
type machine struct {
	state BalanceState

	faults   faultTimers
	setpoint setpointShaper
	nose     noseAngling
	torque   torqueTilt
	turnTilt turnTilt
	pid      pidState
	lock     lockSequence

	inactivitySince time.Duration
	haveInactivity  bool

	startedAt time.Duration
}

func newMachine(d Derived) *machine {
	m := &machine{state: StateStartup}
	m.torque.configure(d, 1)
	return m
}

// resetVars re-initializes every per-ride accumulator, matching reset_vars.
func (m *machine) resetVars(now time.Duration, cfg Config, d Derived, pitch float64) {
	m.setpoint.reset(now, pitch)
	m.nose.reset()
	m.torque.reset()
	m.torque.configure(d, cfg.Hertz)
	m.turnTilt.reset()
	m.pid.reset(d, pitch)
	m.faults = faultTimers{switchFull: now, switchHalf: now, anglePitch: now, angleRoll: now, duty: now, reverse: now}
	m.lock.reset(now)
	m.state = StateRunning
	m.haveInactivity = false
}

// Telemetry is the read-only snapshot a caller can pull over DoCommand; it
// carries the internal state that debugSnapshot reports in its 13-entry
// debug table.
type Telemetry struct {
	State     BalanceState
	Mode      SetpointAdjustmentType
	Pitch     float64
	Roll      float64
	ERPM      float64
	Duty      float64
	Current   float64
	Setpoint  float64
	ATR       float64
	TurnTilt  float64
	NoseAngle float64
	Integral   float64
	SSS        int
	Locked     bool
	LoopTime   float64
	AccelCheck float64
	Nag        bool
}

// checkNag reports whether the controller has sat idle in a fault state past
// ShutdownMode's timeout, and resets the timer so the nag repeats on the same
// interval rather than firing once, matching app_balance's shutdown nag beep.
func (m *machine) checkNag(now time.Duration, d Derived) bool {
	if !m.haveInactivity || d.InactivityTimeoutSeconds <= 0 {
		return false
	}
	if ms(now-m.inactivitySince) < d.InactivityTimeoutSeconds*1000 {
		return false
	}
	m.inactivitySince = now
	return true
}

// tick runs one full control cycle and returns the commanded motor current
// (amps, meaningful only while the state is a Running variant) plus the
// telemetry snapshot for that tick.
func (m *machine) tick(now time.Duration, cfg Config, d Derived, f frame, sw SwitchState) (float64, Telemetry) {
	switch m.state {
	case StateStartup:
		if absf(f.pitch) < cfg.StartupPitchTolerance && absf(f.roll) < cfg.StartupRollTolerance && sw == SwitchOn {
			m.resetVars(now, cfg, d, f.pitch)
		}
		return 0, m.snapshot(cfg, f)

	case StateFaultDuty:
		// A duty fault needs another, independent fault to clear it: duty
		// itself would clear the instant the motor pauses and immediately
		// spool back up, making the fault pointless. Force a fresh
		// fault re-evaluation every tick, ignoring every fault's debounce
		// timer, so a genuine switch/angle/reverse fault can still pre-empt
		// it even with duty still tripped.
		if next, faulted := checkFaults(now, &m.faults, cfg, f, sw, m.setpoint.mode,
			m.setpoint.reverseTotalERPM, d.ReverseTolerance, d.AllowHighSpeedFullSwitchFaults, true); faulted && next != StateFaultDuty {
			m.state = next
		}
		tel := m.snapshot(cfg, f)
		tel.Nag = m.checkNag(now, d)
		return 0, tel

	case StateFaultStartup, StateFaultAnglePitch, StateFaultAngleRoll,
		StateFaultSwitchHalf, StateFaultSwitchFull, StateFaultReverse:
		if recoverFromFault(f, sw, m.lock.locked, cfg.StartupPitchTolerance, cfg.StartupRollTolerance) {
			m.resetVars(now, cfg, d, f.pitch)
			return 0, m.snapshot(cfg, f)
		}
		tel := m.snapshot(cfg, f)
		tel.Nag = m.checkNag(now, d)
		return 0, tel
	}

	if next, faulted := checkFaults(now, &m.faults, cfg, f, sw, m.setpoint.mode,
		m.setpoint.reverseTotalERPM, d.ReverseTolerance, d.AllowHighSpeedFullSwitchFaults, false); faulted {
		m.state = next
		m.inactivitySince = now
		m.haveInactivity = true
		return 0, m.snapshot(cfg, f)
	}

	m.state = calculateSetpointTarget(now, &m.setpoint, cfg, d, f, sw, nil)
	if m.setpoint.resetIntegral {
		m.pid.integral = 0
		m.setpoint.resetIntegral = false
	}
	setpoint := calculateSetpointInterpolated(&m.setpoint, d)

	suppressAngle := cfg.TorquetiltAngleLimit
	nose := m.nose.apply(cfg, d, f, suppressAngle)
	setpoint += nose

	if m.setpoint.mode >= TiltbackNone {
		tt, cutback := m.turnTilt.apply(cfg, d, f, nose, m.torque.interpolated, 0.2, 1.0)
		atr := m.torque.apply(cfg, d, f, cutback, setpoint, m.pid.value, m.pid.lastProportional)
		setpoint += atr + tt
	}

	current := m.pid.step(cfg, d, f, setpoint, m.setpoint.mode, m.torque.interpolated, cfg.Hertz)

	tel := m.snapshot(cfg, f)
	tel.Setpoint = setpoint
	tel.ATR = m.torque.interpolated
	tel.TurnTilt = m.turnTilt.interpolated
	tel.NoseAngle = nose
	tel.Integral = m.pid.integral
	tel.SSS = int(m.torque.sss)
	tel.Current = current

	return current, tel
}

func (m *machine) snapshot(cfg Config, f frame) Telemetry {
	return Telemetry{
		State:      m.state,
		Mode:       m.setpoint.mode,
		Pitch:      f.pitch,
		Roll:       f.roll,
		ERPM:       f.erpm,
		Duty:       f.duty,
		Locked:     m.lock.locked,
		AccelCheck: f.accelCheck,
	}
}
