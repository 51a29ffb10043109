package balance

import "time"

const startGracePeriodMS = 100

// setpointShaper is the second of the two state machines driving a tick: it
// decides, every tick, which SetpointAdjustmentType the controller is in and
// rate-limits the move from the previous setpoint target toward the new one.
type setpointShaper struct {
	mode SetpointAdjustmentType

	target       float64
	interpolated float64

	centeringSince time.Duration
	hvSince        time.Duration

	reverseTotalERPM float64

	// resetIntegral is latched true the tick ReverseStop hands back to
	// TiltbackNone, matching the firmware's integral = 0 at that transition.
	// tick() consumes and clears it since the PID's integral accumulator
	// lives outside setpointShaper.
	resetIntegral bool
}

func (s *setpointShaper) reset(now time.Duration, startPitch float64) {
	s.mode = Centering
	s.target = 0
	s.interpolated = startPitch / 2
	s.centeringSince = now
	s.hvSince = 0
	s.reverseTotalERPM = 0
	s.resetIntegral = false
}

// stepSize returns the per-tick rate limit for the shaper's current mode,
// matching get_setpoint_adjustment_step_size.
func (s *setpointShaper) stepSize(d Derived) float64 {
	switch s.mode {
	case Centering:
		return d.StartupStepSize
	case ReverseStop:
		return d.ReverseStopStepSize
	case TiltbackDuty:
		return d.TiltbackDutyStepSize
	case TiltbackHV:
		return d.TiltbackHVStepSize
	case TiltbackLV:
		return d.TiltbackLVStepSize
	default:
		return d.TiltbackReturnStepSize
	}
}

// calculateSetpointTarget selects the shaper's mode and target angle for this
// tick, in the firmware's priority order: an ongoing centering or reverse-stop
// holds first, then duty, then over/under-voltage, then FET temperature, then
// ordinary running (which is where reverse-stop arms).
func calculateSetpointTarget(
	now time.Duration,
	s *setpointShaper,
	cfg Config,
	d Derived,
	f frame,
	sw SwitchState,
	onTriggerTiltback func(),
) BalanceState {
	if s.mode == Centering {
		// Ignore tiltback during centering: stay here, resetting the grace
		// clock, until the rate-limited setpoint has actually reached its
		// (zero) target.
		if s.interpolated != s.target {
			s.centeringSince = now
			return StateRunning
		}
		if ms(now-s.centeringSince) > startGracePeriodMS || !d.UseSoftStart {
			s.mode = TiltbackNone
		}
		return StateRunning
	}

	if s.mode == ReverseStop {
		s.reverseTotalERPM += f.erpm
		if absf(s.reverseTotalERPM) > d.ReverseTolerance {
			s.target = 10 * (absf(s.reverseTotalERPM) - d.ReverseTolerance) / 50000
		} else if absf(s.reverseTotalERPM) <= d.ReverseTolerance/2 && f.erpm >= 0 {
			s.mode = TiltbackNone
			s.reverseTotalERPM = 0
			s.target = 0
			s.resetIntegral = true
		}
		return StateRunning
	}

	if f.absDuty > cfg.TiltbackDuty {
		s.mode = TiltbackDuty
		s.target = cfg.TiltbackDutyAngle * sign(f.erpm)
		return StateRunningTiltbackDuty
	}

	if f.vIn > cfg.TiltbackHV {
		if s.hvSince == 0 {
			s.hvSince = now
		}
		if f.vIn > cfg.TiltbackHV+1 || ms(now-s.hvSince) > 500 {
			if s.mode != TiltbackHV && onTriggerTiltback != nil {
				onTriggerTiltback()
			}
			s.mode = TiltbackHV
			s.target = cfg.TiltbackHVAngle * sign(f.erpm)
			return StateRunningTiltbackHV
		}
	} else {
		s.hvSince = 0
	}

	if f.vIn < cfg.TiltbackLV {
		if s.mode != TiltbackLV && onTriggerTiltback != nil {
			onTriggerTiltback()
		}
		s.mode = TiltbackLV
		s.target = cfg.TiltbackLVAngle * sign(f.erpm)
		return StateRunningTiltbackLV
	}

	// FET-over-temperature tiltback. The firmware swaps the paired
	// BalanceState/SetpointAdjustmentType here (RUNNING_TILTBACK_LOW_VOLTAGE
	// with setpointAdjustmentType TILTBACK_HV); reproduced as-is, not fixed.
	// The target is the LV angle, ramped at the HV step size.
	if f.fetTempC > d.MCMaxTempFet {
		s.mode = TiltbackHV
		s.target = cfg.TiltbackLVAngle * sign(f.erpm)
		return StateRunningTiltbackLV
	}

	// Normal running: reverse-stop only arms here, once ordinary riding
	// detects the board rolling backward with the feature enabled.
	if d.UseReverseStop && f.erpm < 0 {
		s.mode = ReverseStop
		s.reverseTotalERPM = 0
		return StateRunning
	}

	s.mode = TiltbackNone
	s.target = 0
	return StateRunning
}

// calculateSetpointInterpolated rate-limits the move of the shaper's
// interpolated setpoint toward its target by at most one mode-dependent step
// per tick, matching calculate_setpoint_interpolated.
func calculateSetpointInterpolated(s *setpointShaper, d Derived) float64 {
	step := s.stepSize(d)
	switch {
	case s.interpolated < s.target:
		s.interpolated += step
		if s.interpolated > s.target {
			s.interpolated = s.target
		}
	case s.interpolated > s.target:
		s.interpolated -= step
		if s.interpolated < s.target {
			s.interpolated = s.target
		}
	}
	return s.interpolated
}
