package balance

import "time"

// faultTimers holds the per-fault-kind timers described in the data model
// (§3): each is reset whenever its precondition is not met, and the fault
// fires once the precondition has held continuously for its configured
// delay.
type faultTimers struct {
	switchFull time.Duration
	switchHalf time.Duration
	anglePitch time.Duration
	angleRoll  time.Duration
	duty       time.Duration
	reverse    time.Duration
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// checkFaults evaluates every fault precondition in the order the firmware
// does (switch order doesn't matter functionally, UX wants switch checked
// before angle). It returns the fault state to transition to and whether a
// fault fired; the first fault detected wins and short-circuits the rest.
func checkFaults(
	now time.Duration,
	t *faultTimers,
	cfg Config,
	f frame,
	sw SwitchState,
	mode SetpointAdjustmentType,
	reverseTotalERPM, reverseTolerance float64,
	allowHighSpeedFullSwitchFaults bool,
	ignoreTimers bool,
) (BalanceState, bool) {
	if sw == SwitchOff {
		switch {
		case ms(now-t.switchFull) > cfg.FaultDelaySwitchFull || ignoreTimers:
			return StateFaultSwitchFull, true
		case f.absERPM < cfg.FaultADCHalfERPM*4 && ms(now-t.switchFull) > cfg.FaultDelaySwitchHalf:
			return StateFaultSwitchFull, true
		case f.absERPM < cfg.FaultADCHalfERPM && absf(f.pitch) > 15:
			return StateFaultSwitchFull, true
		case f.absERPM > 3000 && !allowHighSpeedFullSwitchFaults:
			t.switchFull = now
		}
	} else {
		t.switchFull = now
	}

	if mode == ReverseStop {
		switch {
		case sw == SwitchOff:
			return StateFaultSwitchFull, true
		case absf(f.pitch) > 15:
			return StateFaultReverse, true
		case absf(f.pitch) > 10 && ms(now-t.reverse) > 500:
			return StateFaultReverse, true
		case absf(f.pitch) > 5 && ms(now-t.reverse) > 1000:
			return StateFaultReverse, true
		case absf(reverseTotalERPM) > reverseTolerance*3:
			return StateFaultReverse, true
		}
		if absf(f.pitch) < 5 {
			t.reverse = now
		}
	}

	if (sw == SwitchHalf || sw == SwitchOff) && f.absERPM < cfg.FaultADCHalfERPM {
		if ms(now-t.switchHalf) > cfg.FaultDelaySwitchHalf || ignoreTimers {
			return StateFaultSwitchHalf, true
		}
	} else {
		t.switchHalf = now
	}

	if absf(f.pitch) > cfg.FaultPitch {
		if ms(now-t.anglePitch) > cfg.FaultDelayPitch || ignoreTimers {
			return StateFaultAnglePitch, true
		}
	} else {
		t.anglePitch = now
	}

	if absf(f.roll) > cfg.FaultRoll {
		if ms(now-t.angleRoll) > cfg.FaultDelayRoll || ignoreTimers {
			return StateFaultAngleRoll, true
		}
	} else {
		t.angleRoll = now
	}

	if f.absDuty > cfg.FaultDuty {
		if ms(now-t.duty) > cfg.FaultDelayDuty || ignoreTimers {
			return StateFaultDuty, true
		}
	} else {
		t.duty = now
	}

	return StateRunning, false
}
