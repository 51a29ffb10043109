package balance

import "time"

const lockHysteresisMS = 50

// lockSequence implements the firmware's nine-step lock/unlock gesture: the
// rider alternates lifting each foot pad in a specific order, each step
// debounced by a 50ms hysteresis window, to lock or unlock the board without
// a physical switch.
type lockSequence struct {
	step   int // -1 (idle) .. 8 (armed)
	since  time.Duration
	locked bool
}

func (l *lockSequence) reset(now time.Duration) {
	l.step = -1
	l.since = now
}

// advance evaluates one tick of the nine-step lock gesture against the
// current switch and foot-pad-ADC readings, returning true the tick the lock
// state actually flips. The gesture alternates switching the foot-pad switch
// off with lifting one pad at a time, off the raw ADC rather than the
// debounced SwitchState: on, off, lift pad 1, off, lift pad 2, off, lift pad
// 1, off, lift pad 2 flips the lock. Any out-of-order reading aborts back to
// idle; the 50ms hysteresis only resets on a step that actually advances or
// aborts, not on every tick that holds steady.
func (l *lockSequence) advance(now time.Duration, sw SwitchState, adc1, adc2, faultADC1, faultADC2 float64) bool {
	if ms(now-l.since) < lockHysteresisMS {
		return false
	}

	pad1Up := adc1 > faultADC1
	pad2Up := adc2 > faultADC2

	prev := l.step
	switch l.step {
	case -1:
		if sw == SwitchOn {
			l.step = 0
		}
	case 0:
		if sw == SwitchOff {
			l.step = 1
		}
	case 1:
		if pad2Up {
			l.step = -1
		} else if pad1Up {
			l.step = 2
		}
	case 2:
		if pad2Up || sw == SwitchOn {
			l.step = -1
		} else if sw == SwitchOff {
			l.step = 3
		}
	case 3:
		if pad1Up {
			l.step = -1
		} else if pad2Up {
			l.step = 4
		}
	case 4:
		if pad1Up || sw == SwitchOn {
			l.step = -1
		} else if sw == SwitchOff {
			l.step = 5
		}
	case 5:
		if pad2Up {
			l.step = -1
		} else if pad1Up {
			l.step = 6
		}
	case 6:
		if pad2Up || sw == SwitchOn {
			l.step = -1
		} else if sw == SwitchOff {
			l.step = 7
		}
	case 7:
		if pad1Up {
			l.step = -1
		} else if pad2Up {
			l.step = 8
		}
	}

	if l.step == prev {
		return false
	}
	l.since = now

	if l.step != 8 {
		return false
	}

	l.step = -1
	l.locked = !l.locked
	return true
}

// shouldPersist reports whether the lock state should be written through a
// ConfigStore, gated on the NRF channel sentinel the firmware repurposes for
// this; the in-memory toggle takes effect regardless.
func shouldPersist(nrfChannel int) bool {
	return nrfChannel == 99
}

// rideStateFor derives the LED-facing RideState from the current balance
// state and direction of travel. This is a supplemented feature: the
// firmware's actual LED drive electronics are out of scope, but a
// deterministic state for a Light collaborator to subscribe to isn't.
func rideStateFor(state BalanceState, erpm float64) RideState {
	switch {
	case state.isFault() || state == StateStartup:
		return RideOff
	case state != StateRunning && state != StateRunningTiltbackDuty && state != StateRunningTiltbackHV && state != StateRunningTiltbackLV:
		return RideIdle
	case absf(erpm) < 50:
		return RideIdle
	case sign(erpm) < 0:
		if state == StateRunningTiltbackDuty {
			return RideBrakeReverse
		}
		return RideReverse
	default:
		if state == StateRunningTiltbackDuty {
			return RideBrakeForward
		}
		return RideForward
	}
}

// recoverFromFault reports whether the fault->running recovery condition
// has been met: the rider must be centered, level, and standing on the pad,
// and the board must not currently be lock-armed.
func recoverFromFault(f frame, sw SwitchState, locked bool, pitchTolerance, rollTolerance float64) bool {
	if locked {
		return false
	}
	return absf(f.pitch) < pitchTolerance && absf(f.roll) < rollTolerance && sw == SwitchOn
}
