package balance

import (
	"testing"
	"time"

	"go.viam.com/test"
)

const (
	faultADC1 = 0.2
	faultADC2 = 0.2
	padDown   = 0.0 // <= faultADCx, pad weighted
	padUp     = 0.8 // > faultADCx, pad lifted
)

// lockGestureStep is one tick of the real nine-step gesture: switch on,
// switch off, lift pad 1, switch off, lift pad 2, switch off, lift pad 1,
// switch off, lift pad 2 (which flips the lock on the last step).
type lockGestureStep struct {
	sw         SwitchState
	adc1, adc2 float64
}

var lockGesture = []lockGestureStep{
	{SwitchOn, padDown, padDown},
	{SwitchOff, padDown, padDown},
	{SwitchOff, padUp, padDown},
	{SwitchOff, padDown, padDown},
	{SwitchOff, padDown, padUp},
	{SwitchOff, padDown, padDown},
	{SwitchOff, padUp, padDown},
	{SwitchOff, padDown, padDown},
	{SwitchOff, padDown, padUp},
}

func TestLockSequenceCompletesNineSteps(t *testing.T) {
	var l lockSequence
	now := time.Duration(0)
	l.reset(now)

	flipped := false
	for i, step := range lockGesture {
		now += 60 * time.Millisecond
		flipped = l.advance(now, step.sw, step.adc1, step.adc2, faultADC1, faultADC2)
		if i < len(lockGesture)-1 {
			test.That(t, flipped, test.ShouldBeFalse)
		}
	}
	test.That(t, flipped, test.ShouldBeTrue)
	test.That(t, l.locked, test.ShouldBeTrue)
}

func TestLockSequenceBreaksOnWrongPattern(t *testing.T) {
	var l lockSequence
	now := time.Duration(0)
	l.reset(now)

	// Step -1 -> 0 on switch-on, 0 -> 1 on switch-off.
	now += 60 * time.Millisecond
	test.That(t, l.advance(now, SwitchOn, padDown, padDown, faultADC1, faultADC2), test.ShouldBeFalse)
	test.That(t, l.step, test.ShouldEqual, 0)
	now += 60 * time.Millisecond
	test.That(t, l.advance(now, SwitchOff, padDown, padDown, faultADC1, faultADC2), test.ShouldBeFalse)
	test.That(t, l.step, test.ShouldEqual, 1)

	// Wrong: step 1 wants pad 1 lifted next, but pad 2 lifts instead - any
	// out-of-sequence reading aborts the gesture back to idle.
	now += 60 * time.Millisecond
	test.That(t, l.advance(now, SwitchOff, padDown, padUp, faultADC1, faultADC2), test.ShouldBeFalse)
	test.That(t, l.step, test.ShouldEqual, -1)
}

func TestLockSequenceRespectsHysteresis(t *testing.T) {
	var l lockSequence
	now := time.Duration(0)
	l.reset(now)

	now += 10 * time.Millisecond // under 50ms hysteresis window
	flipped := l.advance(now, SwitchOn, padDown, padDown, faultADC1, faultADC2)
	test.That(t, flipped, test.ShouldBeFalse)
	test.That(t, l.step, test.ShouldEqual, -1)
}

func TestShouldPersistOnlyOnSentinelChannel(t *testing.T) {
	test.That(t, shouldPersist(99), test.ShouldBeTrue)
	test.That(t, shouldPersist(1), test.ShouldBeFalse)
}

func TestRideStateForOffAndIdle(t *testing.T) {
	test.That(t, rideStateFor(StateFaultDuty, 0), test.ShouldEqual, RideOff)
	test.That(t, rideStateFor(StateStartup, 0), test.ShouldEqual, RideOff)
	test.That(t, rideStateFor(StateRunning, 10), test.ShouldEqual, RideIdle)
}

func TestRideStateForDirectionAndBraking(t *testing.T) {
	test.That(t, rideStateFor(StateRunning, 500), test.ShouldEqual, RideForward)
	test.That(t, rideStateFor(StateRunning, -500), test.ShouldEqual, RideReverse)
	test.That(t, rideStateFor(StateRunningTiltbackDuty, 500), test.ShouldEqual, RideBrakeForward)
	test.That(t, rideStateFor(StateRunningTiltbackDuty, -500), test.ShouldEqual, RideBrakeReverse)
}

func TestRecoverFromFaultRequiresUnlocked(t *testing.T) {
	f := frame{pitch: 0, roll: 0}
	test.That(t, recoverFromFault(f, SwitchOn, true, 5, 5), test.ShouldBeFalse)
	test.That(t, recoverFromFault(f, SwitchOn, false, 5, 5), test.ShouldBeTrue)
}

func TestRecoverFromFaultRequiresCenteredAndOnPad(t *testing.T) {
	f := frame{pitch: 10, roll: 0}
	test.That(t, recoverFromFault(f, SwitchOn, false, 5, 5), test.ShouldBeFalse)

	f = frame{pitch: 0, roll: 0}
	test.That(t, recoverFromFault(f, SwitchHalf, false, 5, 5), test.ShouldBeFalse)
}
