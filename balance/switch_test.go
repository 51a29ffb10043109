package balance

import (
	"context"
	"testing"

	"go.viam.com/test"
)

type fakeBuzzer struct {
	onCalls, offCalls int
	lastForce         bool
}

func (b *fakeBuzzer) On(ctx context.Context, force bool) error {
	b.onCalls++
	b.lastForce = force
	return nil
}

func (b *fakeBuzzer) Off(ctx context.Context, force bool) error {
	b.offCalls++
	return nil
}

func (b *fakeBuzzer) Alert(ctx context.Context, count int, long bool) error {
	return nil
}

func TestClassifySwitchBothPads(t *testing.T) {
	test.That(t, classifySwitch(1, 1, 0.2, 0.2), test.ShouldEqual, SwitchOn)
	test.That(t, classifySwitch(0, 1, 0.2, 0.2), test.ShouldEqual, SwitchHalf)
	test.That(t, classifySwitch(1, 0, 0.2, 0.2), test.ShouldEqual, SwitchHalf)
	test.That(t, classifySwitch(0, 0, 0.2, 0.2), test.ShouldEqual, SwitchOff)
}

func TestClassifySwitchSinglePadConfigured(t *testing.T) {
	test.That(t, classifySwitch(1, 0, 0.2, 0), test.ShouldEqual, SwitchOn)
	test.That(t, classifySwitch(0, 0, 0.2, 0), test.ShouldEqual, SwitchOff)
	test.That(t, classifySwitch(0, 1, 0, 0.2), test.ShouldEqual, SwitchOn)
}

func TestClassifySwitchNoSwitchConfigured(t *testing.T) {
	test.That(t, classifySwitch(0, 0, 0, 0), test.ShouldEqual, SwitchOn)
}

func TestUpdateSwitchBuzzerForcesOnAtSpeedWithFootOff(t *testing.T) {
	b := &fakeBuzzer{}
	err := updateSwitchBuzzer(context.Background(), b, SwitchOff, 6000, 5000, StateRunning)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.onCalls, test.ShouldEqual, 1)
	test.That(t, b.lastForce, test.ShouldBeTrue)
}

func TestUpdateSwitchBuzzerOffWhenFootOn(t *testing.T) {
	b := &fakeBuzzer{}
	err := updateSwitchBuzzer(context.Background(), b, SwitchOn, 6000, 5000, StateRunning)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.offCalls, test.ShouldEqual, 1)
}

func TestUpdateSwitchBuzzerOffWhenNotRunning(t *testing.T) {
	b := &fakeBuzzer{}
	err := updateSwitchBuzzer(context.Background(), b, SwitchOff, 6000, 5000, StateFaultSwitchFull)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.offCalls, test.ShouldEqual, 1)
	test.That(t, b.onCalls, test.ShouldEqual, 0)
}
