package balance

import (
	"context"
	"testing"

	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/testutils/inject"
	"go.viam.com/test"
)

func TestMovementSensorIMUConvertsRadiansToDegrees(t *testing.T) {
	ms := &inject.MovementSensor{}
	ms.OrientationFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
		return &spatialmath.EulerAngles{Roll: 0, Pitch: 1, Yaw: 0}, nil
	}
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return spatialmath.AngularVelocity{X: 1, Y: 2, Z: 3}, nil
	}

	imu := &movementSensorIMU{sensor: ms}
	pose, err := imu.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.PitchDeg, test.ShouldAlmostEqual, radToDeg, 1e-9)
	test.That(t, pose.GyroDPS[2], test.ShouldEqual, 3.0)
}

func TestMovementSensorIMUReadyReflectsOrientationError(t *testing.T) {
	ms := &inject.MovementSensor{}
	ms.OrientationFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
		return &spatialmath.EulerAngles{}, nil
	}
	imu := &movementSensorIMU{sensor: ms}
	ready, err := imu.Ready(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ready, test.ShouldBeTrue)
}

func TestNewBoardFootSwitchesMissingPad(t *testing.T) {
	b := &inject.Board{}
	b.AnalogReaderByNameFunc = func(name string) (board.AnalogReader, bool) {
		return nil, false
	}
	_, err := newBoardFootSwitches(b, "pad1", "pad2")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBoardFootSwitchesReadBothPads(t *testing.T) {
	b := &inject.Board{}
	pad1 := &inject.AnalogReader{ReadFunc: func(ctx context.Context, extra map[string]interface{}) (int, error) { return 900, nil }}
	pad2 := &inject.AnalogReader{ReadFunc: func(ctx context.Context, extra map[string]interface{}) (int, error) { return 100, nil }}
	b.AnalogReaderByNameFunc = func(name string) (board.AnalogReader, bool) {
		switch name {
		case "pad1":
			return pad1, true
		case "pad2":
			return pad2, true
		default:
			return nil, false
		}
	}

	fs, err := newBoardFootSwitches(b, "pad1", "pad2")
	test.That(t, err, test.ShouldBeNil)
	v1, v2, err := fs.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v1, test.ShouldEqual, 900.0)
	test.That(t, v2, test.ShouldEqual, 100.0)
}

func TestNewBoardBuzzerNoopWhenPinEmpty(t *testing.T) {
	b := &inject.Board{}
	bz, err := newBoardBuzzer(b, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bz.On(context.Background(), false), test.ShouldBeNil)
}

func TestNewBoardBuzzerWrapsGPIOPin(t *testing.T) {
	var lastSet bool
	b := &inject.Board{}
	b.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
		return &inject.GPIOPin{
			SetFunc: func(ctx context.Context, high bool, extra map[string]interface{}) error {
				lastSet = high
				return nil
			},
		}, nil
	}

	bz, err := newBoardBuzzer(b, "buzzer")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bz.On(context.Background(), false), test.ShouldBeNil)
	test.That(t, lastSet, test.ShouldBeTrue)
	test.That(t, bz.Off(context.Background(), false), test.ShouldBeNil)
	test.That(t, lastSet, test.ShouldBeFalse)
}
