package balance

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/movementsensor"
)

const radToDeg = 180 / math.Pi

// movementSensorIMU adapts a go.viam.com/rdk/components/movementsensor.Sensor
// into an IMU: fusion, filtering, and calibration all live behind whatever
// movement sensor the caller configures.
type movementSensorIMU struct {
	sensor movementsensor.Sensor
}

func (m *movementSensorIMU) Next(ctx context.Context) (Pose, error) {
	ori, err := m.sensor.Orientation(ctx, nil)
	if err != nil {
		return Pose{}, errors.Wrap(err, "reading orientation")
	}
	angVel, err := m.sensor.AngularVelocity(ctx, nil)
	if err != nil {
		return Pose{}, errors.Wrap(err, "reading angular velocity")
	}
	ea := ori.EulerAngles()
	return Pose{
		PitchDeg: ea.Pitch * radToDeg,
		RollDeg:  ea.Roll * radToDeg,
		YawDeg:   ea.Yaw * radToDeg,
		GyroDPS:  [3]float64{angVel.X, angVel.Y, angVel.Z},
	}, nil
}

func (m *movementSensorIMU) Ready(ctx context.Context) (bool, error) {
	// A movement sensor with no accuracy/error reporting is assumed ready
	// the instant it answers an Orientation read.
	_, err := m.sensor.Orientation(ctx, nil)
	return err == nil, err
}

// boardFootSwitches reads the two foot-pad pressure sensors off a board's
// analog readers.
type boardFootSwitches struct {
	pad1, pad2 board.AnalogReader
}

func newBoardFootSwitches(b board.Board, name1, name2 string) (FootSwitches, error) {
	pad1, ok := b.AnalogReaderByName(name1)
	if !ok {
		return nil, errors.Errorf("foot_switch_adc1 %q not found on board", name1)
	}
	fs := &boardFootSwitches{pad1: pad1}
	if name2 != "" {
		pad2, ok := b.AnalogReaderByName(name2)
		if !ok {
			return nil, errors.Errorf("foot_switch_adc2 %q not found on board", name2)
		}
		fs.pad2 = pad2
	}
	return fs, nil
}

func (fs *boardFootSwitches) Read(ctx context.Context) (float64, float64, error) {
	v1, err := fs.pad1.Read(ctx, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading foot_switch_adc1")
	}
	if fs.pad2 == nil {
		return float64(v1), 0, nil
	}
	v2, err := fs.pad2.Read(ctx, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading foot_switch_adc2")
	}
	return float64(v1), float64(v2), nil
}

// boardBuzzer drives a GPIO-attached piezo buzzer.
type boardBuzzer struct {
	pin board.GPIOPin
}

func newBoardBuzzer(b board.Board, pinName string) (Buzzer, error) {
	if pinName == "" {
		return &noopBuzzer{}, nil
	}
	pin, err := b.GPIOPinByName(pinName)
	if err != nil {
		return nil, errors.Wrapf(err, "buzzer_pin %q", pinName)
	}
	return &boardBuzzer{pin: pin}, nil
}

func (bz *boardBuzzer) On(ctx context.Context, force bool) error {
	return bz.pin.Set(ctx, true, nil)
}

func (bz *boardBuzzer) Off(ctx context.Context, force bool) error {
	return bz.pin.Set(ctx, false, nil)
}

func (bz *boardBuzzer) Alert(ctx context.Context, count int, long bool) error {
	for i := 0; i < count; i++ {
		if err := bz.pin.Set(ctx, true, nil); err != nil {
			return err
		}
		if err := bz.pin.Set(ctx, false, nil); err != nil {
			return err
		}
	}
	return nil
}

// noopBuzzer backs configurations with no buzzer pin wired.
type noopBuzzer struct{}

func (noopBuzzer) On(ctx context.Context, force bool) error               { return nil }
func (noopBuzzer) Off(ctx context.Context, force bool) error              { return nil }
func (noopBuzzer) Alert(ctx context.Context, count int, long bool) error { return nil }
