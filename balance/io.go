// Package balance implements a hard-real-time setpoint/PID balance
// controller for a self-balancing single-wheel electric vehicle. IMU fusion,
// motor commutation, CAN transport, persistent configuration storage, and
// LED/buzzer drivers are treated as external collaborators, supplied through
// the small interfaces in this file.
package balance

import "context"

// Pose is the fused inertial estimate the controller consumes each tick.
// Fusion itself is out of scope; IMU is expected to wrap something like
// go.viam.com/rdk/components/movementsensor and convert its orientation and
// angular velocity into this shape.
type Pose struct {
	PitchDeg float64
	RollDeg  float64
	YawDeg   float64
	GyroDPS  [3]float64
}

// IMU is the external inertial estimate source.
type IMU interface {
	Next(ctx context.Context) (Pose, error)
	// Ready reports whether the IMU has completed its own startup/calibration
	// sequence. The balance loop does not call it: the machine leaves
	// StateStartup for StateRunning as soon as the board is level and the
	// switch reads On, and never enters StateFaultStartup from StateStartup.
	Ready(ctx context.Context) (bool, error)
}

// MotorTelemetry is a snapshot of the motor's electrical state, read once per
// tick. Motor commutation (FOC) and CAN transport live entirely behind the
// implementation of MotorPort.
type MotorTelemetry struct {
	ERPM       float64
	DutyCycle  float64
	Current    float64
	FetTempC   float64
	VIn        float64
	Position   float64
	SmoothERPM float64
}

// MotorPort is the external collaborator that turns a commanded current into
// motor action and reports telemetry back. SetCurrent is only called while
// BalanceState is one of the Running* states (invariant (e) in the data
// model); in every other state the loop calls Brake instead.
type MotorPort interface {
	Telemetry(ctx context.Context) (MotorTelemetry, error)
	SetCurrent(ctx context.Context, amps float64) error
	Brake(ctx context.Context, amps float64) error
}

// FootSwitches reads the two analog foot-pad voltages.
type FootSwitches interface {
	Read(ctx context.Context) (adc1, adc2 float64, err error)
}

// Buzzer is the external audible-alert collaborator.
type Buzzer interface {
	On(ctx context.Context, force bool) error
	Off(ctx context.Context, force bool) error
	Alert(ctx context.Context, count int, long bool) error
}

// Light is the external LED driver collaborator; the controller only ever
// reports the RideState it computed, the actual drive electronics are out of
// scope.
type Light interface {
	SetRideState(ctx context.Context, state RideState) error
}

// ConfigStore persists the lock flag across restarts. Out of scope to
// implement durably; a real module backs this with Viam's resource config
// layer or equivalent.
type ConfigStore interface {
	SaveLock(ctx context.Context, locked bool) error
}
