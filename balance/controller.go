package balance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/operation"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/utils"
)

func init() {
	resource.RegisterService(generic.API, Model, resource.Registration[generic.Service, *Config]{
		Constructor: newController,
	})
}

// Controller is a running balance controller: it owns the hot loop goroutine
// and exposes the current telemetry and terminal commands over DoCommand.
type Controller struct {
	resource.Named
	resource.AlwaysRebuild

	logger logging.Logger
	opMgr  *operation.SingleOperationManager

	imu      IMU
	motor    MotorPort
	switches FootSwitches
	buzzer   Buzzer
	light    Light
	store    ConfigStore

	cfgMu sync.RWMutex
	cfg   Config
	der   Derived

	cancel context.CancelFunc
	done   chan struct{}

	telemetry atomic.Pointer[Telemetry]
	lockForce atomic.Pointer[bool]
}

// newController resolves dependencies and starts the hot loop, mirroring
// tmc5072.newMotor/makeMotor's split between wiring and construction.
func newController(ctx context.Context, deps resource.Dependencies, c resource.Config, logger logging.Logger) (generic.Service, error) {
	conf, err := resource.NativeConfig[*Config](c)
	if err != nil {
		return nil, err
	}

	b, err := board.FromDependencies(deps, conf.Board)
	if err != nil {
		return nil, errors.Wrapf(err, "balance controller %q board dependency", c.ResourceName())
	}
	ms, err := movementsensor.FromDependencies(deps, conf.MovementSensor)
	if err != nil {
		return nil, errors.Wrapf(err, "balance controller %q movement sensor dependency", c.ResourceName())
	}

	ctrl := &Controller{
		Named:  c.ResourceName().AsNamed(),
		logger: logger,
		opMgr:  operation.NewSingleOperationManager(),
		cfg:    *conf,
		der:    Derive(*conf),
		done:   make(chan struct{}),
	}

	ctrl.imu = &movementSensorIMU{sensor: ms}
	ctrl.switches, err = newBoardFootSwitches(b, conf.FootSwitchADC1, conf.FootSwitchADC2)
	if err != nil {
		return nil, err
	}
	ctrl.buzzer, err = newBoardBuzzer(b, conf.BuzzerPin)
	if err != nil {
		return nil, err
	}
	ctrl.motor, err = resolveMotorPort(deps, conf.MotorPortName)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	ctrl.cancel = cancel
	utils.PanicCapturingGo(func() {
		defer close(ctrl.done)
		ctrl.run(loopCtx)
	})

	return ctrl, nil
}

// Close stops the hot loop and waits for it to exit, matching the
// resource.Resource contract the generic service API requires.
func (c *Controller) Close(ctx context.Context) error {
	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// config returns a consistent snapshot of the live Config/Derived pair.
func (c *Controller) config() (Config, Derived) {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg, c.der
}

// run is the 1kHz (or configured Hertz) control loop: read sensors, shape
// the setpoint, run PID, command current, sleep for the remainder of the
// tick. Loop jitter is absorbed the way balance_thread does, via an
// EMA-filtered overshoot subtracted from the next tick's sleep.
func (c *Controller) run(ctx context.Context) {
	cfg, der := c.config()

	ring := &accelRing{}
	fsm := newMachine(der)
	var lastSmoothERPM, lastPitch float64
	var lastYaw float64
	var haveYaw bool
	var filteredDiffTime float64
	var filteredOvershoot float64

	period := time.Duration(der.LoopTime * float64(time.Second))
	start := time.Now()
	var tickStart time.Time

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		if !tickStart.IsZero() {
			diff := now.Sub(tickStart).Seconds()
			filteredDiffTime = 0.03*diff + 0.97*filteredDiffTime
		}
		tickStart = now

		cfg, der = c.config()

		pose, err := c.imu.Next(ctx)
		if err != nil {
			c.logger.CErrorw(ctx, "reading IMU", "error", err)
			time.Sleep(period)
			continue
		}
		mt, err := c.motor.Telemetry(ctx)
		if err != nil {
			c.logger.CErrorw(ctx, "reading motor telemetry", "error", err)
			time.Sleep(period)
			continue
		}
		adc1, adc2, err := c.switches.Read(ctx)
		if err != nil {
			c.logger.CErrorw(ctx, "reading foot switches", "error", err)
			time.Sleep(period)
			continue
		}

		f, smoothERPM := buildFrame(pose, mt, adc1, adc2, lastPitch, der.ERPMSign, lastSmoothERPM, ring)
		lastPitch = f.pitch
		lastSmoothERPM = smoothERPM

		if haveYaw {
			fsm.turnTilt.trackYaw(f.yaw - lastYaw)
		}
		lastYaw, haveYaw = f.yaw, true
		fsm.turnTilt.trackRoll(f.roll)

		sw := classifySwitch(adc1, adc2, cfg.FaultADC1, cfg.FaultADC2)
		if err := updateSwitchBuzzer(ctx, c.buzzer, sw, f.absERPM, cfg.FaultADCHalfERPM, fsm.state); err != nil {
			c.logger.CErrorw(ctx, "driving buzzer", "error", err)
		}

		if forced := c.lockForce.Swap(nil); forced != nil {
			fsm.lock.locked = *forced
		} else if fsm.lock.advance(now.Sub(start), sw, adc1, adc2, cfg.FaultADC1, cfg.FaultADC2) {
			if c.store != nil && shouldPersist(cfg.NRFChannel) {
				locked := fsm.lock.locked
				go func() {
					if err := c.store.SaveLock(context.Background(), locked); err != nil {
						c.logger.Errorw("persisting lock state", "error", err)
					}
				}()
			}
		}

		current, tel := fsm.tick(now.Sub(start), cfg, der, f, sw)

		if tel.Nag {
			if err := c.buzzer.Alert(ctx, 1, false); err != nil {
				c.logger.CErrorw(ctx, "nag alert", "error", err)
			}
		}

		if fsm.state.isRunning() {
			if err := c.motor.SetCurrent(ctx, current); err != nil {
				c.logger.CErrorw(ctx, "commanding motor current", "error", err)
			}
		} else {
			if err := c.motor.Brake(ctx, cfg.BrakeCurrent); err != nil {
				c.logger.CErrorw(ctx, "commanding brake", "error", err)
			}
		}

		if c.light != nil {
			if err := c.light.SetRideState(ctx, rideStateFor(fsm.state, f.erpm)); err != nil {
				c.logger.CDebugw(ctx, "driving light", "error", err)
			}
		}

		tel.LoopTime = filteredDiffTime
		c.telemetry.Store(&tel)

		elapsed := time.Since(tickStart)
		overshoot := elapsed - period
		if der.LoopOvershootAlpha > 0 {
			filteredOvershoot = der.LoopOvershootAlpha*float64(overshoot) + (1-der.LoopOvershootAlpha)*filteredOvershoot
		}
		sleepFor := period - elapsed - time.Duration(filteredOvershoot)
		if sleepFor > 0 {
			utils.SelectContextOrWait(ctx, sleepFor)
		}
	}
}

// DoCommand exposes the terminal-style render/sample/experiment commands and
// the debug snapshot table, since this service has no console of its own.
func (c *Controller) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return handleDoCommand(ctx, c, cmd)
}

// resolveMotorPort fetches the MotorPort dependency by name. Any component
// implementing MotorPort can back the controller; registration details are
// left to that component, not to balance.
func resolveMotorPort(deps resource.Dependencies, name string) (MotorPort, error) {
	if name == "" {
		return nil, errors.New("motor_port is required")
	}
	for resName, res := range deps {
		if resName.Name != name {
			continue
		}
		port, ok := res.(MotorPort)
		if !ok {
			return nil, errors.Errorf("dependency %q does not implement balance.MotorPort", name)
		}
		return port, nil
	}
	return nil, errors.Errorf("motor_port dependency %q not found", name)
}
