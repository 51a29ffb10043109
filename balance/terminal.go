package balance

import (
	"context"

	"github.com/pkg/errors"
)

// DoCommand verbs, in place of the firmware's terminal_* console commands:
// this module has no console of its own, so the same three operations are
// exposed through the generic service's DoCommand instead.
const (
	cmdRender     = "render"
	cmdSample     = "sample"
	cmdExperiment = "experiment"
	cmdDebug      = "debug"
	cmdSetLock    = "set_lock"
)

// handleDoCommand dispatches the handful of operator commands the balance
// controller exposes, matching terminal_render/terminal_sample/
// terminal_experiment/app_balance_get_debug's role in the firmware.
func handleDoCommand(ctx context.Context, c *Controller, cmd map[string]interface{}) (map[string]interface{}, error) {
	verb, _ := cmd["command"].(string)
	switch verb {
	case cmdRender, cmdDebug:
		return c.debugSnapshot(), nil
	case cmdSample:
		return c.sampleOnce()
	case cmdSetLock:
		locked, ok := cmd["locked"].(bool)
		if !ok {
			return nil, errors.New("set_lock requires a boolean \"locked\" field")
		}
		return c.setLock(ctx, locked)
	case cmdExperiment:
		return c.experiment(cmd)
	default:
		return nil, errors.Errorf("unknown balance command %q", verb)
	}
}

// debugSnapshot returns a 13-entry numbered debug table built from the
// latest Telemetry, plus the lock, loop-time, accel-check and nag fields. The
// numbering is this module's own: motor position, the filtered torque-tilt
// current, the derivative term and the loop-overshoot figures are not
// reported.
func (c *Controller) debugSnapshot() map[string]interface{} {
	tel := c.telemetry.Load()
	if tel == nil {
		return map[string]interface{}{"ready": false}
	}
	return map[string]interface{}{
		"1_state":      tel.State.String(),
		"2_mode":       tel.Mode.String(),
		"3_pitch":      tel.Pitch,
		"4_roll":       tel.Roll,
		"5_erpm":       tel.ERPM,
		"6_duty":       tel.Duty,
		"7_current":    tel.Current,
		"8_setpoint":   tel.Setpoint,
		"9_atr":        tel.ATR,
		"10_turntilt":  tel.TurnTilt,
		"11_noseangle": tel.NoseAngle,
		"12_integral":  tel.Integral,
		"13_sss":       tel.SSS,
		"locked":       tel.Locked,
		"loop_time":    tel.LoopTime,
		"accel_check":  tel.AccelCheck,
		"nag":          tel.Nag,
	}
}

// sampleOnce returns a single telemetry reading, analogous to
// terminal_sample's one-shot capture (vs. a continuous stream).
func (c *Controller) sampleOnce() (map[string]interface{}, error) {
	tel := c.telemetry.Load()
	if tel == nil {
		return nil, errors.New("no telemetry available yet")
	}
	return c.debugSnapshot(), nil
}

// setLock forces the lock flag without requiring the physical nine-step
// gesture, guarded the same way tmc5072.GoTo guards a long-running op. The
// override is handed to the hot loop via lockForce rather than touched
// directly, since the running machine lives entirely inside the loop
// goroutine.
func (c *Controller) setLock(ctx context.Context, locked bool) (map[string]interface{}, error) {
	ctx, done := c.opMgr.New(ctx)
	defer done()

	c.lockForce.Store(&locked)

	c.cfgMu.Lock()
	cfg := c.cfg
	c.cfgMu.Unlock()

	if c.store != nil && shouldPersist(cfg.NRFChannel) {
		if err := c.store.SaveLock(ctx, locked); err != nil {
			return nil, errors.Wrap(err, "persisting lock state")
		}
	}
	return map[string]interface{}{"locked": locked}, nil
}

// experiment is a stand-in for the firmware's free-form terminal_experiment
// hook: it just echoes the request back, since there is no experimental
// codepath wired up yet.
func (c *Controller) experiment(cmd map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"echo": cmd}, nil
}
