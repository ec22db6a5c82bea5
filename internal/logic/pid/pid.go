// Package pid implements a discrete-time PID position controller.
package pid

// Gains are the proportional, integral and derivative coefficients.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Terms is the breakdown of the most recent output.
type Terms struct {
	Error      float64
	P, I, D    float64
	Integral   float64
	Derivative float64
	Output     float64
}

// Controller converts (setpoint, measured position) into a drive command.
// Output is unclamped; the drive actuator saturates it.
type Controller struct {
	setpoint  float64
	gains     Gains
	integral  float64
	prevError float64
	first     bool
	last      Terms
}

// New creates a controller. The first Run after New or Reset suppresses the
// derivative term because no previous error exists yet.
func New(setpoint float64, g Gains) *Controller {
	return &Controller{
		setpoint: setpoint,
		gains:    g,
		first:    true,
	}
}

// Run computes the drive command for one control period of dtMs milliseconds.
// On the first call since reset, and whenever dtMs <= 0, neither the integral
// nor the derivative is updated.
func (c *Controller) Run(measured float64, dtMs float64) float64 {
	err := c.setpoint - measured

	derivative := 0.0
	if !c.first && dtMs > 0 {
		dt := dtMs / 1000
		derivative = (err - c.prevError) / dt
		c.integral += err * dt
	}

	t := Terms{
		Error:      err,
		P:          c.gains.Kp * err,
		I:          c.gains.Ki * c.integral,
		D:          c.gains.Kd * derivative,
		Integral:   c.integral,
		Derivative: derivative,
	}
	t.Output = t.P + t.I + t.D

	c.prevError = err
	c.first = false
	c.last = t
	return t.Output
}

// SetSetpoint changes the target. Integral and derivative history are kept;
// call Reset when starting an unrelated move.
func (c *Controller) SetSetpoint(sp float64) {
	c.setpoint = sp
}

// SetGains changes the coefficients. History is kept.
func (c *Controller) SetGains(g Gains) {
	c.gains = g
}

// Reset clears the integral, the previous error and re-arms derivative
// suppression for the next Run.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.first = true
	c.last = Terms{}
}

// Retarget sets gains and setpoint and resets history in one call.
func (c *Controller) Retarget(sp float64, g Gains) {
	c.SetGains(g)
	c.SetSetpoint(sp)
	c.Reset()
}

func (c *Controller) Setpoint() float64 { return c.setpoint }
func (c *Controller) Gains() Gains      { return c.gains }
func (c *Controller) Last() Terms       { return c.last }
