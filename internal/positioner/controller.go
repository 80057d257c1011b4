// Package positioner drives the chamber's azimuth/elevation rotator over
// a serial link. Commands are single CR-terminated lines addressed to a
// stepper axis; the board answers with CR-terminated status frames.
package positioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrHomeLimit is returned when a move runs into the home limit switch.
	ErrHomeLimit = errors.New("positioner hit home limit")

	// ErrMaxLimit is returned when a move runs into the max limit switch.
	ErrMaxLimit = errors.New("positioner hit max limit")
)

// pollInterval is the delay between move-completion polls. The board
// reports nothing while a move is in flight.
const pollInterval = 100 * time.Millisecond

// Controller issues commands to a rotator control board and tracks the
// current pose. A single Controller owns the port; all methods serialize
// on an internal mutex so the scan worker and jog handlers cannot
// interleave commands.
type Controller struct {
	cfg  *Config
	port Porter

	mu    sync.Mutex
	azDeg float64
	elDeg float64
}

// NewController wraps an open serial port with the given rotator config
// and runs the board initialization sequence.
func NewController(port Porter, cfg *Config) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultD6050Config()
	}
	c := &Controller{
		cfg:  cfg,
		port: port,
	}
	if err := c.Reset(); err != nil {
		return nil, fmt.Errorf("positioner reset: %w", err)
	}
	return c, nil
}

// readLine reads one CR-terminated frame from the port, one byte at a
// time. Serial ports report an expired read timeout as a zero-byte read
// with a nil error, which must end the attempt immediately; a buffered
// reader would retry the blocking read many times before giving up.
func (c *Controller) readLine() (string, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := c.port.Read(b)
		if n > 0 {
			if b[0] == '\r' {
				return string(line), nil
			}
			line = append(line, b[0])
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return string(line), err
		}
		// timeout (n=0, err=nil) or drained test port: no frame pending
		return string(line), nil
	}
}

// write sends a command and reads back one status frame, if any.
func (c *Controller) write(cmd string) (BoardResponse, bool, error) {
	if _, err := c.port.Write([]byte(cmd + "\r")); err != nil {
		return BoardResponse{}, false, fmt.Errorf("write %q: %w", cmd, err)
	}
	line, err := c.readLine()
	if err != nil {
		return BoardResponse{}, false, fmt.Errorf("read reply to %q: %w", cmd, err)
	}
	if line == "" {
		// the board had nothing to say
		return BoardResponse{}, false, nil
	}
	resp, ok := ParseBoardResponse(line)
	return resp, ok, nil
}

// query sends a command and returns the payload of the response frame.
func (c *Controller) query(cmd string) (string, error) {
	resp, ok, err := c.write(cmd)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no response to %q", cmd)
	}
	return resp.Payload, nil
}

// Reset runs the axis initialization sequence: counters, motor currents,
// stepping and encoder modes, speeds, and slope, then zeroes the pose.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, axis := range []struct {
		id  string
		cfg AxisConfig
	}{
		{c.cfg.AzimuthAxis, c.cfg.Azimuth},
		{c.cfg.ElevationAxis, c.cfg.Elevation},
	} {
		cmds := []string{
			fmt.Sprintf("%sN-0cz00", axis.id),
			fmt.Sprintf("%sA%d", axis.id, axis.cfg.InitialCount),
			fmt.Sprintf("%sP3,%d,%d,%d", axis.id, axis.cfg.RunCurrent, axis.cfg.HoldCurrent, axis.cfg.Dwell),
			fmt.Sprintf("%sP1", axis.id),
			fmt.Sprintf("%sH%d", axis.id, axis.cfg.SteppingMode),
			fmt.Sprintf("%sqm%d", axis.id, axis.cfg.EncoderMode),
			fmt.Sprintf("%sqN%s", axis.id, axis.cfg.Direction),
			fmt.Sprintf("%sqE", axis.id),
			fmt.Sprintf("%sB%d", axis.id, axis.cfg.StartSpeed),
			fmt.Sprintf("%sE%d", axis.id, axis.cfg.EndSpeed),
			fmt.Sprintf("%sS%d", axis.id, axis.cfg.Slope),
		}
		for _, cmd := range cmds {
			if _, _, err := c.write(cmd); err != nil {
				return err
			}
		}
	}

	c.azDeg = 0
	c.elDeg = 0
	return nil
}

// Zero declares the current pose to be azimuth 0, elevation 0.
func (c *Controller) Zero() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azDeg = 0
	c.elDeg = 0
}

// CurrentAzimuth returns the tracked azimuth in degrees.
func (c *Controller) CurrentAzimuth() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.azDeg
}

// CurrentElevation returns the tracked elevation in degrees.
func (c *Controller) CurrentElevation() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elDeg
}

// AbortAll issues an immediate stop on every axis.
func (c *Controller) AbortAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cmd := range []string{"X0*", "Y0*", "Z0*"} {
		if _, _, err := c.write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// move starts a relative move on an axis and polls until the board
// reports the move finished or a limit fault.
func (c *Controller) move(ctx context.Context, axis string, steps int) error {
	if _, _, err := c.write(fmt.Sprintf("%sRN%+d", axis, steps)); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, ok, err := c.write("")
		if err != nil {
			return err
		}
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		switch resp.Status {
		case statusFinished:
			return nil
		case statusHome:
			return fmt.Errorf("axis %s: %w", axis, ErrHomeLimit)
		case statusLimit:
			return fmt.Errorf("axis %s: %w", axis, ErrMaxLimit)
		}
	}
}

// MoveAzimuthBy rotates the pan axis by the given number of degrees.
func (c *Controller) MoveAzimuthBy(ctx context.Context, deg float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	steps := -int(c.cfg.Azimuth.StepsPerDegree * deg)
	if err := c.move(ctx, c.cfg.AzimuthAxis, steps); err != nil {
		return err
	}
	c.azDeg += deg
	return nil
}

// MoveAzimuthTo rotates the pan axis to an absolute angle in degrees.
func (c *Controller) MoveAzimuthTo(ctx context.Context, deg float64) error {
	return c.MoveAzimuthBy(ctx, deg-c.CurrentAzimuth())
}

// MoveElevationBy rotates the tilt axis by the given number of degrees.
func (c *Controller) MoveElevationBy(ctx context.Context, deg float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	steps := -int(c.cfg.Elevation.StepsPerDegree * deg)
	if err := c.move(ctx, c.cfg.ElevationAxis, steps); err != nil {
		return err
	}
	c.elDeg += deg
	return nil
}

// MoveElevationTo rotates the tilt axis to an absolute angle in degrees.
func (c *Controller) MoveElevationTo(ctx context.Context, deg float64) error {
	return c.MoveElevationBy(ctx, deg-c.CurrentElevation())
}

// CurrentSteps queries the board's step counter for an axis.
func (c *Controller) CurrentSteps(axis string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.query(axis + "m")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(payload)
	if err != nil {
		return 0, fmt.Errorf("bad step count %q from axis %s: %w", payload, axis, err)
	}
	return n, nil
}

// Close stops all axes and releases the port.
func (c *Controller) Close() error {
	if err := c.AbortAll(); err != nil {
		log.Printf("positioner abort on close: %v", err)
	}
	return c.port.Close()
}
