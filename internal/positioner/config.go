package positioner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AxisConfig holds the drive parameters for one stepper axis. The values
// are written to the control board during Reset.
type AxisConfig struct {
	StepsPerDegree float64 `json:"steps_per_degree"`
	InitialCount   int     `json:"initial_count"`
	RunCurrent     int     `json:"run_current"`
	HoldCurrent    int     `json:"hold_current"`
	Dwell          int     `json:"dwell"`
	SteppingMode   int     `json:"stepping_mode"`
	EncoderMode    int     `json:"encoder_mode"`
	Direction      string  `json:"direction"`
	StartSpeed     int     `json:"start_speed"`
	EndSpeed       int     `json:"end_speed"`
	Slope          int     `json:"slope"`
}

// Config describes one rotator model: which board axis drives which
// chamber angle, plus per-axis drive parameters.
type Config struct {
	Model         string     `json:"model"`
	BaudRate      int        `json:"baud_rate"`
	AzimuthAxis   string     `json:"azimuth_axis"`   // e.g. "X0"
	ElevationAxis string     `json:"elevation_axis"` // e.g. "Y0"
	Azimuth       AxisConfig `json:"azimuth"`
	Elevation     AxisConfig `json:"elevation"`
}

// DefaultD6050Config returns the drive parameters for the D6050 desktop
// rotator, the model the chamber ships with.
func DefaultD6050Config() *Config {
	axis := AxisConfig{
		StepsPerDegree: 800,
		RunCurrent:     150,
		HoldCurrent:    50,
		Dwell:          10,
		SteppingMode:   4,
		EncoderMode:    2,
		Direction:      "+",
		StartSpeed:     1000,
		EndSpeed:       5000,
		Slope:          8,
	}
	return &Config{
		Model:         "D6050",
		BaudRate:      9600,
		AzimuthAxis:   "X0",
		ElevationAxis: "Y0",
		Azimuth:       axis,
		Elevation:     axis,
	}
}

// LoadConfig loads a rotator Config from a JSON file. Fields omitted from
// the file retain the D6050 defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultD6050Config()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the board would reject.
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if len(c.AzimuthAxis) != 2 {
		return fmt.Errorf("azimuth_axis must be an axis letter plus address, got %q", c.AzimuthAxis)
	}
	if len(c.ElevationAxis) != 2 {
		return fmt.Errorf("elevation_axis must be an axis letter plus address, got %q", c.ElevationAxis)
	}
	if c.AzimuthAxis == c.ElevationAxis {
		return fmt.Errorf("azimuth and elevation cannot share axis %q", c.AzimuthAxis)
	}
	for name, a := range map[string]AxisConfig{"azimuth": c.Azimuth, "elevation": c.Elevation} {
		if a.StepsPerDegree <= 0 {
			return fmt.Errorf("%s steps_per_degree must be positive, got %g", name, a.StepsPerDegree)
		}
		if a.Direction != "+" && a.Direction != "-" {
			return fmt.Errorf("%s direction must be \"+\" or \"-\", got %q", name, a.Direction)
		}
	}
	return nil
}
