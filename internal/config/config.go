// Package config handles meshgen configuration loading.
package config

import (
	"fmt"
	"time"
)

// Kernel names accepted by generator.kernel.
const (
	KernelBSP = "bsp"
	KernelSDF = "sdf"
)

// Config holds all meshgen settings.
type Config struct {
	Generator GeneratorConfig `yaml:"generator" envconfig:"GENERATOR"`
	Builder   BuilderConfig   `yaml:"builder" envconfig:"BUILDER"`
	Remesh    RemeshConfig    `yaml:"remesh" envconfig:"REMESH"`
	Cloth     ClothConfig     `yaml:"cloth" envconfig:"CLOTH"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
}

// GeneratorConfig holds generation pass settings.
type GeneratorConfig struct {
	Kernel                 string  `yaml:"kernel" envconfig:"KERNEL"`
	Workers                int     `yaml:"workers" envconfig:"WORKERS"` // 0 means GOMAXPROCS
	SmoothShadingThreshold float64 `yaml:"smooth_shading_threshold" envconfig:"SMOOTH_SHADING_THRESHOLD"`
	SmoothIterations       int     `yaml:"smooth_iterations" envconfig:"SMOOTH_ITERATIONS"`
	SelfIntersectionCheck  bool    `yaml:"self_intersection_check" envconfig:"SELF_INTERSECTION_CHECK"`
	// KernelCells is the voxel resolution of the sdf kernel. The bsp kernel
	// falls back to it for input too dense for an exact boolean.
	KernelCells int `yaml:"kernel_cells" envconfig:"KERNEL_CELLS"`
}

// BuilderConfig holds part surface settings.
type BuilderConfig struct {
	Cells int `yaml:"cells" envconfig:"CELLS"`
}

// RemeshConfig bounds the remesher grid.
type RemeshConfig struct {
	MinCells int `yaml:"min_cells" envconfig:"MIN_CELLS"`
	MaxCells int `yaml:"max_cells" envconfig:"MAX_CELLS"`
}

// ClothConfig holds cloth simulation limits.
type ClothConfig struct {
	MaxIterations int     `yaml:"max_iterations" envconfig:"MAX_ITERATIONS"`
	Step          float64 `yaml:"step" envconfig:"STEP"`
}

// EngineConfig holds scene script settings.
type EngineConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LEVEL"`
	LogFile string `yaml:"log_file" envconfig:"FILE"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Generator: GeneratorConfig{
			Kernel:                 KernelBSP,
			SmoothShadingThreshold: 60,
			SmoothIterations:       3,
			SelfIntersectionCheck:  true,
			KernelCells:            64,
		},
		Builder: BuilderConfig{
			Cells: 48,
		},
		Remesh: RemeshConfig{
			MinCells: 8,
			MaxCells: 160,
		},
		Cloth: ClothConfig{
			MaxIterations: 350,
			Step:          0.01,
		},
		Engine: EngineConfig{
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Generator.Kernel {
	case KernelBSP, KernelSDF:
	default:
		return fmt.Errorf("generator.kernel: unknown kernel %q (want %q or %q)", c.Generator.Kernel, KernelBSP, KernelSDF)
	}
	if c.Generator.Workers < 0 {
		return fmt.Errorf("generator.workers: must not be negative, got %d", c.Generator.Workers)
	}
	if c.Generator.SmoothShadingThreshold < 0 || c.Generator.SmoothShadingThreshold > 180 {
		return fmt.Errorf("generator.smooth_shading_threshold: want 0..180 degrees, got %g", c.Generator.SmoothShadingThreshold)
	}
	if c.Builder.Cells < 4 {
		return fmt.Errorf("builder.cells: want at least 4, got %d", c.Builder.Cells)
	}
	if c.Remesh.MinCells <= 0 || c.Remesh.MaxCells < c.Remesh.MinCells {
		return fmt.Errorf("remesh: want 0 < min_cells <= max_cells, got %d and %d", c.Remesh.MinCells, c.Remesh.MaxCells)
	}
	if c.Cloth.MaxIterations < 0 {
		return fmt.Errorf("cloth.max_iterations: must not be negative, got %d", c.Cloth.MaxIterations)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout: must be positive, got %s", c.Engine.Timeout)
	}
	return nil
}
