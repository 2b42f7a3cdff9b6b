package config

import "flag"

// Flags are the command line overrides. Zero values leave the loaded
// setting alone.
type Flags struct {
	Config  string
	Debug   bool
	Kernel  string
	Workers int
	LogFile string
}

// RegisterFlags defines the config flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Kernel, "kernel", "", "Boolean kernel: bsp or sdf")
	fs.IntVar(&f.Workers, "workers", 0, "Parallel part builds (0 keeps the configured value)")
	fs.StringVar(&f.LogFile, "log-file", "", "Also write logs to this file")
	return f
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Kernel != "" {
		cfg.Generator.Kernel = f.Kernel
	}
	if f.Workers > 0 {
		cfg.Generator.Workers = f.Workers
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
}
