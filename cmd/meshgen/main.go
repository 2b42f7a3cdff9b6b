// Command meshgen evaluates a scene script and writes the generated mesh
// as a Wavefront OBJ. With -watch it keeps running and regenerates the
// mesh every time the script is saved.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chazu/meshforge/internal/config"
	"github.com/chazu/meshforge/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "meshgen:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("meshgen", flag.ContinueOnError)
	flags := config.RegisterFlags(fs)
	output := fs.String("o", "", "Output OBJ path (default: script name with .obj)")
	watch := fs.Bool("watch", false, "Regenerate whenever the script changes")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: meshgen [flags] scene.zy\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one script, got %d", fs.NArg())
	}
	script := fs.Arg(0)
	if *output == "" {
		*output = strings.TrimSuffix(script, ".zy") + ".obj"
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, logger.Log, *output)
	defer app.Close()

	if !*watch {
		if err := app.EvaluateFile(script); err != nil {
			return err
		}
		return app.Wait(ctx)
	}

	// An initial script error is not fatal while watching.
	app.reload(script)
	return app.Watch(ctx, script)
}
