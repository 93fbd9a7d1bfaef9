// Command kernel boots a kernos kernel, runs the init process and exits
// with its exit code.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	flags "kernos/cmd/utils"
	"kernos/pkg/apps"
	"kernos/pkg/config"
	"kernos/pkg/klog"
	"kernos/pkg/loader"
	"kernos/pkg/task"
	"kernos/pkg/trap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kernel", flag.ContinueOnError)
	configPath := fs.String("config", flags.EnvDefault("KERNOS_CONFIG", ""), "path to a JSON config file (default $KERNOS_CONFIG)")
	logLevel := fs.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	step := fs.Bool("step", false, "wait for a key press before every dispatch")
	if _, err := flags.ParseFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *step {
		cfg.Step = true
	}

	closer, err := klog.InitLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closer.Close()

	code, err := boot(cfg)
	if err != nil {
		slog.Error("kernel stopped", "error", err)
		return 1
	}
	return code
}

func boot(cfg *config.Config) (int, error) {
	reg := loader.NewRegistry()
	names := cfg.Apps
	if len(names) == 0 {
		names = nil
	}
	if err := apps.Register(reg, names); err != nil {
		return 0, err
	}

	k, err := task.NewKernel(task.Options{
		InitProc:         cfg.InitProc,
		Frames:           cfg.Frames,
		KernelStackPages: cfg.KernelStackPages,
		UserStackPages:   cfg.UserStackPages,
	}, reg)
	if err != nil {
		return 0, err
	}
	task.SetDefault(k)
	trap.Install(k, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Step {
		s, err := newStepper(cancel)
		if err != nil {
			return 0, err
		}
		defer s.Close()
		k.AddListener(s)
	}

	if err := k.AddInitProc(); err != nil {
		return 0, err
	}
	slog.Info("kernel booted", "init", cfg.InitProc, "apps", reg.ListApps(), "frames", cfg.Frames)

	if err := k.Run(ctx); err != nil {
		return 0, err
	}
	code := k.InitExitCode()
	slog.Info("kernel halted", "code", code, "free_frames", k.Frames().Free())
	return code, nil
}
