package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chaz8081/focusband/internal/ble"
	"github.com/chaz8081/focusband/internal/config"
	"github.com/chaz8081/focusband/internal/monitor"
	"github.com/chaz8081/focusband/internal/server"
	"github.com/chaz8081/focusband/internal/tui"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/focusband/config.yaml)")
	initConfig := flag.Bool("init", false, "write the default config file and exit")
	headless := flag.Bool("headless", false, "disable the terminal UI (implies server.enabled)")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Println("Config already exists at", config.DefaultConfigPath())
			return
		}
		fmt.Println("Wrote default config to", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *headless {
		cfg.UI.Enabled = false
		cfg.Server.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logOut, closeLog, err := logWriter(cfg)
	if err != nil {
		log.Fatalf("log file: %v", err)
	}
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	if !cfg.UI.Enabled {
		printBanner(cfg)
	}

	peripheral, err := ble.NewPeripheral(cfg.Device.Name, cfg.Device.ServiceUUID)
	if err != nil {
		log.Fatalf("device: %v", err)
	}
	sim := ble.NewSimulator(peripheral)

	grant := cfg.Permission.Grant
	ctrl := monitor.New(sim, monitor.Options{
		ScanDelay:      cfg.Connection.ScanDelay,
		ConnectDelay:   cfg.Connection.ConnectDelay,
		SampleInterval: cfg.Monitor.SampleInterval,
		Permission:     func() bool { return grant },
	})
	defer ctrl.Dispose()
	slog.Info("[MONITOR] controller ready", "device", peripheral.String())

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := server.New(ctrl)
		go func() { serverErr <- srv.ListenAndServe(ctx, cfg.Server.Addr) }()
	}

	if cfg.UI.Enabled {
		if err := tui.Run(ctrl, peripheral); err != nil {
			slog.Error("[TUI] exited with error", "error", err)
		}
		stop()
	} else {
		log.Println("Ready! Connect a client to ws://" + cfg.Server.Addr + "/ws. Ctrl+C to quit.")
		select {
		case <-ctx.Done():
			log.Println("Shutting down...")
		case err := <-serverErr:
			if err != nil {
				ctrl.Dispose()
				log.Fatalf("server: %v", err)
			}
		}
	}

	if cfg.Server.Enabled {
		if err := <-serverErr; err != nil {
			slog.Error("[SERVER] shutdown failed", "error", err)
		}
	}
	log.Println("Goodbye!")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// logWriter picks the slog destination. The UI owns the terminal, so logs
// go to a file whenever it is enabled.
func logWriter(cfg *config.Config) (io.Writer, func(), error) {
	path := cfg.LogFile
	if path == "" && cfg.UI.Enabled {
		path = config.DefaultLogPath()
	}
	if path == "" {
		return os.Stderr, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== focusband ===")
	fmt.Printf("  Device:   %s\n", cfg.Device.Name)
	fmt.Printf("  Phases:   scan %s, connect %s\n", cfg.Connection.ScanDelay, cfg.Connection.ConnectDelay)
	fmt.Printf("  Sampling: every %s\n", cfg.Monitor.SampleInterval)
	if cfg.Server.Enabled {
		fmt.Printf("  Server:   %s\n", cfg.Server.Addr)
	}
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
