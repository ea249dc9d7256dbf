// Command modi-ble opens a BLE link to a MODI network module and prints
// every message it sends, one canonical JSON object per line.
//
// Usage:
//
//	modi-ble [--config path] [--device pattern] [--list] [--send]
//
// With --send, canonical messages read from stdin are framed and written
// to the module while listening.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/modi-ble/internal/ble"
	"github.com/chaz8081/modi-ble/internal/ble/protocol"
	"github.com/chaz8081/modi-ble/internal/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/modi-ble/config.yaml)")
	device := flag.String("device", "", "name pattern of the module to open (overrides ble.device)")
	list := flag.Bool("list", false, "list nearby MODI modules and exit")
	send := flag.Bool("send", false, "send canonical messages read from stdin")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	opts := ble.Options{
		Selector:    cfg.BLE.Device,
		NameFilter:  cfg.BLE.NameFilter,
		ScanTimeout: cfg.BLE.ScanTimeout,
	}
	if *device != "" {
		opts.Selector = *device
	}
	session := ble.NewSession(ble.NewTinyGoAdapter(), opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *list {
		names, err := session.ListDevices(ctx)
		if err != nil {
			log.Fatalf("scan: %v", err)
		}
		if len(names) == 0 {
			fmt.Fprintln(os.Stderr, "No MODI modules found")
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	printBanner(cfg, opts)

	if err := session.Open(ctx); err != nil {
		var notFound *ble.DeviceNotFoundError
		if !errors.As(err, &notFound) {
			// A failed open may still hold the connection.
			_ = session.Close()
		}
		log.Fatalf("open: %v", err)
	}

	if *send {
		go func() {
			n, err := forward(os.Stdin, session)
			if err != nil {
				slog.Error("stdin forwarding stopped", "error", err, "sent", n)
				return
			}
			slog.Info("stdin closed", "sent", n)
		}()
	}

	listen(ctx, session, cfg.BLE.PollInterval)

	if err := session.Close(); err != nil && !errors.Is(err, ble.ErrNotConnected) {
		slog.Error("close", "error", err)
	}
	if n := session.Dropped(); n > 0 {
		slog.Warn("malformed notifications dropped", "count", n)
	}
}

// listen prints received messages until ctx is done or the link drops.
func listen(ctx context.Context, session *ble.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			msg, ok := session.Receive()
			if !ok {
				break
			}
			fmt.Println(msg)
		}
		if session.State() != ble.StateConnected {
			slog.Warn("link no longer connected", "state", session.State())
			return
		}
	}
}

// forward reads canonical messages from r, frames them and sends them.
// Unparseable messages are logged and skipped. It returns the number of
// packets sent.
func forward(r io.Reader, session *ble.Session) (int, error) {
	var splitter protocol.Splitter
	buf := make([]byte, 4096)
	sent := 0
	for {
		n, err := r.Read(buf)
		if n > 0 {
			splitter.Write(buf[:n])
			for {
				text, ok := splitter.Next()
				if !ok {
					break
				}
				msg, perr := protocol.Parse(text)
				if perr != nil {
					slog.Warn("skipping message", "error", perr)
					continue
				}
				pkt, ferr := protocol.Frame(msg)
				if ferr != nil {
					slog.Warn("skipping message", "error", ferr)
					continue
				}
				if serr := session.Send(pkt); serr != nil {
					return sent, serr
				}
				sent++
			}
		}
		if err == io.EOF {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or writes and uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	if written, err := config.WriteDefault(); err != nil {
		log.Printf("Could not write default config: %v", err)
	} else if written != "" {
		log.Printf("Default config written to %s", written)
	}
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, opts ble.Options) {
	selector := opts.Selector
	if selector == "" {
		selector = "(first found)"
	}
	fmt.Fprintln(os.Stderr, "=== modi-ble ===")
	fmt.Fprintf(os.Stderr, "  Device:  %s\n", selector)
	fmt.Fprintf(os.Stderr, "  Filter:  %s\n", opts.NameFilter)
	fmt.Fprintf(os.Stderr, "  Scan:    %s\n", opts.ScanTimeout)
	fmt.Fprintf(os.Stderr, "  Log:     %s\n", cfg.LogLevel)
	fmt.Fprintln(os.Stderr, "================")
}
