package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tipbot/tipfilter/internal/chat"
	"github.com/tipbot/tipfilter/internal/config"
	"github.com/tipbot/tipfilter/internal/metrics"
	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/store"
)

var version = "dev"

const (
	inputMessage       = "message"
	inputDeclare       = "declare"
	inputKeywordSet    = "keyword_set"
	inputKeywordRemove = "keyword_remove"
)

// Input is one line read from stdin.
type Input struct {
	Type      string        `json:"type,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	ChatID    int64         `json:"chat_id,omitempty"`
	MessageID int           `json:"message_id,omitempty"`
	Keyword   *KeywordInput `json:"keyword,omitempty"`
}

type KeywordInput struct {
	Key      string          `json:"key"`
	Words    []string        `json:"words,omitempty"`
	Modes    registry.Modes  `json:"modes,omitempty"`
	Target   registry.Target `json:"target,omitempty"`
	Actions  []string        `json:"actions,omitempty"`
	Reply    string          `json:"reply,omitempty"`
	Destruct int             `json:"destruct,omitempty"`
}

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "./config.toml", "Path to the configuration file.")
	useDefaults := flag.Bool("use-defaults", false, "Run with internal defaults if the config file is missing.")
	validateConfig := flag.Bool("validate", false, "Validate the configuration file and exit.")
	dryRun := flag.Bool("dry-run", false, "Log what would be flagged without flagging it.")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if *validateConfig {
		if err := validateConfiguration(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration is INVALID: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is VALID.")
		return
	}
	if err := runApp(*configPath, *useDefaults, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Application run failed: %v\n", err)
		os.Exit(1)
	}
}

func runApp(configPath string, useDefaults bool, dryRun bool) error {
	cfg, defaultsUsed, err := config.Load(configPath, useDefaults)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level.ToSlogLevel()}))
	slog.SetDefault(logger)
	if dryRun {
		slog.Warn("Running in DRY-RUN mode, every message passes.")
	}
	slog.Info("tipfilter starting up", "version", version, "config_path", configPath, "using_defaults", defaultsUsed)

	var db *store.BadgerStore
	if cfg.DB.Path == "" {
		db, err = store.NewInMemoryBadgerStore()
	} else {
		db, err = store.NewBadgerStore(&cfg.DB)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Listen); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	a, err := newApp(ctx, cfg, db, collector)
	if err != nil {
		return err
	}
	defer a.close()

	var saverWG sync.WaitGroup
	saverCtx, stopSaver := context.WithCancel(context.Background())
	saverWG.Add(1)
	go func() {
		defer saverWG.Done()
		a.saver.Run(saverCtx)
	}()
	// The saver outlives ctx so that a final flush happens after the input
	// loop has stopped producing hits.
	defer func() {
		stopSaver()
		saverWG.Wait()
	}()

	go config.StartWatcher(ctx, configPath, a.reload, 0)

	return processInputs(ctx, os.Stdin, os.Stdout, a, dryRun)
}

func processInputs(ctx context.Context, r io.Reader, w io.Writer, a *app, dryRun bool) error {
	linesChan := make(chan []byte)
	errChan := make(chan error, 1)
	encoder := json.NewEncoder(w)

	go func() {
		defer close(errChan)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lineCopy := make([]byte, len(scanner.Bytes()))
			copy(lineCopy, scanner.Bytes())
			select {
			case linesChan <- lineCopy:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errChan <- err
		}
		close(linesChan)
	}()

	slog.Info("Ready to process messages from stdin...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-linesChan:
			if !ok {
				if err := <-errChan; err != nil {
					return err
				}
				slog.Info("Input stream closed, shutting down.")
				return nil
			}

			if len(line) == 0 {
				continue
			}
			var in Input
			if err := json.Unmarshal(line, &in); err != nil {
				slog.Warn("Failed to decode input JSON", "error", err, "raw_line_prefix", prefix(line, 128))
				continue
			}

			decision, err := a.handle(ctx, &in, dryRun)
			if err != nil {
				slog.Error("Error processing input", "type", in.Type, "error", err)
			}
			if decision == nil {
				continue
			}

			if err := encoder.Encode(decision); err != nil {
				if errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EPIPE) {
					return nil
				}
				slog.Error("Failed to write decision to stdout", "error", err)
			}
		}
	}
}

func prefix(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func validateConfiguration(configPath string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	fmt.Printf("Validating configuration file: %s\n", configPath)
	cfg, _, err := config.Load(configPath, false)
	if err != nil {
		return err
	}

	db, err := store.NewInMemoryBadgerStore()
	if err != nil {
		return fmt.Errorf("failed to open scratch database for validation: %w", err)
	}
	defer db.Close()

	a, err := newApp(context.Background(), cfg, db, nil)
	if err != nil {
		return err
	}
	return a.close()
}
