// Command tntctl manages recordings and sessions from a terminal. It opens the
// configured session storage directly, so stop the server before using it
// against a shared SQLite file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/logger"
	"github.com/Rrens/tnt-ai/internal/repository"
	"github.com/Rrens/tnt-ai/internal/security"
	"github.com/Rrens/tnt-ai/internal/service"
	"github.com/Rrens/tnt-ai/internal/storage"
	"github.com/Rrens/tnt-ai/internal/transcribe"
)

var (
	configPath string
	verbose    bool
	asJSON     bool
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tntctl",
		Short:        "Record, transcribe and translate voice messages",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				os.Setenv("CONFIG_PATH", configPath)
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./configs/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		newHealthCmd(),
		newTranscribeCmd(),
		newRecordCmd(),
		newSessionsCmd(),
		newKeygenCmd(),
		newHashCodeCmd(),
	)
	return root
}

// app is the wiring shared by commands that touch the backend or storage.
type app struct {
	cfg      *config.Config
	kv       domain.KVStore
	client   *transcribe.Client
	sessions *service.SessionService
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	logCfg.Format = "console"
	logCfg.File = ""
	if !verbose {
		logCfg.Level = zerolog.WarnLevel.String()
	} else {
		logCfg.Level = zerolog.DebugLevel.String()
	}
	if _, err := logger.Setup(logCfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *transcribe.Client {
	return transcribe.NewClient(transcribe.Config{
		BaseURL:           cfg.Backend.BaseURL,
		APIKey:            cfg.Backend.APIKey,
		RequestTimeout:    cfg.Backend.RequestTimeout,
		HealthTimeout:     cfg.Backend.HealthTimeout,
		MaxRetries:        cfg.Backend.MaxRetries,
		RetryWait:         cfg.Backend.RetryWait,
		RetryClientErrors: cfg.Backend.RetryClientErrors,
	})
}

// openApp opens storage and loads the active session.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	kv, err := repository.NewKVStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	var opts []storage.Option
	if cfg.Storage.EncryptionKey != "" {
		encryptor, err := security.NewEncryptor([]byte(cfg.Storage.EncryptionKey))
		if err != nil {
			kv.Close()
			return nil, err
		}
		opts = append(opts, storage.WithCipher(encryptor))
	}

	client := newClient(cfg)
	sessions := service.NewSessionService(storage.NewSessionStore(kv, opts...), client, service.Options{
		Languages:       cfg.Languages.Supported,
		DefaultLanguage: cfg.Languages.Default,
		RequireOnline:   cfg.Backend.RequireOnline,
	})
	sessions.Init(ctx)

	return &app{cfg: cfg, kv: kv, client: client, sessions: sessions}, nil
}

func (a *app) Close() {
	a.sessions.Close()
	if err := a.kv.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close storage")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
