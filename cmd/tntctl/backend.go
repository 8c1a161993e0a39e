package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Rrens/tnt-ai/internal/domain"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the speech backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := newClient(cfg)

			online := client.HealthCheck(cmd.Context())
			if asJSON {
				return printJSON(map[string]any{"online": online, "base_url": client.BaseURL()})
			}

			if !online {
				return fmt.Errorf("backend offline: %s", client.BaseURL())
			}
			fmt.Printf("backend online: %s\n", client.BaseURL())
			return nil
		},
	}
}

func newTranscribeCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe and translate a file without touching any session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if lang == "" {
				lang = cfg.Languages.Default
			}

			result, err := newClient(cfg).TranscribeAndTranslate(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(result)
			}
			fmt.Printf("[%s] %s\n[%s] %s\n", result.DetectedLanguage, result.Transcript, lang, result.Translation)
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "target language")
	return cmd
}

func newRecordCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "record <audio-file>",
		Short: "Add a recording to the active session and wait for its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cannot read recording: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			msg, err := a.sessions.Record(cmd.Context(), path, lang)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(msg)
			}
			printMessage(*msg)
			if msg.Status() == domain.StatusErrored {
				return fmt.Errorf("recording failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "target language (default from config)")
	return cmd
}

func printMessage(m domain.Message) {
	switch m.Status() {
	case domain.StatusErrored:
		fmt.Printf("  ! %s\n", m.Error)
	case domain.StatusPending:
		fmt.Printf("  … processing (%s)\n", m.TargetLanguage)
	default:
		fmt.Printf("  [%s] %s\n", m.DetectedLanguage, m.Transcript)
		fmt.Printf("  [%s] %s\n", m.TargetLanguage, m.Translation)
	}
}
