package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"minddock/internal/app"
	"minddock/internal/config"
	"minddock/internal/logging"
)

var (
	cfgFile     string
	ownerID     string
	application *app.App

	rootCmd = &cobra.Command{
		Use:           "minddock",
		Short:         "Capture memories and search them by meaning",
		Long:          longRoot,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.Setup(cfg.Log.Level, os.Stderr)

			application, err = app.New(cfg, nil)
			if err != nil {
				return err
			}
			application.Init()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if application == nil {
				return nil
			}
			return application.Close()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ~/.config/minddock/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", os.Getenv("MINDDOCK_OWNER_ID"), "owner id (env MINDDOCK_OWNER_ID)")
}

func loadConfig() (*config.AppConfig, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func ownerFlag() (uuid.UUID, error) {
	if ownerID == "" {
		return uuid.Nil, fmt.Errorf("--owner is required")
	}
	id, err := uuid.Parse(ownerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	return id, nil
}

var longRoot = `
minddock stores short personal notes ("memories") in a local SQLite file,
indexes them with vector embeddings and finds them again by meaning.

Embeddings come from OpenAI or Ollama when configured, otherwise from a
local hashing embedder that needs no network.
`
