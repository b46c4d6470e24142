package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/manthysbr/isamurai-go/internal/config"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// CreditsAction prints the plan and remaining credits.
func CreditsAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	if _, err := appCtx.RequireTracker(); err != nil {
		return err
	}

	credits, err := appCtx.Client.GetCredits(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.Root().Writer)
	table.Header("Plan", "Credits")
	table.Append(credits.Plan, fmt.Sprintf("%g", credits.Credits))
	table.Render()
	return nil
}

// LoginAction stores the API key encrypted in the local database. With
// --check the key is verified against the API first.
func LoginAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	apiKey := cmd.String("api-key")
	baseURL := cmd.String("base-url")

	if cmd.Bool("check") {
		checkURL := baseURL
		if checkURL == "" {
			checkURL = appCtx.Config.API.BaseURL
		}
		client, err := appCtx.NewClient(apiKey, checkURL)
		if err != nil {
			return err
		}
		credits, err := client.GetCredits(ctx)
		if err != nil {
			return fmt.Errorf("verify api key: %w", err)
		}
		appCtx.Logger.Info("login.check.ok", "plan", credits.Plan, "credits", credits.Credits)
	}

	if err := appCtx.Credentials.Save(ctx, config.Credentials{APIKey: apiKey, BaseURL: baseURL}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "saved api key %s\n", config.MaskSecret(apiKey))
	return nil
}

// ConfigShowAction prints the effective configuration with the API key
// masked.
func ConfigShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	cfg := appCtx.Config
	saved := appCtx.Credentials.Masked()

	keySource := "none"
	switch {
	case os.Getenv("ISAMURAI_API_KEY") != "":
		keySource = "environment"
	case saved.APIKey != "":
		keySource = "login"
	}

	table := tablewriter.NewWriter(cmd.Root().Writer)
	table.Header("Setting", "Value")
	table.Append("api_key", config.MaskSecret(cfg.API.APIKey))
	table.Append("api_key_source", keySource)
	table.Append("base_url", cfg.API.BaseURL)
	table.Append("poll_interval", cfg.API.PollInterval.String())
	table.Append("timeout", cfg.API.Timeout.String())
	table.Append("rate_limit", fmt.Sprintf("%g/s (burst %d)", cfg.API.RateLimit, cfg.API.RateBurst))
	table.Append("validate_responses", fmt.Sprintf("%t", cfg.API.ValidateResponses))
	table.Append("db_path", cfg.Storage.DBPath)
	table.Append("log", cfg.Log.Level+"/"+cfg.Log.Format)
	if !saved.SavedAt.IsZero() {
		table.Append("login_saved_at", formatTime(saved.SavedAt))
	}
	if cfg.API.BaseURL != isamurai.DefaultBaseURL {
		table.Append("default_base_url", isamurai.DefaultBaseURL)
	}
	table.Render()
	return nil
}
