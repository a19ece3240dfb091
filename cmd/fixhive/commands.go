package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/fixhive/internal/config"
	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/service"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload queued solutions, votes and reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, openOptions{remote: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.svc.CloudEnabled() {
			pending, _ := a.svc.PendingCount()
			printWarning("Cloud is not available; %d item(s) stay queued.", pending)
			return nil
		}

		printStep("Syncing up to %d item(s)", limit)
		rep, err := a.svc.Sync(ctx, limit)
		if err != nil {
			return err
		}
		renderReport(os.Stdout, rep)
		if rep.Failed > 0 {
			printWarning("%d item(s) will be retried on the next sync", rep.Failed)
		}
		return nil
	},
}

// --- errors ---

var errorsCmd = &cobra.Command{
	Use:   "errors [id]",
	Short: "List recorded errors, or show one with its solutions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd.Context(), openOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			detail, err := a.svc.ErrorDetail(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(os.Stdout, detail)
			}
			renderDetail(os.Stdout, detail)
			return nil
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		res, err := a.svc.List(service.ListInput{Status: status, Limit: limit})
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, res)
		}
		renderList(os.Stdout, res)
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd.Context(), openOptions{remote: true})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Stats()
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, res)
		}
		renderStats(os.Stdout, res)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		renderConfig(os.Stdout, config.ShowAll(cfg))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

// --- remote ---

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage the community knowledge store",
}

var remoteMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the knowledge store schema to remote.database_url",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Remote.DatabaseURL == "" {
			return fmt.Errorf("remote.database_url is not set (use FIXHIVE_DATABASE_URL or the keychain)")
		}

		printStep("Applying migrations")
		ver, err := remote.RunMigrations(cfg.Remote.DatabaseURL)
		if err != nil {
			return err
		}
		printSuccess("Schema at version %d", ver)
		return nil
	},
}

var remotePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the remote store is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.CloudEnabled() {
			printWarning("No remote store configured.")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RemoteTimeout())
		defer cancel()
		gw, err := remote.Open(ctx, remoteOptions(cfg))
		if err != nil {
			return err
		}
		defer gw.Close()
		if err := gw.Ping(ctx); err != nil {
			return err
		}
		printSuccess("Remote store is reachable")
		return nil
	},
}

func init() {
	syncCmd.Flags().Int("limit", 50, "maximum number of queued items to process")

	errorsCmd.Flags().String("status", "", "filter by status (unresolved, resolved, uploaded)")
	errorsCmd.Flags().Int("limit", 10, "maximum number of errors to list (1-50)")
	errorsCmd.Flags().Bool("json", false, "print JSON")

	statsCmd.Flags().Bool("json", false, "print JSON")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	remoteCmd.AddCommand(remoteMigrateCmd)
	remoteCmd.AddCommand(remotePingCmd)
}
