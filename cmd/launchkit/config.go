// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/invowk/launchkit/internal/config"
)

type configEntry struct {
	key   string
	value string
}

// newConfigCommand creates the `launchkit config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage launchkit configuration",
		Long: `Manage launchkit configuration.

Configuration is stored in:
  - Linux: ~/.config/launchkit/config.cue
  - macOS: ~/Library/Application Support/launchkit/config.cue
  - Windows: %APPDATA%\launchkit\config.cue

Every key can be overridden with a LAUNCHKIT_ environment variable, e.g.
LAUNCHKIT_CLOUD_REGION for cloud.region.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), app.loadOptions())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.Config.Load(ctx, app.loadOptions())
	if err != nil {
		return err
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	printEntries(w, "", []configEntry{
		{"container_engine", cfg.ContainerEngine.String()},
		{"default_resource", cfg.DefaultResource.String()},
	})
	printEntries(w, "tracking", []configEntry{
		{"base_url", cfg.Tracking.BaseURL},
		{"entity", cfg.Tracking.Entity},
		{"project", cfg.Tracking.Project},
		{"api_key", secretState(cfg.Tracking.APIKey)},
		{"queue_redis_url", cfg.Tracking.QueueRedisURL},
	})
	printEntries(w, "build", []configEntry{
		{"context_dir", cfg.Build.ContextDir},
		{"no_cache", strconv.FormatBool(cfg.Build.NoCache)},
	})
	printEntries(w, "cloud", []configEntry{
		{"config_name", cfg.Cloud.ConfigName},
		{"project", cfg.Cloud.Project},
		{"region", cfg.Cloud.Region},
		{"staging_bucket", cfg.Cloud.StagingBucket},
		{"artifact_repo", cfg.Cloud.ArtifactRepo},
		{"docker_host", cfg.Cloud.DockerHost},
		{"machine_type", cfg.Cloud.MachineType},
		{"submission_timeout", cfg.Cloud.SubmissionTimeout.String()},
		{"resource_poll_interval", cfg.Cloud.ResourcePollInterval.String()},
		{"staging_endpoint", cfg.Cloud.StagingEndpoint},
		{"staging_secret_key", secretState(cfg.Cloud.StagingSecretKey)},
		{"kubeconfig", cfg.Cloud.Kubeconfig},
		{"kube_context", cfg.Cloud.KubeContext},
		{"namespace", cfg.Cloud.Namespace},
	})
	printEntries(w, "ui", []configEntry{
		{"verbose", strconv.FormatBool(cfg.UI.Verbose)},
	})
	return nil
}

// printEntries prints one configuration section. Unset values are shown
// muted.
func printEntries(w io.Writer, section string, entries []configEntry) {
	indent := ""
	if section != "" {
		fmt.Fprintf(w, "%s:\n", CmdStyle.Render(section))
		indent = "  "
	}
	for _, e := range entries {
		value := SuccessStyle.Render(e.value)
		if e.value == "" {
			value = SubtitleStyle.Render("(not set)")
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, e.key, value)
	}
	fmt.Fprintln(w)
}

func secretState(v string) string {
	if v == "" {
		return ""
	}
	return "(set)"
}

func initConfig(app *App, force bool) error {
	path, err := config.WriteDefault(app.flags.configPath, force)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(ctx context.Context, app *App) error {
	loaded, err := config.LoadWithPath(ctx, app.loadOptions())
	if err != nil {
		return err
	}

	defaultPath, err := config.DefaultPath("")
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "Default config file: %s\n", defaultPath)
	if loaded.Path == "" {
		fmt.Fprintf(app.stdout, "Loaded config file: %s\n", SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(app.stdout, "Loaded config file: %s\n", loaded.Path)
	}
	return nil
}
