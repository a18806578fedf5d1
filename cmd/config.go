package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/config"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the client configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Display every configuration layer and the merged result",
		Long: `Shows how the final configuration is built by merging layers:
1. Global config (~/.config/bnb/bnb.yml)
2. Project config (bnb.yml, searched upwards)
3. Override files (bnb.override.yml)
4. BNB_* environment variables
This is useful for debugging configuration issues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path := cli.GetOptions(cmd).ConfigFile; path != "" {
				cfg, err := config.Load(path)
				if err != nil {
					return err
				}
				return printLayer(cmd, "CONFIG", path, cfg)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return errors.Wrap(err, errors.KindInternal, "failed to get current directory")
			}
			layered, err := config.LoadLayeredWithLogger(cwd, cli.GetLogger(cmd).Logger)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return render(cmd, layered.Final, nil)
			}

			layers := []struct {
				title  string
				source config.ConfigSource
				cfg    *config.Config
			}{
				{"GLOBAL CONFIG", config.SourceGlobal, layered.Global},
				{"PROJECT CONFIG", config.SourceProject, layered.Project},
				{"OVERRIDE CONFIG", config.SourceOverride, layered.Override},
			}
			for _, l := range layers {
				if err := printLayer(cmd, l.title, layered.FilePaths[l.source], l.cfg); err != nil {
					return err
				}
			}
			return printLayer(cmd, "FINAL MERGED CONFIG", "", layered.Final)
		},
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of bnb.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return errors.Wrap(err, errors.KindInternal, "failed to generate schema")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.AddCommand(show, schema)
	return cmd
}

func printLayer(cmd *cobra.Command, title, path string, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	if cli.GetOptions(cmd).JSONOutput {
		return render(cmd, cfg, nil)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "--- # %s\n", title)
	if path != "" {
		fmt.Fprintf(out, "# Source: %s\n", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to encode configuration")
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// PathsOutput lists the directories bnb reads and writes.
type PathsOutput struct {
	ConfigDir   string `json:"config_dir"`
	StateDir    string `json:"state_dir"`
	CacheDir    string `json:"cache_dir"`
	LogDir      string `json:"log_dir"`
	SessionFile string `json:"session_file"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the directories bnb uses",
		Long: `Print the directories bnb uses. They follow the XDG Base Directory layout
and move together under BNB_HOME when it is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := PathsOutput{
				ConfigDir:   paths.ConfigDir(),
				StateDir:    paths.StateDir(),
				CacheDir:    paths.CacheDir(),
				LogDir:      paths.LogDir(),
				SessionFile: paths.SessionFile(),
			}
			return render(cmd, out, func() string {
				return cli.StatusTable([][2]string{
					{"Config", out.ConfigDir},
					{"State", out.StateDir},
					{"Cache", out.CacheDir},
					{"Logs", out.LogDir},
					{"Session", out.SessionFile},
				})
			})
		},
	}
}
