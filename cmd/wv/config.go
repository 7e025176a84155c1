package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values.

Usage:
  wv config                                   # Show all config
  wv config embeddings_path                   # Get specific value
  wv config embeddings_path ~/glove.6B.300d.txt  # Set value

Keys:
  embeddings_path         GloVe text file
  data_dir                Where the snapshot and SQLite mirror live
  default_top_n           Neighbors returned when none is requested (1-1000)
  server.addr             Listen address for 'wv serve'
  server.rate_limit       Requests per second, 0 disables
  server.burst            Rate limiter burst size
  server.allowed_origins  Comma-separated CORS origins

Values shown include WORDVEC_* environment overrides; 'config key value'
writes only the file.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// ConfigUpdateResponse is the response for config set commands.
type ConfigUpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	Path   string `json:"path"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	// No args: show all config
	if len(args) == 0 {
		cfg := mustLoadConfig()
		values := make(map[string]string, len(config.Keys()))
		for _, k := range config.Keys() {
			values[k], _ = cfg.Get(k)
		}
		if humanOutput {
			fmt.Printf("# %s\n", configPath())
			for _, k := range config.Keys() {
				fmt.Printf("%-24s %s\n", k+":", values[k])
			}
		} else {
			outputJSON(values)
		}
		return nil
	}

	key := args[0]

	// One arg: get specific value
	if len(args) == 1 {
		cfg := mustLoadConfig()
		value, err := cfg.Get(key)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{key: value})
		}
		return nil
	}

	// Two args: set value in the file only, without env or flag overrides
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := cfg.Set(key, args[1]); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := cfg.Save(path); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	value, _ := cfg.Get(key)
	if humanOutput {
		fmt.Printf("Set %s = %s in %s\n", key, value, path)
	} else {
		outputJSON(ConfigUpdateResponse{Status: "updated", Key: key, Value: value, Path: path})
	}
	return nil
}
