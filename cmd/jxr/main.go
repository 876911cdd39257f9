// Jxr is a code search gateway over ripgrep.
//
// It serves aggregated ripgrep results for the trees (top-level
// directories) of a code root, plus git metadata for the repositories in
// them. The same searches can be run locally from the command line.
//
// Configuration is read from an optional YAML file and JXR_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the server
//	JXR_CODE_DIR=/srv/code jxr serve
//
//	# Search one tree without a server
//	JXR_CODE_DIR=/srv/code jxr search --tree linux 'path:drivers/ type:c kmalloc'
package main

import (
	"fmt"
	"os"

	"github.com/fyrsmithlabs/jxr/internal/config"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional YAML file layered under the environment.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jxr",
	Short: "Code search gateway over ripgrep",
	Long: `jxr searches the source trees under a code root with ripgrep and
returns aggregated, truncated JSON results.

Every tree is a top-level directory of JXR_CODE_DIR. Queries are free text
with optional path: and type: prefixes:

  path:drivers/net type:c skb_put`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables take precedence)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(treesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "jxr by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
