package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/jxr/internal/logging"
	"github.com/fyrsmithlabs/jxr/internal/tree"
	"github.com/spf13/cobra"
)

var (
	// searchTree is the tree searched by the search command.
	searchTree string
	// searchIndent pretty-prints the search output.
	searchIndent bool
)

func init() {
	searchCmd.Flags().StringVarP(&searchTree, "tree", "t", "", "tree to search (required)")
	searchCmd.Flags().BoolVar(&searchIndent, "indent", false, "indent the JSON output")
	_ = searchCmd.MarkFlagRequired("tree")
}

// searchCmd runs one search locally and prints the events the server would return.
var searchCmd = &cobra.Command{
	Use:   "search --tree TREE QUERY...",
	Short: "Search a tree without starting a server",
	Long: `Search a tree and print the aggregated ripgrep events as JSON.

The query words are joined with spaces, so quoting is optional.

Examples:
  # Search for a symbol
  jxr search --tree linux kmalloc

  # Restrict to a path and a file type
  jxr search --tree linux path:drivers/net type:c skb_put`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc := newService(cfg, logging.NewNop(), nil)
		res, err := svc.Search(cmd.Context(), searchTree, strings.Join(args, " "))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if searchIndent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(res)
	},
}

// treesCmd lists the searchable trees.
var treesCmd = &cobra.Command{
	Use:   "trees",
	Short: "List the trees under the code root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		names, err := tree.List(cfg.CodeDir)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}
