package main

import (
	"fmt"

	"github.com/aretw0/dialtone/internal/compiler"
	"github.com/aretw0/dialtone/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Export a flow as a Mermaid diagram",
	Long:  `Parses a flow document and prints a Mermaid diagram (graph TD) of its nodes and transitions.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := compiler.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow.Graph, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
