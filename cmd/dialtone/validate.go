package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/dialtone/internal/compiler"
	"github.com/aretw0/dialtone/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file or dir]...",
	Short: "Check flow documents for structural errors",
	Long: `Parses every flow document given (or found in the given directories) and
reports dangling transitions, unreachable nodes and other structural problems.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// errInvalidFlows is returned after every invalid document has been reported.
var errInvalidFlows = errors.New("validation failed")

func runValidate(out io.Writer, args []string) error {
	flows, err := loadFlows(args)
	if err != nil {
		return err
	}

	failed := 0
	for _, f := range flows {
		if err := validator.Validate(f.Graph); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", f.Source, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%s, %d nodes)\n", f.Source, f.Graph.ID, len(f.Graph.Nodes()))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d flows invalid", errInvalidFlows, failed, len(flows))
	}
	return nil
}

func loadFlows(args []string) ([]*compiler.Flow, error) {
	var flows []*compiler.Flow
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := compiler.LoadDir(arg)
			if err != nil {
				return nil, err
			}
			flows = append(flows, found...)
			continue
		}
		f, err := compiler.LoadFile(arg)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, nil
}
