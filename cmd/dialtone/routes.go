package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/dialtone/internal/config"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/routing"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Manage number-to-flow bindings in the persistent route store",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bound numbers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(reg *routing.Registry) error {
			entries, err := reg.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tFLOW\tNAME\tVOICE\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Number, e.FlowID, e.FlowName, e.Voice.Voice, e.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var routesAddCmd = &cobra.Command{
	Use:   "add <number> <flow-id>",
	Short: "Bind a number to a flow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		voice, _ := cmd.Flags().GetString("voice")
		lang, _ := cmd.Flags().GetString("language")
		return withRegistry(cmd, func(reg *routing.Registry) error {
			entry, err := reg.Register(cmd.Context(), args[0], args[1], name,
				domain.VoiceSettings{Voice: voice, Language: lang})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", entry.Number, entry.FlowID)
			return nil
		})
	},
}

var routesRemoveCmd = &cobra.Command{
	Use:   "remove <number>",
	Short: "Unbind a number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(reg *routing.Registry) error {
			return reg.Unregister(cmd.Context(), args[0])
		})
	},
}

func withRegistry(cmd *cobra.Command, fn func(*routing.Registry) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.RouteStore == config.StoreMemory {
		return fmt.Errorf("routes needs a persistent route store, use --route-store sqlite or redis")
	}

	stores, err := openBackends(cmd.Context(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer stores.Close()

	return fn(routing.NewRegistry(stores.routes))
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesListCmd, routesAddCmd, routesRemoveCmd)

	routesCmd.PersistentFlags().String("route-store", "", "Route store: redis or sqlite")
	routesCmd.PersistentFlags().String("sqlite-dsn", "", "SQLite database for the sqlite route store")
	routesCmd.PersistentFlags().String("redis-addr", "", "Redis address for the redis route store")

	routesAddCmd.Flags().String("name", "", "Display name of the flow")
	routesAddCmd.Flags().String("voice", "", "Voice for calls on this number")
	routesAddCmd.Flags().String("language", "", "Language for calls on this number")
}
