package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/chatdeck/internal/appconfig"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// sourceCLI tags registry writes made from the command line.
const sourceCLI = "cli"

func newStateCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the persisted tab registry",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the tab registry as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd, cfgPath)
			if err != nil {
				return err
			}
			state, ok, err := reg.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				state = schema.TabState{}
			}
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the tab registry so the next start opens one fresh window",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd, cfgPath)
			if err != nil {
				return err
			}
			if err := reg.Reset(cmd.Context(), sourceCLI); err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("state reset")
			return nil
		},
	})
	return cmd
}

func openRegistry(cmd *cobra.Command, cfgPath string) (*persist.Registry, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	store, err := persist.NewStoreWithLogger(cfg.StateDir, pslog.Ctx(cmd.Context()))
	if err != nil {
		return nil, err
	}
	return persist.NewRegistry(store), nil
}
