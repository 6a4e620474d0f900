package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/chatdeck"
	"pkt.systems/chatdeck/httpapi"
	"pkt.systems/chatdeck/internal/appconfig"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noHTTP bool
	var noSync bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the compositor and its command surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			serverCfg := toServerConfig(cfg)
			var opts []chatdeck.ServerOption
			if !noHTTP {
				opts = append(opts, chatdeck.WithHTTP())
			}
			if !noSync {
				opts = append(opts, chatdeck.WithStorageSync())
			}
			server, err := chatdeck.New(serverCfg, chatdeck.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "disable the HTTP command surface")
	cmd.Flags().BoolVar(&noSync, "no-storage-sync", false, "do not watch the state directory for external writes")
	return cmd
}

func toServerConfig(cfg appconfig.Config) chatdeck.ServerConfig {
	return chatdeck.ServerConfig{
		Service:  cfg.ServiceConfig(),
		HTTP:     httpapi.Config{Addr: cfg.HTTP.Addr},
		Reparent: cfg.Surface.Reparent,
		Pointer:  cfg.Drag.Pointer,
	}
}
