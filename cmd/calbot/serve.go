package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"calbot/internal/server"
)

func newServeCommand() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}

			serverConfig := server.DefaultConfig()
			serverConfig.ListenAddr = rt.config.Server.ListenAddr
			if listenAddr != "" {
				serverConfig.ListenAddr = listenAddr
			}
			serverConfig.ShutdownTimeout = rt.config.Server.ShutdownTimeout

			srv := server.New(rt.agent, rt.sessions, rt.registry, serverConfig)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				fmt.Printf("\nReceived %s, shutting down...\n", sig)
				if err := srv.Stop(); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return <-errCh
			}
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (overrides config)")
	return cmd
}
