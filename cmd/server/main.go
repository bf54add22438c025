package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kvreplica/internal/server"
)

func main() {
	cfg := server.DefaultConfig()
	var replicaOf string

	root := &cobra.Command{
		Use:   "kvreplica",
		Short: "An in-memory key-value store with async replication",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ReplicaOf = replicaOf

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			srv := server.New(cfg)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				logrus.Info("shutting down")
				cancel()
			}()

			return srv.Run(ctx)
		},
	}

	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "host to bind to")
	root.Flags().StringVar(&replicaOf, "replicaof", "", "master to replicate from, as host:port")
	root.Flags().IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum concurrent client connections")
	root.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("server exited with error")
	}
}
