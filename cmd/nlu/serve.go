package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/nlu/internal/server"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the TCP and HTTP question answering servers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "configs/config.toml", "Path to config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	conf, err := server.LoadConfig(configFile)
	if err != nil {
		return errors.WithMessage(err, "failed to load configuration")
	}

	srv, err := server.NewServer(conf)
	if err != nil {
		return errors.WithMessage(err, "failed to create server")
	}
	defer func() { _ = srv.Shutdown() }()

	if err = srv.Start(); err != nil {
		return errors.WithMessage(err, "failed to run server")
	}
	return nil
}
