package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/logger"
	"github.com/spigell/skill-gap/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose matching and pipeline runs as MCP tools",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("transport", mcpserver.TransportStdio, "stdio or http")
	serveCmd.Flags().String("addr", "127.0.0.1:8891", "listen address for the http transport")

	viper.BindPFlag("serve.transport", serveCmd.Flags().Lookup("transport"))
	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := viper.GetString("serve.transport")

	// stdout carries the protocol on stdio.
	newLogger := logger.New
	if transport == mcpserver.TransportStdio {
		newLogger = logger.NewStderr
	}
	logger, err := newLogger(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	comps, err := newComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	server := mcpserver.NewServer(version, mcpserver.Deps{
		Matcher:    comps.engine,
		Stages:     comps.stages,
		Router:     comps.router,
		Controller: comps.controller,
		Logger:     logger,
	})

	if err := mcpserver.Run(ctx, server, transport, viper.GetString("serve.addr"), logger); err != nil {
		logger.Fatal("serving mcp", zap.Error(err))
	}
}
