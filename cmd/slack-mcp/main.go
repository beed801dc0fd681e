package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hemingway-community/slack-mcp/internal/config"
	"github.com/hemingway-community/slack-mcp/pkg/extraction"
	"github.com/hemingway-community/slack-mcp/pkg/mcp"
	"github.com/hemingway-community/slack-mcp/pkg/query"
)

const (
	serverName    = "slack-mcp"
	serverVersion = "1.0.0"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "slack-mcp",
	Short: "Tool server over a local Slack community extraction",
	Long: `slack-mcp serves read-only queries over the newest Slack community
export file found on disk, plus Slack Block Kit builders, as MCP tools
over stdin/stdout.

Run without arguments to start the stdio server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Logs go to stderr; stdout carries the protocol stream.
		zapCfg := zap.NewProductionConfig()
		zapCfg.OutputPaths = []string{"stderr"}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		switch level {
		case "debug":
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		case "warn":
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		case "error":
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stdio tool server",
	Long: `Reads JSON-RPC 2.0 requests line by line from stdin and writes
responses to stdout. With --http (or server.http in the config file) a
WebSocket transport is served alongside on /ws.`,
	RunE: runServe,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print extraction info for the discovered export file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := loadData()
		var out any
		if ds.Table == nil {
			out = mcp.NoDataResult{Reason: ds.Reason}
		} else {
			out = query.Info(ds.Table)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools and their input schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := mcp.NewRegistry()
		mcp.RegisterTools(registry, loadData(), cfg.Query.Limit)
		data, err := json.MarshalIndent(registry.Schemas(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	serveCmd.Flags().String("http", "", "listen address for the WebSocket transport (e.g. :8080)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(toolsCmd)
}

// loadData discovers and loads the newest export file once. Failures
// are folded into the DataSource so the server stays up and reports
// its own unavailability on every data query.
func loadData() mcp.DataSource {
	discoverer := extraction.NewDiscoverer(cfg.Data.Dir, cfg.Data.Patterns...)

	path, err := discoverer.Discover()
	if err != nil {
		if errors.Is(err, extraction.ErrNoExtraction) {
			reason := fmt.Sprintf("No Slack extraction data found. Expected %s in %s.",
				cfg.Data.Patterns[0], cfg.Data.Dir)
			logger.Warn("no extraction file discovered", zap.String("dir", cfg.Data.Dir))
			return mcp.DataSource{Reason: reason}
		}
		logger.Warn("extraction discovery failed", zap.Error(err))
		return mcp.DataSource{Reason: fmt.Sprintf("Extraction discovery failed: %v", err)}
	}

	table, err := extraction.Load(path)
	if err != nil {
		logger.Warn("extraction load failed", zap.String("path", path), zap.Error(err))
		return mcp.DataSource{Reason: fmt.Sprintf("Extraction file could not be loaded: %v", err)}
	}

	logger.Info("extraction loaded",
		zap.String("path", path),
		zap.Int("messages", len(table.Messages)),
		zap.Int("members", len(table.Members)))
	return mcp.DataSource{Table: table}
}

func runServe(cmd *cobra.Command, args []string) error {
	httpAddr := cfg.Server.HTTP
	if flag := cmd.Flags().Lookup("http"); flag != nil && flag.Changed {
		httpAddr = flag.Value.String()
	}

	registry := mcp.NewRegistry()
	mcp.RegisterTools(registry, loadData(), cfg.Query.Limit)
	server := mcp.NewServer(serverName, serverVersion, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServer *mcp.HTTPServer
	if httpAddr != "" {
		httpServer = mcp.NewHTTPServer(httpAddr, server, logger)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil {
				logger.Error("websocket transport failed", zap.Error(err))
			}
		}()
	}

	logger.Info("stdio server started", zap.String("version", serverVersion))
	err := server.Run(ctx, os.Stdin, os.Stdout)

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("websocket transport shutdown failed", zap.Error(shutdownErr))
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
