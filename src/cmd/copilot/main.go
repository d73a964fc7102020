// Package main provides the copilot CLI: the dashboard TUI plus scriptable
// commands against the DevOps Copilot backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"copilot-dash/src/api"
	"copilot-dash/src/config"
	"copilot-dash/src/dashboard"
	"copilot-dash/src/logger"
	"copilot-dash/src/mcp"
	"copilot-dash/src/tui"
)

var version = "dev"

var (
	// Application configuration, resolved once in PersistentPreRunE.
	appConfig *config.Config
	// Shared dashboard core for every command.
	app *dashboard.App
	// Closed after the app in PersistentPostRun, when logging to a file.
	fileLog *logger.FileLogger

	configPath  string
	apiBaseFlag string
	debugFlag   bool
)

// rootCmd runs the dashboard when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "DevOps Copilot - CI/CD pipeline dashboard",
	Long: `copilot is a terminal client for the DevOps Copilot backend.

Without a subcommand it opens the interactive dashboard:
- Pipelines: status, success rate, logs and AI analysis
- Agents: RCA and triage agent tasks
- Settings: backend configuration and demo data

The backend address comes from COPILOT_API_BASE (default ` + config.DefaultAPIBase + `).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := app.Close(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to flush events: %v\n", err)
			}
		}
		if fileLog != nil {
			_ = fileLog.Close()
		}
	},
	RunE: runDashboard,
}

// dashboardCmd is the explicit form of the default command.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive dashboard (default)",
	RunE:  runDashboard,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dashboard as MCP tools over stdio",
	Long: `Runs a Model Context Protocol server on stdin/stdout so LLM agents can list
pipelines, read and digest logs, run analyses and manage agent tasks.

Logs go to the configured log file; stdout carries the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(app, version).Run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	// No backend needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "copilot %s\n", version)
	},
}

func init() {
	// Assigned here because setup refers back to rootCmd.
	rootCmd.PersistentPreRunE = setup

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables still override it)")
	rootCmd.PersistentFlags().StringVar(&apiBaseFlag, "api-base", "", "Backend base URL (overrides COPILOT_API_BASE)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(dashboardCmd, mcpCmd, versionCmd)
	rootCmd.AddCommand(statusCmd, pipelinesCmd, logsCmd, analyzeCmd, ingestCmd, healthCmd, tasksCmd, seedCmd, eventsCmd)
}

// setup loads the configuration and builds the dashboard core. Commands that own
// the terminal or stdout log to a file; the others log to the console in debug mode.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		appConfig, err = config.LoadFile(configPath)
	} else {
		appConfig, err = config.LoadFromEnv()
	}
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if apiBaseFlag != "" {
		appConfig.APIBase = apiBaseFlag
	}
	if debugFlag {
		appConfig.Debug = true
	}

	var log logger.Logger = logger.NewSilentLogger()
	switch {
	case cmd == rootCmd || cmd == dashboardCmd || cmd == mcpCmd:
		fileLog, err = logger.NewFileLogger(appConfig.LogFile, appConfig.Debug)
		if err != nil {
			return err
		}
		log = fileLog
	case appConfig.Debug:
		log = logger.NewDebugConsoleLogger()
	}

	app, err = dashboard.New(appConfig, dashboard.WithLogger(log))
	return err
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app.Start(ctx)
	return tui.Run(ctx, app)
}

// userError renders err with the API layer's message and hint where it has one.
func userError(err error) error {
	if appConfig == nil {
		return err
	}
	return api.WrapError(err, appConfig.APIBase)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", userError(err))
		os.Exit(1)
	}
}
