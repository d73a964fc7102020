package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"copilot-dash/src/analysis"
	"copilot-dash/src/contracts"
	"copilot-dash/src/dashboard"
	"copilot-dash/src/events"
	"copilot-dash/src/logpager"
	"copilot-dash/src/tasks"
	"copilot-dash/src/tui"
)

var (
	pipelinesQuery string

	logsQuery string
	logsPages int
	logsCopy  bool

	ingestFile        string
	ingestName        string
	ingestStatus      string
	ingestSuccessRate float64

	healthWatch time.Duration

	taskType string

	eventsGroup string
)

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List tracked pipelines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Pipelines().Load(cmd.Context()); err != nil {
			return err
		}
		printPipelines(cmd.OutOrStdout(), dashboard.FilterPipelines(app.Pipelines().Items(), pipelinesQuery))
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <pipeline-id>",
	Short: "Print a pipeline's logs, newest first",
	Long: `Prints the first page of a pipeline's logs. Use --pages to read further pages
and --copy to put the text on the clipboard instead of printing it.

Example:
  copilot logs demo-1 -q timeout --pages 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pager := app.NewPager(args[0])
		if err := pager.Reset(ctx, logsQuery); err != nil {
			return err
		}
		for page := 1; page < logsPages && !pager.Buffer().Exhausted; page++ {
			if err := pager.Extend(ctx); err != nil {
				return err
			}
		}

		buf := pager.Buffer()
		if len(buf.Entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No logs available.")
			return nil
		}
		if logsCopy {
			if !logpager.ClipboardAvailable() {
				return errors.New("no clipboard available on this system")
			}
			if err := pager.CopyToClipboard(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d log entries to the clipboard.\n", len(buf.Entries))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), pager.Text())
		if !buf.Exhausted {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d entries shown; use --pages %d for more.\n", len(buf.Entries), logsPages+1)
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pipeline-id>",
	Short: "Run AI root cause analysis for a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := app.Analysis().Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printAnalysis(cmd.OutOrStdout(), session)
		if session.Phase == analysis.Failed {
			return session.Err
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <pipeline-id>",
	Short: "Send logs to the backend",
	Long: `Reads log text from --file (or stdin) and stores it for a pipeline. The
pipeline is created when it does not exist yet.

Example:
  ./build.sh 2>&1 | copilot ingest web-ci --status failed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if ingestFile != "" && ingestFile != "-" {
			f, err := os.Open(ingestFile)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			r = f
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read logs: %w", err)
		}
		if len(data) == 0 {
			return errors.New("no log content to ingest")
		}

		in := contracts.LogIngest{
			PipelineID: args[0],
			Logs:       string(data),
			Name:       ingestName,
			Status:     ingestStatus,
		}
		if cmd.Flags().Changed("success-rate") {
			if ingestSuccessRate < 0 || ingestSuccessRate > 1 {
				return fmt.Errorf("success rate must be between 0 and 1, got %g", ingestSuccessRate)
			}
			in.SuccessRate = &ingestSuccessRate
		}

		res, err := app.Client().PostLogs(cmd.Context(), in)
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%s (log #%d)", res.Message, res.LogID)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mon := app.Health()
		mon.Probe(ctx)
		printHealth(cmd.OutOrStdout(), mon.Status(), mon.Err())

		if healthWatch <= 0 {
			if mon.Status() != contracts.HealthUp {
				return errors.New("backend is down")
			}
			return nil
		}

		ticker := time.NewTicker(healthWatch)
		defer ticker.Stop()
		last := mon.Status()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				mon.Probe(ctx)
				if s := mon.Status(); s != last {
					last = s
					printHealth(cmd.OutOrStdout(), s, mon.Err())
				}
			}
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize backend health, pipelines and agent tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := app.Refresh(cmd.Context())
		printStatus(cmd.OutOrStdout(), snap, app.Health().Err())
		return err
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow dashboard events mirrored to Redpanda",
	Long: `Tails the events topic (COPILOT_EVENTS_TOPIC) from its current end and prints
each dashboard event as it arrives: health changes, list refreshes, analyses, task
mutations and demo data actions from every dashboard session mirroring to the cluster.

Requires REDPANDA_BROKERS.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(appConfig.RedpandaBrokers) == 0 {
			return errors.New("no Redpanda brokers configured; set REDPANDA_BROKERS")
		}
		ctx := cmd.Context()

		rp, err := events.NewRedpandaBroker(appConfig.RedpandaBrokers, app.Logger())
		if err != nil {
			return err
		}
		defer rp.Close()
		if err := rp.Ping(ctx); err != nil {
			return err
		}

		msgs, err := rp.Subscribe(ctx, appConfig.EventsTopic, eventsGroup)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)\n", appConfig.EventsTopic)
		for ev := range events.Decode(ctx, msgs, app.Logger()) {
			printEvent(cmd.OutOrStdout(), ev)
		}
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage agent tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent tasks, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list := app.Orchestrator().List()
		if err := list.Load(cmd.Context()); err != nil {
			return err
		}
		printTasks(cmd.OutOrStdout(), list.Items())
		return nil
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <pipeline-id>",
	Short: "Create an agent task for a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := contracts.TaskType(taskType)
		if err := app.Orchestrator().Create(cmd.Context(), args[0], typ); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%s task created for %s", typ, args[0])

		// Create refreshed the list; the newest task is ours.
		if items := app.Orchestrator().List().Items(); len(items) > 0 {
			printTask(cmd.OutOrStdout(), items[0])
		}
		return nil
	},
}

var tasksRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Run an existing agent task again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := tasks.ParseID(args[0])
		if err != nil {
			return err
		}
		if err := app.Orchestrator().Rerun(cmd.Context(), id); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "task #%d queued to run again", id)
		return nil
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one agent task and its result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := tasks.ParseID(args[0])
		if err != nil {
			return err
		}
		task, err := app.Orchestrator().Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		printTask(cmd.OutOrStdout(), *task)
		if raw := task.Result(); raw != "" {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), tui.PrettyJSON(raw))
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo pipelines and logs into the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Seed(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%s: %d pipelines", res.Message, len(res.Pipelines))
		for _, id := range res.Pipelines {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
		}
		return nil
	},
}

var seedResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all demo data from the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Reset(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%s", res.Message)
		return nil
	},
}

func init() {
	pipelinesCmd.Flags().StringVarP(&pipelinesQuery, "query", "q", "", "Filter by name or status (case-insensitive)")

	logsCmd.Flags().StringVarP(&logsQuery, "query", "q", "", "Free-text log filter")
	logsCmd.Flags().IntVar(&logsPages, "pages", 1, "Number of pages to read")
	logsCmd.Flags().BoolVar(&logsCopy, "copy", false, "Copy the logs to the clipboard")

	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "-", "Log file to send (- for stdin)")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "Pipeline display name")
	ingestCmd.Flags().StringVar(&ingestStatus, "status", "", "Pipeline status (success or failed)")
	ingestCmd.Flags().Float64Var(&ingestSuccessRate, "success-rate", 0, "Pipeline success rate between 0 and 1")

	healthCmd.Flags().DurationVar(&healthWatch, "watch", 0, "Keep probing at this interval and print changes")

	eventsCmd.Flags().StringVar(&eventsGroup, "group", "", "Consumer group to join (default: read every partition)")

	tasksCreateCmd.Flags().StringVarP(&taskType, "type", "t", string(contracts.TaskRCA), "Task type (rca or triage)")
	tasksCmd.AddCommand(tasksListCmd, tasksCreateCmd, tasksRunCmd, tasksShowCmd)

	seedCmd.AddCommand(seedResetCmd)
}
