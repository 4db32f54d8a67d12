package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/checkpoint"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/config"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/llm"
	"github.com/spf13/cobra"
)

// errNodesFailed reports a run that finished with node errors.
var errNodesFailed = errors.New("one or more nodes failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "promptgraph",
		Short:         "Run graphs of prompts, model calls and outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		graphPath   string
		configPath  string
		checkpoints string
		echo        bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow file and print its outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if checkpoints != "" {
				settings.CheckpointPath = checkpoints
			}
			logger := newLogger(settings, cmd.ErrOrStderr())

			doc, err := promptgraph.LoadDocument(graphPath)
			if err != nil {
				return err
			}
			g, err := promptgraph.FromDocument(doc, llmDefaults(settings))
			if err != nil {
				return fmt.Errorf("build graph: %w", err)
			}

			opts := engineOptions(settings, logger)
			if settings.CheckpointPath != "" {
				store, err := checkpoint.NewSQLiteStore(settings.CheckpointPath)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, promptgraph.WithCheckpointStore(store))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine := promptgraph.NewEngine(g, modelClient(settings, echo), opts...)
			result, runErr := engine.Run(ctx)
			printResult(cmd.OutOrStdout(), g, result)
			if runErr == nil && result.Status == promptgraph.RunErrored {
				return errNodesFailed
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&graphPath, "graph", "g", "", "workflow file (.yaml or .json)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "settings file (.yaml or .json)")
	cmd.Flags().StringVar(&checkpoints, "checkpoints", "", "SQLite file for tick checkpoints")
	cmd.Flags().BoolVar(&echo, "echo", false, "use an offline model that echoes its prompt")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var graphPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a workflow file can run",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := promptgraph.LoadDocument(graphPath)
			if err != nil {
				return err
			}
			g, err := promptgraph.FromDocument(doc, promptgraph.DefaultLLMDefaults())
			if err != nil {
				return fmt.Errorf("build graph: %w", err)
			}
			if err := promptgraph.Validate(g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d edges, ok\n", graphPath, g.Len(), len(g.Edges()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&graphPath, "graph", "g", "", "workflow file (.yaml or .json)")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "promptgraph", version)
		},
	}
}

func newLogger(s config.Settings, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func llmDefaults(s config.Settings) promptgraph.LLMDefaults {
	return promptgraph.LLMDefaults{
		Model:       s.Model.Name,
		Temperature: s.Model.Temperature,
		MaxTokens:   s.Model.MaxTokens,
	}
}

func engineOptions(s config.Settings, logger *slog.Logger) []promptgraph.Option {
	return []promptgraph.Option{
		promptgraph.WithLogger(logger),
		promptgraph.WithSettleDelay(s.SettleDelay),
		promptgraph.WithMaxConcurrency(s.MaxConcurrency),
		promptgraph.WithLLMDefaults(llmDefaults(s)),
		promptgraph.WithMetrics(s.Metrics),
		promptgraph.WithTracing(s.Tracing),
	}
}

func modelClient(s config.Settings, echo bool) llm.Client {
	if echo {
		return llm.NewEchoClient()
	}
	return llm.NewClaudeCLI(
		llm.WithClaudePath(s.ClaudePath),
		llm.WithModel(s.Model.Name),
		llm.WithTimeout(s.ClaudeTimeout),
	)
}

// printResult writes every output node and the run status.
func printResult(w io.Writer, g *promptgraph.Graph, result *promptgraph.Result) {
	for _, n := range g.Nodes() {
		d := n.Output()
		if d == nil {
			continue
		}
		fmt.Fprintf(w, "== %s [%s]\n", n.ID, n.Status)
		switch {
		case n.Status == promptgraph.StatusError:
			fmt.Fprintf(w, "error: %s\n", n.Error)
		case d.Content != "":
			fmt.Fprintln(w, strings.TrimRight(d.Content, "\n"))
		}
		if d.TokenCount != nil {
			fmt.Fprintf(w, "(%d tokens)\n", *d.TokenCount)
		}
	}
	if result == nil {
		return
	}
	fmt.Fprintf(w, "run %s: %s in %d ticks (%s)\n", result.RunID, result.Status, result.Ticks, result.Duration.Round(time.Millisecond))
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "skipped: %s\n", strings.Join(result.Skipped, ", "))
	}
}

// exitCode maps a run error to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, errNodesFailed):
		return 2
	default:
		return 1
	}
}
