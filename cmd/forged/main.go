// Command forged runs the agent workflow service: it registers natural
// language described agents, compiles them into workflow graphs, and
// executes them over an HTTP API with SSE progress streaming.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agents-forge/forge/llm"
	"github.com/agents-forge/forge/log"
	"github.com/agents-forge/forge/registry"
	"github.com/agents-forge/forge/run"
	"github.com/agents-forge/forge/server"
	"github.com/agents-forge/forge/step"
	"github.com/agents-forge/forge/store"
	memorystore "github.com/agents-forge/forge/store/memory"
	postgresstore "github.com/agents-forge/forge/store/postgres"
	redisstore "github.com/agents-forge/forge/store/redis"
	sqlitestore "github.com/agents-forge/forge/store/sqlite"
	"github.com/agents-forge/forge/tool"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	addr         string
	storeBackend string
	sqlitePath   string
	redisAddr    string
	postgresConn string
	openaiBase   string
	concurrency  int
	nodeTimeout  time.Duration
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "forged",
	Short: "Agent workflow service",
	Long: `forged compiles agent definitions into workflow graphs and executes
them with live progress streaming.

Examples:
  # Start with in-memory storage
  forged serve

  # Start with SQLite persistence
  forged serve --store sqlite --sqlite-path ./agents.db`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.LevelDebug)
		}
		logger := log.Default()

		agentStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer agentStore.Close()

		gen, err := buildTextGeneration()
		if err != nil {
			return err
		}
		ret, err := tool.NewBraveSearch("")
		if err != nil {
			return err
		}

		steps := step.NewDefaultRegistry(gen, ret)
		reg := registry.New(steps, registry.WithStore(agentStore))
		if err := reg.Restore(cmd.Context()); err != nil {
			logger.Warn("%v", err)
		}

		runner := run.NewRunner(steps,
			run.WithMaxConcurrency(concurrency),
			run.WithNodeTimeout(nodeTimeout),
			run.WithLogger(logger),
		)

		server.Version = Version
		srv := server.New(reg, runner, server.WithLogger(logger))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forged\n")
		fmt.Printf("  Version:    %s\n", Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
	},
}

func openStore(ctx context.Context) (store.AgentStore, error) {
	switch storeBackend {
	case "memory":
		return memorystore.New(), nil
	case "sqlite":
		return sqlitestore.New(sqlitestore.Options{Path: sqlitePath})
	case "redis":
		return redisstore.New(redisstore.Options{Addr: redisAddr}), nil
	case "postgres":
		return postgresstore.New(ctx, postgresstore.Options{ConnString: postgresConn})
	default:
		return nil, fmt.Errorf("unknown store backend %q", storeBackend)
	}
}

func buildTextGeneration() (step.TextGeneration, error) {
	var opts []llm.OpenAIOption
	if openaiBase != "" {
		opts = append(opts, llm.WithBaseURL(openaiBase))
	}
	gen, err := llm.NewOpenAI("", opts...)
	if err != nil {
		return nil, err
	}
	return gen, nil
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	serveCmd.Flags().StringVar(&storeBackend, "store", "memory", "agent store backend (memory|sqlite|redis|postgres)")
	serveCmd.Flags().StringVar(&sqlitePath, "sqlite-path", "./agents.db", "SQLite database path")
	serveCmd.Flags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis address")
	serveCmd.Flags().StringVar(&postgresConn, "postgres-conn", "", "Postgres connection string")
	serveCmd.Flags().StringVar(&openaiBase, "openai-base-url", "", "override the OpenAI API base URL")
	serveCmd.Flags().IntVar(&concurrency, "concurrency", 4, "max parallel steps per layer")
	serveCmd.Flags().DurationVar(&nodeTimeout, "node-timeout", 60*time.Second, "per-step execution timeout")
	serveCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
