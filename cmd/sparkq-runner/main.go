// Command sparkq-runner is the per-queue poller of spec.md §4.8: it
// claims tasks from a running sparkqd and hands each one off on
// standard output, one JSON claim descriptor per line, without ever
// executing the task itself. Its cobra/signal-handling shape mirrors
// cmd/warren's workerStartCmd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparkqdev/sparkq/internal/log"
	"github.com/sparkqdev/sparkq/internal/runner"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sparkq-runner <queue-name>",
	Short: "sparkq-runner - claim tasks from a queue and print them for an LLM session to execute",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunner,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("server-url", "http://127.0.0.1:8777", "sparkqd control server base URL")
	rootCmd.Flags().String("mode", "watch", "Polling mode: once, drain, or watch")
	rootCmd.Flags().Duration("poll-interval", 3*time.Second, "Polling interval in watch mode")
	rootCmd.Flags().String("lock-dir", "./sparkq-data", "Directory for the per-queue advisory lockfile")
	rootCmd.Flags().String("worker-id", "", "Worker identity recorded in logs (default: hostname/queue-id)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	// Stdout carries only claim descriptors; diagnostics go to stderr.
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON, Output: os.Stderr})
}

func runRunner(cmd *cobra.Command, args []string) error {
	queueName := args[0]
	serverURL, _ := cmd.Flags().GetString("server-url")
	modeFlag, _ := cmd.Flags().GetString("mode")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	lockDir, _ := cmd.Flags().GetString("lock-dir")
	workerID, _ := cmd.Flags().GetString("worker-id")

	mode := runner.Mode(modeFlag)
	switch mode {
	case runner.ModeOnce, runner.ModeDrain, runner.ModeWatch:
	default:
		return fmt.Errorf("invalid --mode %q: must be once, drain, or watch", modeFlag)
	}

	if err := os.MkdirAll(lockDir, 0700); err != nil {
		return fmt.Errorf("failed to create lock directory %s: %w", lockDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := runner.NewAPIClient(serverURL)
	queue, err := client.GetQueueByName(ctx, queueName)
	if err != nil {
		return fmt.Errorf("failed to resolve queue %q: %w", queueName, err)
	}

	r := runner.New(runner.Config{
		QueueID:      queue.ID,
		ServerURL:    serverURL,
		Mode:         mode,
		PollInterval: pollInterval,
		LockDir:      lockDir,
		WorkerID:     workerID,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()

	return r.Run(ctx)
}
