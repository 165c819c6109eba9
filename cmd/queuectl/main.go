// Command queuectl is the CLI control plane for QueueCTL: it enqueues
// jobs, inspects queue state, and starts/stops Worker Runtime processes
// against a single embedded database (spec §6).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/control"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/config"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
	sqlstorage "github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/storage/sql"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "queuectl: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps the error taxonomy (spec §7) onto the CLI exit codes
// spec §6 assigns: 2 for validation/duplicate/not-found and for an invalid
// config value (config.ConfigError), 1 otherwise.
func exitCodeFor(err error) int {
	var cfgErr config.ConfigError
	if queue.IsValidation(err) || queue.IsDuplicateId(err) || queue.IsNotFound(err) || errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

func run(args []string) error {
	if len(args) == 0 {
		return queue.Validationf("usage: queuectl <enqueue|list|status|worker|dlq|config> ...")
	}

	// __run-worker is the hidden subcommand ProcessLauncher self-execs to
	// start a real Worker Runtime OS process; it never appears in --help.
	if args[0] == "__run-worker" {
		return runWorkerProcess(args[1:])
	}

	bootstrap, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogging(bootstrap.LogLevel)

	ctx := context.Background()
	store, err := sqlstorage.NewSQLiteStore(ctx, bootstrap.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	jobs := store.Jobs()
	workers := store.Workers()
	cfgService := config.New(store.Config())
	launcher := worker.NewProcessLauncher(bootstrap.DBPath, workers)
	facade := control.New(jobs, workers, cfgService, launcher)

	return dispatch(ctx, facade, args)
}

func dispatch(ctx context.Context, f *control.Facade, args []string) error {
	switch args[0] {
	case "enqueue":
		return cmdEnqueue(ctx, f, args[1:])
	case "list":
		return cmdList(ctx, f, args[1:])
	case "status":
		return cmdStatus(ctx, f)
	case "worker":
		return cmdWorker(ctx, f, args[1:])
	case "dlq":
		return cmdDLQ(ctx, f, args[1:])
	case "config":
		return cmdConfig(ctx, f, args[1:])
	default:
		return queue.Validationf("unknown command %q", args[0])
	}
}

// enqueueSpec mirrors the job submission JSON shape spec §6 recognizes.
// Unrecognized fields are ignored by encoding/json by default.
type enqueueSpec struct {
	ID             string     `json:"id"`
	Command        string     `json:"command"`
	MaxRetries     *int       `json:"max_retries"`
	RunAt          *time.Time `json:"run_at"`
	Priority       int        `json:"priority"`
	Tags           []string   `json:"tags"`
	TimeoutSeconds *int       `json:"timeout_seconds"`
}

func cmdEnqueue(ctx context.Context, f *control.Facade, args []string) error {
	if len(args) != 1 {
		return queue.Validationf("usage: queuectl enqueue <json>")
	}

	var spec enqueueSpec
	if err := json.Unmarshal([]byte(args[0]), &spec); err != nil {
		return queue.Validationf("invalid job JSON: %v", err)
	}

	job, err := f.Enqueue(ctx, domain.JobSpec{
		ID:             spec.ID,
		Command:        spec.Command,
		Priority:       spec.Priority,
		MaxRetries:     spec.MaxRetries,
		RunAt:          spec.RunAt,
		Tags:           spec.Tags,
		TimeoutSeconds: spec.TimeoutSeconds,
	})
	if err != nil {
		return err
	}

	fmt.Println(job.ID)
	return nil
}

func cmdList(ctx context.Context, f *control.Facade, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	stateFlag := fs.String("state", "", "filter by job state")
	if err := fs.Parse(args); err != nil {
		return queue.Validationf("%v", err)
	}

	var filter *domain.JobState
	if *stateFlag != "" {
		s := domain.JobState(*stateFlag)
		switch s {
		case domain.JobPending, domain.JobProcessing, domain.JobCompleted, domain.JobFailed, domain.JobDead:
			filter = &s
		default:
			return queue.Validationf("unknown --state %q", *stateFlag)
		}
	}

	jobs, err := f.List(ctx, filter)
	if err != nil {
		return err
	}
	printJobTable(jobs)
	return nil
}

func cmdStatus(ctx context.Context, f *control.Facade) error {
	status, err := f.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Print(status.String())
	return nil
}

func cmdWorker(ctx context.Context, f *control.Facade, args []string) error {
	if len(args) == 0 {
		return queue.Validationf("usage: queuectl worker <start|stop>")
	}
	switch args[0] {
	case "start":
		fs := flag.NewFlagSet("worker start", flag.ContinueOnError)
		count := fs.Int("count", 1, "number of workers to start")
		if err := fs.Parse(args[1:]); err != nil {
			return queue.Validationf("%v", err)
		}
		return f.WorkerStart(ctx, *count)
	case "stop":
		return f.WorkerStop(ctx)
	default:
		return queue.Validationf("unknown worker subcommand %q", args[0])
	}
}

func cmdDLQ(ctx context.Context, f *control.Facade, args []string) error {
	if len(args) == 0 {
		return queue.Validationf("usage: queuectl dlq <list|retry>")
	}
	switch args[0] {
	case "list":
		jobs, err := f.DLQList(ctx)
		if err != nil {
			return err
		}
		printJobTable(jobs)
		return nil
	case "retry":
		if len(args) != 2 {
			return queue.Validationf("usage: queuectl dlq retry <job_id>")
		}
		_, err := f.DLQRetry(ctx, args[1])
		return err
	default:
		return queue.Validationf("unknown dlq subcommand %q", args[0])
	}
}

func cmdConfig(ctx context.Context, f *control.Facade, args []string) error {
	if len(args) == 0 {
		return queue.Validationf("usage: queuectl config <get|set>")
	}
	switch args[0] {
	case "get":
		values, err := f.ConfigGet(ctx)
		if err != nil {
			return err
		}
		for _, key := range []string{domain.ConfigMaxRetries, domain.ConfigBackoffBase, domain.ConfigPollInterval, domain.ConfigJobTimeout} {
			fmt.Printf("%s=%s\n", key, values[key])
		}
		return nil
	case "set":
		if len(args) != 3 {
			return queue.Validationf("usage: queuectl config set <key> <value>")
		}
		return f.ConfigSet(ctx, args[1], args[2])
	default:
		return queue.Validationf("unknown config subcommand %q", args[0])
	}
}

func printJobTable(jobs []*domain.Job) {
	fmt.Printf("%-36s %-10s %-4s %-8s %s\n", "ID", "STATE", "PRI", "ATTEMPTS", "COMMAND")
	for _, j := range jobs {
		fmt.Printf("%-36s %-10s %-4d %-8d %s\n", j.ID, j.State, j.Priority, j.Attempts, j.Command)
	}
}

// runWorkerProcess is the entry point for a self-exec'd Worker Runtime
// (spec §4.5). It runs until SIGINT/SIGTERM (spec §5: both are treated as
// the graceful shutdown signal).
func runWorkerProcess(args []string) error {
	fs := flag.NewFlagSet("__run-worker", flag.ContinueOnError)
	id := fs.String("id", "", "worker id")
	dbPath := fs.String("db", "", "database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *dbPath == "" {
		return fmt.Errorf("__run-worker requires --id and --db")
	}

	initLogging("info")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := sqlstorage.NewSQLiteStore(context.Background(), *dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	cfgService := config.New(store.Config())
	runtime := worker.New(*id, store.Jobs(), store.Workers(), cfgService)

	return runtime.Run(ctx)
}

func initLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
