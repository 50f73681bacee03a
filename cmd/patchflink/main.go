// Command patchflink runs one coding task end to end: it assembles code
// context, generates a patch with an LLM, validates the result and commits
// it on a dedicated branch. The outcome is printed as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/patchflink/internal/config"
	"github.com/codefionn/patchflink/internal/ctxbuild"
	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/llm"
	"github.com/codefionn/patchflink/internal/logger"
	"github.com/codefionn/patchflink/internal/pipeline"
	"github.com/codefionn/patchflink/internal/propose"
	"github.com/codefionn/patchflink/internal/refine"
	"github.com/codefionn/patchflink/internal/retrieval"
	"github.com/codefionn/patchflink/internal/store"
	"github.com/codefionn/patchflink/internal/task"
	"github.com/codefionn/patchflink/internal/tokens"
	"github.com/codefionn/patchflink/internal/validate"
	"github.com/codefionn/patchflink/internal/vcs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "patchflink: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		taskPath   = flag.String("task", "", "path to the task spec JSON (required)")
		configPath = flag.String("config", "", "path to the config JSON")
		workDir    = flag.String("workdir", "", "repository working directory (overrides config)")
		noRefine   = flag.Bool("no-refine", false, "skip the context refinement round")
		noStore    = flag.Bool("no-store", false, "do not record the run in the history database")
	)
	flag.Parse()

	if *taskPath == "" {
		flag.Usage()
		return fmt.Errorf("-task is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workDir != "" {
		cfg.WorkingDir = *workDir
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Global().Close()

	spec, err := loadSpec(*taskPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := execute(ctx, cfg, spec, *noRefine, *noStore)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if result.Status != task.StatusSuccess {
		os.Exit(2)
	}
	return nil
}

func loadSpec(path string) (*task.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task spec: %w", err)
	}
	spec := &task.Spec{}
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("failed to parse task spec: %w", err)
	}
	return spec, nil
}

// execute wires the capabilities and runs the pipeline once.
func execute(ctx context.Context, cfg *config.Config, spec *task.Spec, noRefine, noStore bool) (*task.CommitResult, error) {
	client, err := llm.NewAnthropicClient(cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	filesystem := fs.NewCachedFS(cfg.WorkingDir, 256)
	defer filesystem.Close()

	retriever := retrieval.NewGrepRetriever(filesystem)
	estimator := tokens.NewEstimator()
	builder := ctxbuild.NewBuilder(filesystem, retriever, estimator, cfg.TokenBudget)

	var refiner pipeline.ContextRefiner
	if !noRefine {
		refiner = refine.NewRefiner(client, retriever, filesystem)
	}

	controller := pipeline.NewController(
		vcs.NewGit(cfg.WorkingDir),
		builder,
		refiner,
		propose.NewProposer(client, filesystem),
		validate.NewRunner(filesystem),
		pipeline.Options{
			MaxRetries: cfg.MaxRetries,
			Author:     cfg.Author,
			RunTests:   cfg.RunTests,
		},
	)

	result := controller.Run(ctx, spec)

	if !noStore && cfg.DBPath != "" {
		if err := recordRun(cfg.DBPath, spec, result); err != nil {
			logger.Warn("failed to record run: %v", err)
		}
	}
	return result, nil
}

func recordRun(dbPath string, spec *task.Spec, result *task.CommitResult) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	_, err = st.SaveResult(spec, result)
	return err
}
