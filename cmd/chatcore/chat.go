package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/chatcore/agent"
	"github.com/aixgo-dev/chatcore/internal/llm/cost"
	"github.com/aixgo-dev/chatcore/internal/summary"
	"github.com/aixgo-dev/chatcore/pkg/config"
	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/observability"
	"github.com/aixgo-dev/chatcore/pkg/session"
)

type chatFlags struct {
	strategy    string
	tail        int
	branch      string
	store       string
	metricsAddr string
	debug       bool
}

func newChatCmd(root *rootFlags) *cobra.Command {
	flags := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, flags)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg, flags.debug)
		},
	}
	cmd.Flags().StringVarP(&flags.strategy, "strategy", "s", "", "sliding_window, sticky_facts, branching or summary")
	cmd.Flags().IntVar(&flags.tail, "tail", 0, "messages kept verbatim (0 = strategy default)")
	cmd.Flags().StringVar(&flags.branch, "branch", "", "branch used by the branching strategy")
	cmd.Flags().StringVar(&flags.store, "store", "", "memory, file, redis, sqlite or firestore")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "show prompt labels, token metrics and debug logs")
	return cmd
}

func loadConfig(root *rootFlags, flags *chatFlags) (*config.Config, error) {
	if err := config.LoadEnvFiles(root.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root.configFile)
	if err != nil {
		return nil, err
	}

	if flags.strategy != "" {
		cfg.Context.Strategy = flags.strategy
	}
	if flags.tail > 0 {
		cfg.Context.Tail = flags.tail
	}
	if flags.branch != "" {
		cfg.Context.BranchID = flags.branch
	}
	if flags.store != "" {
		cfg.Store.Store = flags.store
	}
	if flags.metricsAddr != "" {
		cfg.Observability.MetricsAddr = flags.metricsAddr
	}
	return cfg, cfg.Validate()
}

func runChat(ctx context.Context, cfg *config.Config, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := observability.InitTracing(cfg.Observability.Tracing); err != nil {
		log.Printf("Warning: tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownTracing(sctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	client, err := llm.NewOpenAIClient(cfg.OpenAIConfig())
	if err != nil {
		return fmt.Errorf("set DEEPSEEK_API_KEY or llm.api_key: %w", err)
	}
	completer := llm.NewInstrumented(client, llm.InstrumentedConfig{Model: cfg.LLM.Model})

	backend, err := session.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
	}()

	metrics := observability.InitMetrics()
	opts := []agent.Option{
		agent.WithBudget(cfg.Context.Budget),
		agent.WithCostEstimator(cost.ForModel(nil, cfg.LLM.Model)),
		agent.WithMetrics(metrics),
		agent.WithLogger(logger),
	}
	if cfg.Context.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(cfg.Context.SystemPrompt))
	}

	storeOpts := []session.StoreOption{session.WithCodec(cfg.Store.Codec()), session.WithLogger(logger)}
	r := &repl{out: os.Stdout, debug: debug}
	if cfg.IsSummary() {
		store := session.NewSnapshotStore(backend, cfg.Store.Key, storeOpts...)
		manager := summary.NewManager(summary.NewLLMSummarizer(completer),
			append(cfg.SummaryOptions(), summary.WithLogger(logger))...)
		r.summary = agent.NewSummaryAgent(completer, store, manager, opts...)
	} else {
		sc, err := cfg.StrategyConfig()
		if err != nil {
			return err
		}
		store := session.NewStateStore(backend, cfg.Store.Key, storeOpts...)
		r.chat = agent.NewChatAgent(completer, store, opts...)
		r.cfg = sc
		r.tail = cfg.Context.Tail
		r.branchID = cfg.Context.BranchID
	}
	if err := r.init(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		health := observability.NewHealthChecker(Version)
		if p, ok := backend.(interface{ Ping(context.Context) error }); ok {
			health.RegisterCheck(observability.StoreCheck(p.Ping))
		}
		srv := observability.NewServer(addr, health)
		g.Go(func() error {
			log.Printf("Serving metrics on %s", addr)
			return srv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		histPath := historyPath()
		if f, err := os.Open(histPath); err == nil {
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			_ = os.MkdirAll(filepath.Dir(histPath), 0o700)
			if f, err := os.Create(histPath); err == nil {
				_, _ = line.WriteHistory(f)
				_ = f.Close()
			}
		}()

		fmt.Fprintf(r.out, "chatcore %s (%s). Type /help for commands.\n", Version, r.modeName())
		err := r.run(gctx, line)
		if errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatcore_history"
	}
	return filepath.Join(home, ".chatcore", "history")
}
