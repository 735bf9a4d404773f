package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/autofinance/internal/eligibility"
	"github.com/ashureev/autofinance/internal/engine"
	"github.com/ashureev/autofinance/internal/intent"
	"github.com/ashureev/autofinance/internal/listing"
	"github.com/ashureev/autofinance/internal/orchestrator"
	"github.com/ashureev/autofinance/internal/policy"
	"github.com/ashureev/autofinance/internal/store"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID  string
		policyFile string
		catalog    string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant locally with in-memory storage",
		Long: "Runs the full conversation pipeline in-process using the bundled listing catalog,\n" +
			"the rule-based classifier, and in-memory checkpoints. Type \"exit\" to quit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

			orch, err := newLocalOrchestrator(policyFile, catalog, logger)
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), orch, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "local", "session id for the conversation")
	cmd.Flags().StringVar(&policyFile, "policies", "", "lending policy YAML file (default: bundled policies)")
	cmd.Flags().StringVar(&catalog, "catalog", "", "listing catalog YAML file (default: bundled catalog)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")
	return cmd
}

func newLocalOrchestrator(policyFile, catalogPath string, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	policies, err := policy.LoadFile(policyFile)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}

	var cat *listing.Catalog
	if catalogPath == "" {
		cat, err = listing.DefaultCatalog()
	} else {
		cat, err = listing.LoadCatalog(catalogPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	mem := store.NewMemory()
	eng, err := engine.New(engine.Deps{
		Searcher:     cat,
		Evaluator:    eligibility.NewEvaluator(policies, time.Now),
		Applications: mem,
		Logger:       logger,
	}, engine.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Deps{
		Store:      mem,
		Classifier: intent.NewGate(intent.NewRuleClassifier(), intent.DefaultMinConfidence),
		Engine:     eng,
		Logger:     logger,
	}, orchestrator.Config{})
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = orchestrator.WithChannel(ctx, "cli")

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}

		resp, err := orch.Handle(ctx, sessionID, line)
		if err != nil && resp.Reply == "" {
			return err
		}
		fmt.Fprintln(out, resp.Reply)
		if resp.Prompt != nil && len(resp.Prompt.Options) > 0 {
			fmt.Fprintf(out, "  [%s]\n", strings.Join(resp.Prompt.Options, " / "))
		}
		if resp.State != nil {
			fmt.Fprintf(out, "  (phase: %s)\n", resp.State.Phase)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
