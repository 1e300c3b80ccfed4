package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/kbinfer/pkg/kbinfer"
	"github.com/cognicore/kbinfer/pkg/kbinfer/config"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/maintenance"
	"github.com/cognicore/kbinfer/pkg/kbinfer/scaffold"
	"github.com/cognicore/kbinfer/pkg/kbinfer/solution"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "kbinfer",
		Short:        "Forward-chaining inference over a graph knowledge base",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (defaults to an in-memory store)")

	open := func(cmd *cobra.Command) (*kbinfer.Engine, func(), error) {
		return buildEngine(cmd.Context(), configPath)
	}
	root.AddCommand(
		newApplyCmd(open),
		newVerdictsCmd(open),
		newCleanCmd(open),
		newDemoCmd(open),
	)
	return root
}

type opener func(cmd *cobra.Command) (*kbinfer.Engine, func(), error)

// buildEngine loads the configuration and wires the engine on the configured store
func buildEngine(ctx context.Context, configPath string) (*kbinfer.Engine, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loader := config.Loader{ConfigPath: configPath}
	comp, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	engine, err := kbinfer.New(ctx, kbinfer.Options{
		Store:           comp.Store,
		Logger:          comp.Logger,
		MaxPasses:       comp.Config.Inference.MaxPasses,
		PersistVerdicts: comp.Config.Inference.PersistVerdicts,
	})
	if err != nil {
		comp.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := comp.Close(); err != nil {
			comp.Logger.Warn("close store", zap.Error(err))
		}
	}
	return engine, cleanup, nil
}

func newApplyCmd(open opener) *cobra.Command {
	var req kbinfer.NamedRequest
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a rule set until the target statement holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			sol, err := engine.InferNamed(cmd.Context(), req)
			if err != nil {
				return err
			}
			printSolution(cmd.Context(), cmd.OutOrStdout(), engine, sol)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Target, "target", "", "system identifier of the target pattern (required)")
	cmd.Flags().StringVar(&req.RuleSet, "rules", "", "system identifier of the rule set")
	cmd.Flags().StringVar(&req.Input, "input", "", "system identifier of the input structure")
	cmd.Flags().StringVar(&req.Output, "output", "", "system identifier of the output structure")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

type textWriter struct {
	w io.Writer
}

func (t textWriter) WriteVerdicts(ctx context.Context, content string) error {
	_, err := io.WriteString(t.w, content)
	return err
}

func newVerdictsCmd(open opener) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "verdicts",
		Short: "List recorded rule satisfiability verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			addr, err := resolveOptional(ctx, engine, model)
			if err != nil {
				return err
			}
			records, err := engine.Verdicts(ctx, addr)
			if err != nil {
				return err
			}
			exp := &maintenance.VerdictExporter{Store: engine.Store(), Writer: textWriter{cmd.OutOrStdout()}}
			return exp.Export(ctx, records)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "restrict to one model (input structure identifier)")
	return cmd
}

func newCleanCmd(open opener) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove recorded satisfiability verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			addr, err := resolveOptional(ctx, engine, model)
			if err != nil {
				return err
			}
			res, err := engine.Cleaner().Clean(ctx, addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d of %d verdicts\n", res.Removed, res.Scanned)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "restrict to one model (input structure identifier)")
	return cmd
}

func newDemoCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Seed the demonstration taxonomy and run inference on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			// a persistent store keeps the demo between invocations
			if _, ok, err := engine.Store().ResolveIdtf(ctx, scaffold.DemoTarget); err != nil {
				return err
			} else if !ok {
				b := scaffold.New(ctx, engine.Store(), engine.Keynodes())
				b.SeedDemo()
				if err := b.Err(); err != nil {
					return fmt.Errorf("seed demo: %w", err)
				}
			}

			sol, err := engine.InferNamed(ctx, kbinfer.NamedRequest{
				Target:  scaffold.DemoTarget,
				RuleSet: scaffold.DemoRuleSet,
				Input:   scaffold.DemoInput,
				Output:  scaffold.DemoOutput,
			})
			if err != nil {
				return err
			}
			printSolution(ctx, cmd.OutOrStdout(), engine, sol)
			return nil
		},
	}
}

func resolveOptional(ctx context.Context, engine *kbinfer.Engine, idtf string) (kb.Addr, error) {
	if idtf == "" {
		return 0, nil
	}
	return engine.Resolve(ctx, idtf)
}

func printSolution(ctx context.Context, w io.Writer, engine *kbinfer.Engine, sol solution.Solution) {
	status := "not achieved"
	if sol.Achieved {
		status = "achieved"
	}
	fmt.Fprintf(w, "solution %s: target %s\n", sol.ID, status)
	for i, st := range sol.Steps {
		mark := "-"
		if st.Applied {
			mark = "+"
		}
		fmt.Fprintf(w, "  %2d. [tier %d] %s %s\n", i+1, st.Tier, mark, kb.Label(ctx, engine.Store(), st.Rule))
	}
	fmt.Fprintf(w, "generated %d element(s)\n", len(sol.Generated))
}
