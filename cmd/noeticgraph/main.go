package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noeticgraph/noeticgraph/internal/noetic"
)

// Exit codes per the CLI surface contract (§6): 0 success, 1 malformed
// arguments, 2 internal error.
const (
	exitOK        = 0
	exitBadArgs   = 1
	exitInternal  = 2
)

var (
	statePath  string
	configPath string
	modeFlag   string
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:   "noeticgraph",
		Short: "Emergent-dimensional reasoning engine over a concept graph",
		Long: `noeticgraph drives the reasoning engine: teach it sentences, ask it
questions, and inspect how its connection chemistry and emergent dimensions
evolve over repeated use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&statePath, "state", "noeticgraph.state", "path to the persisted engine snapshot")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML evolution-parameter file (defaults built in)")
	root.PersistentFlags().StringVar(&modeFlag, "mode", "balanced", "reasoning mode: balanced, exploration, exploitation, accuracy")

	root.AddCommand(reasonCmd(), learnCmd(), statsCmd(), replCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if isBadArgsError(err) {
			return exitBadArgs
		}
		return exitInternal
	}
	return exitOK
}

// isBadArgsError distinguishes cobra's own argument-count/flag-parsing
// errors (malformed invocation, exit code 1) from errors returned by a
// command's RunE (engine failures, exit code 2).
func isBadArgsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "arg(s)") || strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown command")
}

func loadLogger() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

func loadConfig() noetic.Config {
	cfg := noetic.DefaultConfig()
	if configPath == "" {
		return cfg
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}
	_ = yaml.Unmarshal(data, &cfg)
	return cfg
}

func loadEngine(log *zap.SugaredLogger) (*noetic.Engine, error) {
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return noetic.New(loadConfig(), log, 42), nil
		}
		return nil, err
	}
	return noetic.Import(data, log, 42)
}

func saveEngine(e *noetic.Engine) error {
	data, err := e.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0o644)
}

func parseMode(s string) noetic.Mode {
	switch s {
	case "exploration":
		return noetic.ModeExploration
	case "exploitation":
		return noetic.ModeExploitation
	case "accuracy":
		return noetic.ModeAccuracy
	default:
		return noetic.ModeBalanced
	}
}

func reasonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reason QUERY",
		Short: "Run one reasoning cycle and print the emitted phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := loadLogger()
			e, err := loadEngine(log)
			if err != nil {
				return err
			}
			phrase, err := e.Answer(context.Background(), args[0], parseMode(modeFlag))
			if err != nil {
				return err
			}
			if err := saveEngine(e); err != nil {
				return err
			}
			fmt.Println(phrase)
			return nil
		},
	}
}

func learnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn TEXT",
		Short: "Feed one sentence of teaching input into the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := loadLogger()
			e, err := loadEngine(log)
			if err != nil {
				return err
			}
			if err := e.Learn(args[0]); err != nil {
				return err
			}
			return saveEngine(e)
		},
	}
}

func statsCmd() *cobra.Command {
	var yamlOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print engine metrics (node/edge counts, active dimensions, chemistry summary)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := loadLogger()
			e, err := loadEngine(log)
			if err != nil {
				return err
			}
			m := e.Metrics()
			if yamlOut {
				data, err := yaml.Marshal(m)
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			}
			fmt.Printf("nodes:              %d\n", m.NodeCount)
			fmt.Printf("edges:              %d\n", m.EdgeCount)
			fmt.Printf("active dimensions:  %d\n", m.ActiveDimensions)
			fmt.Printf("promotion threshold: %.3f\n", m.PromotionThreshold)
			fmt.Printf("learning rate:      %.4f\n", m.LearningRate)
			fmt.Printf("baseline fitness:   %.3f\n", m.BaselineFitness)
			fmt.Printf("cycle:              %d\n", m.Cycle)
			fmt.Printf("degraded:           %v\n", m.Degraded)
			fmt.Printf("mean conductivity:  %.3f\n", m.Chemistry.MeanConductivity)
			fmt.Printf("mean affinity:      %.3f\n", m.Chemistry.MeanAffinity)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "print metrics as YAML instead of a table")
	return cmd
}

// replCmd loops reason/learn over stdin: lines prefixed "learn: " teach the
// graph, everything else runs one reasoning cycle and prints the phrase.
// Typing "quit" or sending EOF exits and persists the final state.
func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively teach and query the engine over stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := loadLogger()
			e, err := loadEngine(log)
			if err != nil {
				return err
			}
			mode := parseMode(modeFlag)

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Println("noeticgraph repl. Lines prefixed \"learn: \" teach the graph; anything else is a query. \"quit\" to exit.")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "quit" {
					break
				}
				if text, ok := strings.CutPrefix(line, "learn: "); ok {
					if err := e.Learn(text); err != nil {
						fmt.Fprintln(os.Stderr, "error:", err)
					}
					continue
				}
				phrase, err := e.Answer(context.Background(), line, mode)
				if err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
					continue
				}
				fmt.Println(phrase)
			}
			return saveEngine(e)
		},
	}
}
