package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedloom/seedloom/internal/engine"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Models string
	RefKey string
}

// PlanReport is the serializable dry-run output.
type PlanReport struct {
	Steps []engine.PlanStep `json:"steps"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <seed-file>...",
		Short: "Show the creation plan without touching a database",
		Long: `Build and order the creation plan for seed documents without any store
access. All structural errors (duplicate or unknown references, cycles,
schema mismatches) surface here; store lookups are not performed.

Example:
  seedloom plan --models ./models seeds/base.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Models, "models", "", "path to CUE model catalog directory (required)")
	cmd.Flags().StringVar(&opts.RefKey, "ref-key", engine.DefaultRefKeyField, "document field that marks an explicit reference key")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runPlan(opts *PlanOptions, seedFiles []string, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cat, doc, err := loadInputs(opts.Models, seedFiles)
	if err != nil {
		return err
	}

	// Planning never reaches the store, so no collaborator is needed.
	loader := engine.New(cat, nil, engine.WithRefKeyField(opts.RefKey))
	plan, err := loader.Plan(doc)
	if err != nil {
		return documentError(formatter, err)
	}

	steps := plan.Steps()
	if formatter.Format == "json" {
		return formatter.Success(PlanReport{Steps: steps})
	}

	fmt.Fprintf(formatter.Writer, "Plan: %d record(s)\n", len(steps))
	for i, step := range steps {
		fmt.Fprintf(formatter.Writer, "%4d. %s %s\n", i+1, step.Type, step.Key)
	}
	return nil
}
