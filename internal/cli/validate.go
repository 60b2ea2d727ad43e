package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedloom/seedloom/internal/engine"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Models string
	RefKey string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Records int    `json:"records,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <seed-file>...",
		Short: "Validate seed documents without loading",
		Long: `Validate seed documents against the model catalog: shape, reference
keys, relation fields and orderability. Store lookups are not checked;
a document that validates can still fail at load time when a lookup
matches zero or several records.

Example:
  seedloom validate --models ./models seeds/base.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Models, "models", "", "path to CUE model catalog directory (required)")
	cmd.Flags().StringVar(&opts.RefKey, "ref-key", engine.DefaultRefKeyField, "document field that marks an explicit reference key")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runValidate(opts *ValidateOptions, seedFiles []string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("parsed %d seed file(s)", len(seedFiles))

	loader := engine.New(cat, nil, engine.WithRefKeyField(opts.RefKey))
	plan, err := loader.Plan(doc)
	if err != nil {
		var le *engine.LoadError
		if !errors.As(err, &le) {
			return WrapExitError(ExitCommandError, "validation failed", err)
		}
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{
				Valid:   false,
				Code:    string(le.Code),
				Message: le.Message,
			})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintf(formatter.Writer, "  %s\n", le.Error())
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Records: len(plan.Order)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Documents valid (%d record(s))\n", len(plan.Order))
	return nil
}
