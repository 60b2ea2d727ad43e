package cli

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/seedloom/seedloom/internal/engine"
	"github.com/seedloom/seedloom/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database string
	Models   string
	RefKey   string
}

// LoadReport is the serializable outcome of a load run.
type LoadReport struct {
	Created      map[string]int `json:"created"`
	Total        int            `json:"total"`
	Associations int            `json:"associations"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <seed-file>...",
		Short: "Load seed documents into the database",
		Long: `Load one or more declarative seed documents into a SQLite database.

Documents are merged (later files override earlier ones per declaration
list), references are resolved, a creation order is derived, and all
records are materialized inside a single transaction. Any error rolls the
whole run back.

Example:
  seedloom load --db ./dev.db --models ./models seeds/base.yaml seeds/demo.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Models, "models", "", "path to CUE model catalog directory (required)")
	cmd.Flags().StringVar(&opts.RefKey, "ref-key", engine.DefaultRefKeyField, "document field that marks an explicit reference key")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runLoad(opts *LoadOptions, seedFiles []string, cmd *cobra.Command) error {
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

	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database, cat)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	loader := engine.New(cat, st, engine.WithRefKeyField(opts.RefKey))
	result, err := loader.Load(cmd.Context(), doc)
	if err != nil {
		return documentError(formatter, err)
	}

	report := LoadReport{
		Created:      result.Created,
		Total:        result.Total(),
		Associations: result.Associations,
	}
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "Loaded %d record(s), %d association(s)\n", report.Total, report.Associations)
	types := make([]string, 0, len(report.Created))
	for typ := range report.Created {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Fprintf(formatter.Writer, "  %-*s %d\n", maxLen(types)+2, typ, report.Created[typ])
	}
	return nil
}

func maxLen(ss []string) int {
	n := 0
	for _, s := range ss {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}
