// Package cli implements the seedloom command line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/document"
	"github.com/seedloom/seedloom/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the seedloom CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "seedloom",
		Short: "Seedloom - declarative seed data loader",
		Long:  "Load declarative seed documents into a database: references resolved, creation order derived, everything in one transaction.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setupLogging configures the default slog logger from the verbose flag.
func setupLogging(opts *RootOptions) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadInputs reads the model catalog and parses the seed documents. Shared
// by load, plan and validate.
func loadInputs(modelsDir string, seedFiles []string) (*catalog.Catalog, document.Document, error) {
	cat, err := catalog.Load(modelsDir)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load models", err)
	}
	doc, err := document.ParseFiles(seedFiles)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to parse seed documents", err)
	}
	return cat, doc, nil
}

// documentError renders an engine load error and maps it to exit code 1.
// Errors that are not LoadErrors fall through as command errors.
func documentError(formatter *OutputFormatter, err error) error {
	var le *engine.LoadError
	if !errors.As(err, &le) {
		_ = formatter.Error("COMMAND", err.Error(), nil)
		return WrapExitError(ExitCommandError, "command failed", err)
	}

	details := map[string]any{}
	if le.Key != "" {
		details["key"] = le.Key
	}
	if le.EntityType != "" {
		details["entityType"] = le.EntityType
	}
	if len(le.Cycle) > 0 {
		details["cycle"] = le.Cycle
	}
	if len(details) == 0 {
		details = nil
	}
	_ = formatter.Error(string(le.Code), le.Message, details)
	return WrapExitError(ExitFailure, "load failed", err)
}
