package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sagastore/internal/scenario"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-or-dir>...",
		Short: "Validate scenarios without running them",
		Long: `Parse and validate scenario files without running them.

Checks unknown fields, saga kinds, step and assertion fields, and rejects
sagas that would emit each other in a cycle. Directories are searched for
.yaml, .yml, and .cue files.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("path not found: %s", p), nil)
			return WrapExitError(ExitCommandError, "path not found", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := findScenarioFiles(p, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		_ = formatter.Error(ErrCodeNotFound, "no scenario files found", nil)
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		fv := validateFile(file)
		formatter.VerboseLog("validated %s: %t", file, fv.Valid)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.Failure(ErrCodeLoad, "validation failed", result); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, "validation failed")
	}

	w := cmd.OutOrStdout()
	invalid := 0
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Name)
			continue
		}
		invalid++
		fmt.Fprintf(w, "✗ %s\n  %s\n", fv.File, fv.Error)
	}

	if invalid > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%d of %d scenario(s) invalid", invalid, len(result.Files)))
	}
	fmt.Fprintf(w, "All %d scenario(s) valid\n", len(result.Files))
	return nil
}

func validateFile(file string) FileValidation {
	fv := FileValidation{File: file}

	sc, err := scenario.Load(file)
	if err != nil {
		fv.Error = err.Error()
		var le *scenario.LoadError
		if errors.As(err, &le) && le.Pos.IsValid() {
			fv.Line = le.Pos.Line()
		}
		return fv
	}

	fv.Name = sc.Name
	fv.Valid = true
	return fv
}
