package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/IniZio/reim/internal/harness"
	"github.com/IniZio/reim/internal/loader"
)

// ValidationError describes one invalid scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir|scenario.yaml>...",
		Short: "Validate scenarios without running them",
		Long: `Validate YAML store scenarios without running them.

Checks unknown fields, action and step definitions, subscriber and
assertion references, and that every initial_file loads. Faster than test
for development feedback.`,
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
	formatter := opts.formatter(cmd)

	files, err := FindScenarios(paths, "")
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return formatter.fail(loadErr.Code, loadErr.Path+": "+loadErr.Message, nil)
		}
		return formatter.fail(ErrCodeScanError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return formatter.fail(ErrCodeNoFiles, "no scenario files found", nil)
	}

	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	var validationErrors []ValidationError
	for _, file := range files {
		sc, err := harness.LoadScenario(file)
		if err != nil {
			validationErrors = append(validationErrors, ValidationError{
				File:    file,
				Code:    loadErrorCode(err),
				Message: err.Error(),
			})
			continue
		}

		formatter.VerboseLog("Validating scenario: %s", sc.Name)
		if err := checkInitialFile(sc, file); err != nil {
			validationErrors = append(validationErrors, ValidationError{
				File:    file,
				Code:    ErrCodeInitialState,
				Message: err.Error(),
			})
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, len(files), validationErrors)
	}
	return outputValidateSuccess(formatter, len(files))
}

// checkInitialFile loads a scenario's initial_file the way a run would.
func checkInitialFile(sc *harness.Scenario, file string) error {
	if sc.InitialFile == "" {
		return nil
	}
	path := sc.InitialFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(file), path)
	}
	if _, err := loader.Load(path, loader.Options{Path: sc.InitialPath}); err != nil {
		return fmt.Errorf("initial_file: %w", err)
	}
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d scenario(s) valid\n", files)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, files int, errs []ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Files: files, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintln(formatter.Writer, err.File)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
