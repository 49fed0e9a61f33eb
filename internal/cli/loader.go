package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/IniZio/reim/internal/harness"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No scenario files found
	ErrCodeLoadFailed  = "E004" // Scenario could not be loaded
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeParseFailed = "E006" // State document could not be parsed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeListen      = "E008" // Server could not listen

	ErrCodeInvalidScenario = "E101" // Scenario failed validation
	ErrCodeInitialState    = "E102" // initial_file could not be loaded
)

// LoadError represents a scenario that could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FindScenarios expands paths into scenario files. Files are taken as
// given; directories are walked for .yaml and .yml files. filter is a
// glob matched against the file name without extension. The result is
// sorted and free of duplicates.
func FindScenarios(paths []string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Path: filter, Message: fmt.Sprintf("invalid filter pattern: %v", err)}
		}
	}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "path not found"}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Path: path, Message: err.Error()}
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isScenarioFile(p) {
				return nil
			}
			if filter != "" {
				name := strings.TrimSuffix(d.Name(), filepath.Ext(p))
				if ok, _ := filepath.Match(filter, name); !ok {
					return nil
				}
			}
			files = append(files, p)
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Path: path, Message: err.Error()}
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

func isScenarioFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

func loadErrorCode(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound
	case errors.Is(err, harness.ErrInvalidScenario):
		return ErrCodeInvalidScenario
	default:
		return ErrCodeLoadFailed
	}
}

// goldenFilePath returns the golden file of a scenario file:
// <dir>/golden/<name>.golden.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}
