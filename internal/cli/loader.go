package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/arflow/internal/compiler"
	"github.com/roach88/arflow/internal/ir"
)

// LoadMode controls how errors are handled during model loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the models loaded from a file or directory.
type LoadResult struct {
	Models    []ir.ModelDecl
	FileCount int
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModels loads and compiles the CUE model declarations at path, which is
// either a .cue file or a directory searched recursively.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadModels(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model path: %v", err)}}
	}

	var dir string
	var args []string
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		dir = path
		for _, f := range files {
			rel, err := filepath.Rel(path, f)
			if err != nil {
				return nil, []error{&LoadError{Code: ErrCodeScanError, Message: err.Error()}}
			}
			args = append(args, "./"+filepath.ToSlash(rel))
		}
	} else {
		dir = filepath.Dir(path)
		args = []string{"./" + filepath.Base(path)}
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(args)}
	return result, compileModels(value, result, mode)
}

// compileModels compiles every declaration under the top-level "model"
// struct into result.
func compileModels(value cue.Value, result *LoadResult, mode LoadMode) []error {
	modelsVal := value.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return []error{&LoadError{Code: ErrCodeNoModels, Message: "no model declarations found"}}
	}
	iter, err := modelsVal.Fields()
	if err != nil {
		return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating models: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		decl, compileErr := compiler.CompileModel(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "model."+iter.Label()))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}
		result.Models = append(result.Models, *decl)
	}
	if len(result.Models) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoModels, Message: "no model declarations found"})
	}
	return errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeSchema,
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// resolveModel picks the declaration a command fits or simulates from.
//
// With a model path, the model named name is used, or the only model when
// name is empty. Without a path, the default declaration of order lags is
// used. The result always passes compiler.Validate.
func resolveModel(path, name string, lags int) (ir.ModelDecl, error) {
	var decl ir.ModelDecl
	if path == "" {
		if lags < 1 {
			return decl, NewExitError(ExitCommandError, "a model file (--model) or lag order (--lags) is required")
		}
		decl = ir.DefaultModelDecl(lags)
	} else {
		result, errs := LoadModels(path, LoadModeFailFast)
		if len(errs) > 0 {
			return decl, WrapExitError(ExitCommandError, "failed to load model", errs[0])
		}
		found := false
		for _, m := range result.Models {
			if m.Name == name || (name == "" && len(result.Models) == 1) {
				decl, found = m, true
				break
			}
		}
		if !found {
			if name == "" {
				return decl, NewExitError(ExitCommandError,
					fmt.Sprintf("%s declares %d models; choose one with --model-name", path, len(result.Models)))
			}
			return decl, NewExitError(ExitCommandError, fmt.Sprintf("model %q not found in %s", name, path))
		}
	}

	if errs := compiler.Validate(decl); len(errs) > 0 {
		return decl, WrapExitError(ExitCommandError, "invalid model", errs[0])
	}
	return decl, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoModels    = "E007" // No model declarations

	ErrCodeSchema = "E200" // Model fails the CUE schema

	// Pipeline errors
	ErrCodeGateUnmet   = "E301" // Diagnostics gate unmet
	ErrCodeNotCovered  = "E302" // Truth outside posterior interval
	ErrCodeStudyFailed = "E303" // Recovery study assertions failed
	ErrCodeIncomplete  = "E304" // Fit stopped before finishing
)
