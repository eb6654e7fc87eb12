package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/arflow/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// CompileModel parses a CUE value into a ModelDecl.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: ar6: { lags: 6 }`)
//	decl, err := CompileModel(v.LookupPath(cue.ParsePath("model.ar6")))
//
// The value is unified with the embedded #Model schema first, so defaults
// are filled in and support constraints (positive scales, lags >= 1) are
// enforced by CUE before any field is read.
func CompileModel(v cue.Value) (*ir.ModelDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Model")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	decl := &ir.ModelDecl{}

	// Model name comes from the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		decl.Name = labels[len(labels)-1].String()
	}

	lags, err := lookupInt(unified, "lags")
	if err != nil {
		return nil, err
	}
	decl.Lags = int(lags)

	if decl.Intercept.Location, err = lookupFloat(unified, "intercept.location"); err != nil {
		return nil, err
	}
	if decl.Intercept.Scale, err = lookupFloat(unified, "intercept.scale"); err != nil {
		return nil, err
	}
	if decl.GlobalScale, err = lookupFloat(unified, "coefficients.horseshoe.global_scale"); err != nil {
		return nil, err
	}
	if decl.SigmaScale, err = lookupFloat(unified, "scale.half_cauchy.scale"); err != nil {
		return nil, err
	}

	return decl, nil
}

// CompileModels compiles every model under the top-level "model" struct.
// Models are returned in declaration order.
func CompileModels(root cue.Value) ([]ir.ModelDecl, error) {
	modelsVal := root.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &CompileError{
			Field:   "model",
			Message: "no model declarations found",
			Pos:     root.Pos(),
		}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ir.ModelDecl
	for iter.Next() {
		decl, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, *decl)
	}
	if len(decls) == 0 {
		return nil, &CompileError{
			Field:   "model",
			Message: "at least one model is required",
			Pos:     modelsVal.Pos(),
		}
	}
	return decls, nil
}

func lookupInt(v cue.Value, path string) (int64, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return 0, &CompileError{Field: path, Message: "field is required", Pos: v.Pos()}
	}
	n, err := field.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func lookupFloat(v cue.Value, path string) (float64, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return 0, &CompileError{Field: path, Message: "field is required", Pos: v.Pos()}
	}
	f, err := field.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}
