// Package schema checks raw order documents against an embedded CUE schema
// before they are decoded and reconciled.
//
// Decoding is lenient: unknown enum text degrades to the unset variant. The
// schema is strict and is used where malformed input should be reported
// rather than silently degraded, such as the validate command and scenario
// loading.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed order.cue
var orderCUE string

// ValidationError lists every schema violation in a document.
type ValidationError struct {
	Kind     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(e.Problems, "; "))
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validator holds the compiled schema. A cue.Context is not safe for
// concurrent use, so calls are serialized.
type Validator struct {
	mu    sync.Mutex
	ctx   *cue.Context
	order cue.Value
	patch cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(orderCUE, cue.Filename("order.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile order schema: %w", err)
	}
	return &Validator{
		ctx:   ctx,
		order: root.LookupPath(cue.ParsePath("#Order")),
		patch: root.LookupPath(cue.ParsePath("#Patch")),
	}, nil
}

// MustNew is New that panics on error. The schema is embedded, so an error
// here is a build defect.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Order validates a decoded document (maps, slices and scalars as produced
// by encoding/json or yaml.v3) as a complete order.
func (v *Validator) Order(doc any) error {
	return v.check("order", v.order, doc)
}

// Patch validates a partial order document, as used by scenario steps.
func (v *Validator) Patch(doc any) error {
	return v.check("patch", v.patch, doc)
}

// Orders validates each element of a list of order documents. Problems are
// prefixed with the element index.
func (v *Validator) Orders(docs []any) error {
	var problems []string
	for i, doc := range docs {
		if err := v.Order(doc); err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				return err
			}
			for _, p := range ve.Problems {
				problems = append(problems, fmt.Sprintf("[%d] %s", i, p))
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Kind: "orders", Problems: problems}
	}
	return nil
}

// OrderJSON decodes data and validates it as a single order.
func (v *Validator) OrderJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ValidationError{Kind: "order", Problems: []string{err.Error()}}
	}
	return v.Order(doc)
}

func (v *Validator) check(kind string, schema cue.Value, doc any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return &ValidationError{Kind: kind, Problems: problems(err)}
	}
	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Kind: kind, Problems: problems(err)}
	}
	return nil
}

// problems flattens a CUE error list into sorted-by-occurrence messages.
func problems(err error) []string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	seen := make(map[string]bool, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}
	return out
}
