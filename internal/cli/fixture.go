package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/livelist/internal/ir"
)

// Fixture is a tree of seed data loaded from a CUE file. Nested structs are
// paths; the fields of the struct at a query path are its children.
//
//	rooms: lobby: {
//		m1: {text: "hi", ts: 1}
//		m2: {text: "yo", ts: 2}
//	}
type Fixture struct {
	File  string
	Value cue.Value
}

// LoadError represents an error that occurred while loading a fixture.
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

// LoadFixture loads and evaluates a single CUE file. The result must be
// concrete.
func LoadFixture(path string) (*Fixture, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixture not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error accessing fixture: %v", err)}
	}
	if info.IsDir() || filepath.Ext(path) != ".cue" {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("not a CUE file: %s", path)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: filepath.Dir(path)}
	instances := load.Instances([]string{filepath.Base(path)}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE file: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("building CUE value: %v", err), Pos: value.Pos()}
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("fixture is not concrete: %v", err)}
	}

	return &Fixture{File: path, Value: value}, nil
}

// Children converts the fields of the struct at path into child values.
// An empty path selects the root. A missing path has no children.
func (f *Fixture) Children(path string) (map[string]ir.Value, error) {
	v := f.Value
	if sel := pathSelectors(path); len(sel) > 0 {
		v = v.LookupPath(cue.MakePath(sel...))
	}
	if !v.Exists() {
		return map[string]ir.Value{}, nil
	}
	if v.Kind() != cue.StructKind {
		return nil, &LoadError{
			Code:    ErrCodeInvalidValue,
			Message: fmt.Sprintf("%s: expected a struct of children, got %v", displayPath(path), v.Kind()),
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", displayPath(path), err)}
	}
	children := make(map[string]ir.Value)
	for iter.Next() {
		key := iter.Selector().Unquoted()
		val, err := cueToValue(iter.Value())
		if err != nil {
			return nil, err
		}
		children[key] = val
	}
	return children, nil
}

// cueToValue converts a concrete CUE value into a Value. Floats and bytes
// are rejected.
func cueToValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, convertError(v, err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, convertError(v, err)
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, convertError(v, err)
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, convertError(v, err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, convertError(v, err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Selector().Unquoted()] = elem
		}
		return obj, nil
	case cue.FloatKind:
		return nil, &LoadError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%v: floats are not supported", v.Path()), Pos: v.Pos()}
	default:
		return nil, &LoadError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%v: unsupported kind %v", v.Path(), v.Kind()), Pos: v.Pos()}
	}
}

func convertError(v cue.Value, err error) error {
	return &LoadError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%v: %v", v.Path(), err), Pos: v.Pos()}
}

// pathSelectors splits a slash-separated feed path into CUE selectors.
func pathSelectors(path string) []cue.Selector {
	var sel []cue.Selector
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			sel = append(sel, cue.Str(seg))
		}
	}
	return sel
}

func displayPath(path string) string {
	if strings.Trim(path, "/") == "" {
		return "/"
	}
	return path
}
