// Package variables implements the typed key/value store a dialogue session
// reads and writes while interpreting a program.
package variables

import (
	"math"
	"sort"

	"github.com/aretw0/cadence/pkg/domain"
)

// Store holds the variables of one session. A variable's type is fixed the
// first time it is set; later writes of another type are rejected. Numbers
// must stay finite, and enum variables only accept their variants.
//
// Store is not safe for concurrent use; a session owns its store.
type Store struct {
	vars     map[string]domain.Value
	enums    map[string]domain.EnumDecl
	branches map[string]domain.Branch
}

// New creates an empty store.
func New() *Store {
	return &Store{
		vars:     make(map[string]domain.Value),
		enums:    make(map[string]domain.EnumDecl),
		branches: make(map[string]domain.Branch),
	}
}

// FromDecls creates a store seeded with program-declared variables.
func FromDecls(decls []domain.VariableDecl, enums []domain.EnumDecl) *Store {
	s := New()
	s.Declare(decls, enums)
	return s
}

// Declare registers program declarations: enum constraints, branch
// variables and initial values. Variables that already hold a value keep it.
// Declarations naming an unknown enum or holding an invalid value are
// skipped; programs are validated before they reach a store.
func (s *Store) Declare(decls []domain.VariableDecl, enums []domain.EnumDecl) {
	byName := make(map[string]domain.EnumDecl, len(enums))
	for _, e := range enums {
		byName[e.Name] = e
	}

	for _, d := range decls {
		if d.Branch != nil {
			s.branches[d.Name] = *d.Branch
			continue
		}

		v := d.Value
		if d.Enum != "" {
			e, ok := byName[d.Enum]
			if !ok || len(e.Variants) == 0 {
				continue
			}
			s.enums[d.Name] = e
			if v.IsZero() {
				v = domain.String(e.Variants[0])
			}
		} else if v.IsZero() {
			v = domain.Zero(d.Type)
		}

		if _, set := s.vars[d.Name]; set {
			continue
		}
		if v, err := s.check(d.Name, v); err == nil {
			s.vars[d.Name] = v
		}
	}
}

// check validates v as the next value of name and returns it normalized
// (enum variants lose their enum qualifier).
func (s *Store) check(name string, v domain.Value) (domain.Value, error) {
	if !v.Type.Valid() {
		return v, &domain.TypeMismatchError{Variable: name, Detail: "value has no type"}
	}
	if _, ok := s.branches[name]; ok {
		return v, &domain.TypeMismatchError{Variable: name, Detail: "branch variables cannot be assigned"}
	}
	if v.Type == domain.TypeNumber && (math.IsNaN(v.Num) || math.IsInf(v.Num, 0)) {
		return v, &domain.TypeMismatchError{Variable: name, Expected: domain.TypeNumber, Actual: v.Type, Detail: "number is not finite"}
	}
	if e, ok := s.enums[name]; ok {
		if v.Type != domain.TypeString {
			return v, &domain.TypeMismatchError{Variable: name, Expected: domain.TypeString, Actual: v.Type, Detail: "enum " + e.Name}
		}
		variant, ok := e.Variant(v.Str)
		if !ok {
			return v, &domain.TypeMismatchError{Variable: name, Expected: domain.TypeString, Actual: v.Type, Detail: "not a variant of " + e.Name + ": " + v.Str}
		}
		v = domain.String(variant)
	}
	return v, nil
}

// Set assigns a value. Assigning a value of a different type than the
// existing one returns a TypeMismatchError and leaves the store unchanged.
func (s *Store) Set(name string, v domain.Value) error {
	v, err := s.check(name, v)
	if err != nil {
		return err
	}
	if cur, ok := s.vars[name]; ok && cur.Type != v.Type {
		return &domain.TypeMismatchError{Variable: name, Expected: cur.Type, Actual: v.Type}
	}
	s.vars[name] = v
	return nil
}

// Lookup returns the raw value and whether it is set.
func (s *Store) Lookup(name string) (domain.Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Get reads a variable expecting the given type. Unset variables and type
// mismatches yield the zero value of want together with a recoverable error.
func (s *Store) Get(name string, want domain.ValueType) (domain.Value, error) {
	v, ok := s.vars[name]
	if !ok {
		return domain.Zero(want), &domain.UnsetVariableError{Variable: name}
	}
	if want != "" && v.Type != want {
		return domain.Zero(want), &domain.TypeMismatchError{Variable: name, Expected: want, Actual: v.Type}
	}
	return v, nil
}

// Increment adds delta to a number variable. An unset variable starts at zero.
func (s *Store) Increment(name string, delta float64) error {
	return s.Apply(name, domain.OpAdd, domain.Number(delta))
}

// Apply combines v with the current value according to op. OpAdd adds
// numbers and concatenates strings; any other pairing is a TypeMismatchError
// and the store is left unchanged.
func (s *Store) Apply(name string, op domain.AssignOp, v domain.Value) error {
	if op == domain.OpSet || op == "" {
		return s.Set(name, v)
	}
	if op != domain.OpAdd {
		return &domain.TypeMismatchError{Variable: name, Detail: "unknown operator " + string(op)}
	}

	cur, ok := s.vars[name]
	if !ok {
		return s.Set(name, v)
	}
	if cur.Type != v.Type {
		return &domain.TypeMismatchError{Variable: name, Expected: cur.Type, Actual: v.Type}
	}

	var next domain.Value
	switch cur.Type {
	case domain.TypeNumber:
		next = domain.Number(cur.Num + v.Num)
	case domain.TypeString:
		next = domain.String(cur.Str + v.Str)
	default:
		return &domain.TypeMismatchError{Variable: name, Expected: domain.TypeNumber, Actual: cur.Type, Detail: "cannot add booleans"}
	}
	return s.Set(name, next)
}

// Branch resolves a branch variable. ok is false when name is not a branch
// variable; the returned case is nil when no case currently matches.
func (s *Store) Branch(name string) (c *domain.BranchCase, ok bool) {
	b, ok := s.branches[name]
	if !ok {
		return nil, false
	}
	if b.On != "" {
		v, set := s.vars[b.On]
		if !set || v.Type != domain.TypeString {
			return nil, true
		}
		e := s.enums[b.On]
		variant, _ := e.Variant(v.Str)
		for i := range b.Cases {
			if when, _ := e.Variant(b.Cases[i].When); when == variant {
				return &b.Cases[i], true
			}
		}
		return nil, true
	}
	for i := range b.Cases {
		if v, set := s.vars[b.Cases[i].When]; set && v.Type == domain.TypeBoolean && v.Bool {
			return &b.Cases[i], true
		}
	}
	return nil, true
}

// Delete removes a variable.
func (s *Store) Delete(name string) {
	delete(s.vars, name)
}

// Len returns the number of variables.
func (s *Store) Len() int {
	return len(s.vars)
}

// Names returns the sorted variable names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of every variable.
func (s *Store) Snapshot() domain.VariableSnapshot {
	out := make(domain.VariableSnapshot, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Restore replaces the store contents with snap. Every entry is validated
// first; on error nothing is applied.
func (s *Store) Restore(snap domain.VariableSnapshot) error {
	next := make(map[string]domain.Value, len(snap))
	for k, v := range snap {
		if k == "" {
			return &domain.TypeMismatchError{Detail: "empty variable name"}
		}
		if !v.Type.Valid() {
			return &domain.TypeMismatchError{Variable: k, Detail: "unknown type tag " + string(v.Type)}
		}
		v, err := s.check(k, v)
		if err != nil {
			return err
		}
		next[k] = v
	}
	s.vars = next
	return nil
}
