package compiler

import (
	"fmt"

	"github.com/aretw0/cadence/internal/dto"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser converts program wire documents (JSON or YAML) into domain programs.
type Parser struct {
	skipSchema bool
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithoutSchema skips the JSON Schema check. Decoding errors are still reported.
func WithoutSchema() ParserOption {
	return func(p *Parser) {
		p.skipSchema = true
	}
}

// NewParser creates a new parser instance.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw bytes. JSON is accepted since it is valid YAML.
func (p *Parser) Parse(data []byte) (*domain.Program, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("failed to parse program: empty document")
	}
	return p.ParseMap(raw)
}

// ParseMap decodes an already unmarshalled document, e.g. Loam frontmatter.
func (p *Parser) ParseMap(raw map[string]any) (*domain.Program, error) {
	if !p.skipSchema {
		if err := schema.Validate(raw); err != nil {
			return nil, err
		}
	}

	var doc dto.ProgramDocument
	if err := mapstructure.Decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode program: %w", err)
	}
	return FromDocument(&doc)
}

// FromDocument converts the wire DTO to a domain program. Operand values are
// coerced to tagged values; the structural checks are left to the runtime
// validator.
func FromDocument(doc *dto.ProgramDocument) (*domain.Program, error) {
	prog := &domain.Program{
		Name:         doc.Name,
		Instructions: make([]domain.Instruction, len(doc.Instructions)),
	}

	for _, e := range doc.Enums {
		prog.Enums = append(prog.Enums, domain.EnumDecl{Name: e.Name, Variants: e.Variants})
	}

	for _, v := range doc.Variables {
		decl, err := variable(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		prog.Variables = append(prog.Variables, decl)
	}

	for _, c := range doc.Constants {
		val, err := domain.Coerce(domain.ValueType(c.Type), c.Value)
		if err != nil {
			return nil, fmt.Errorf("constant %q: %w", c.Name, err)
		}
		prog.Constants = append(prog.Constants, domain.Constant{Name: c.Name, Value: val, Public: c.Public})
	}

	for i, in := range doc.Instructions {
		ins, err := instruction(in)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in.Kind, err)
		}
		prog.Instructions[i] = ins
	}
	return prog, nil
}

func variable(v dto.VariableDocument) (domain.VariableDecl, error) {
	decl := domain.VariableDecl{Name: v.Name, Type: domain.ValueType(v.Type), Enum: v.Enum}
	if decl.Enum != "" && decl.Type == "" {
		decl.Type = domain.TypeString
	}
	if v.Value != nil {
		val, err := domain.Coerce(decl.Type, v.Value)
		if err != nil {
			return decl, err
		}
		decl.Value = val
	}
	if v.Branch == nil {
		return decl, nil
	}

	b := &domain.Branch{On: v.Branch.On}
	for _, c := range v.Branch.Cases {
		bc := domain.BranchCase{When: c.When, Text: c.Text}
		for _, e := range c.Events {
			ev := domain.BranchEvent{Offset: e.Offset, Event: domain.EventPayload{ID: e.ID}}
			for _, a := range e.Args {
				val, err := domain.Coerce("", a)
				if err != nil {
					return decl, fmt.Errorf("event %q argument: %w", e.ID, err)
				}
				ev.Event.Args = append(ev.Event.Args, val)
			}
			bc.Events = append(bc.Events, ev)
		}
		b.Cases = append(b.Cases, bc)
	}
	decl.Branch = b
	return decl, nil
}

func instruction(in dto.InstructionDocument) (domain.Instruction, error) {
	ins := domain.Instruction{Kind: domain.Kind(in.Kind), LineID: in.LineID}
	ops := in.Operands
	if ops == nil {
		ops = &dto.Operands{}
	}
	if ops.Target != nil {
		ins.Target = *ops.Target
	}

	switch ins.Kind {
	case domain.KindLine:
		ins.Text = ops.Text
		ins.Length = ops.Length

	case domain.KindSetVar:
		ins.Var = ops.Var
		ins.Op = domain.AssignOp(ops.Op)
		if ins.Op == "" {
			ins.Op = domain.OpSet
		}
		v, err := domain.Coerce(domain.ValueType(ops.Type), ops.Value)
		if err != nil {
			return ins, err
		}
		ins.Value = v

	case domain.KindEvent:
		ins.Threshold = ops.Threshold
		ins.ThresholdVar = ops.ThresholdVar
		ins.Event = domain.EventPayload{ID: ops.ID}
		for _, a := range ops.Args {
			v, err := domain.Coerce("", a)
			if err != nil {
				return ins, fmt.Errorf("event %q argument: %w", ops.ID, err)
			}
			ins.Event.Args = append(ins.Event.Args, v)
		}

	case domain.KindChoice:
		ins.SaveTo = ops.SaveTo
		for _, o := range ops.Options {
			ins.Options = append(ins.Options, domain.ChoiceOption{Text: o.Text, Target: o.Target})
		}

	case domain.KindBranchIfFalse:
		c, err := condition(ops.Cond)
		if err != nil {
			return ins, err
		}
		ins.Cond = c
	}
	return ins, nil
}

// condition accepts a bare variable name or a condition tree map.
func condition(raw any) (*domain.Condition, error) {
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return domain.Var(x), nil
	case map[string]any:
		return conditionMap(x)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = v
		}
		return conditionMap(m)
	}
	return nil, fmt.Errorf("condition must be a variable name or a tree, got %T", raw)
}

func conditionMap(m map[string]any) (*domain.Condition, error) {
	c := &domain.Condition{}
	c.Type = domain.ConditionType(str(m["type"]))
	c.Name = str(m["name"])
	c.Op = str(m["op"])
	c.Func = str(m["func"])

	if v, ok := m["value"]; ok {
		val, err := domain.Coerce("", v)
		if err != nil {
			return nil, err
		}
		c.Value = val
	}

	var err error
	if c.Left, err = condition(m["left"]); err != nil {
		return nil, err
	}
	if c.Right, err = condition(m["right"]); err != nil {
		return nil, err
	}
	if c.Operand, err = condition(m["operand"]); err != nil {
		return nil, err
	}
	if args, ok := m["args"].([]any); ok {
		for _, a := range args {
			ac, err := condition(a)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, ac)
		}
	}
	return c, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
