package compiler

import (
	"encoding/json"

	"github.com/aretw0/cadence/internal/dto"
	"github.com/aretw0/cadence/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ToDocument converts a program back to its wire form.
func ToDocument(p *domain.Program) *dto.ProgramDocument {
	doc := &dto.ProgramDocument{
		Name:         p.Name,
		Instructions: make([]dto.InstructionDocument, len(p.Instructions)),
	}
	for _, e := range p.Enums {
		doc.Enums = append(doc.Enums, dto.EnumDocument{Name: e.Name, Variants: e.Variants})
	}
	for _, v := range p.Variables {
		doc.Variables = append(doc.Variables, variableDocument(v))
	}
	for _, c := range p.Constants {
		cd := dto.ConstantDocument{Name: c.Name, Value: c.Value.Any(), Public: c.Public}
		if c.Value.Type != domain.TypeString {
			cd.Type = string(c.Value.Type)
		}
		doc.Constants = append(doc.Constants, cd)
	}
	for i, ins := range p.Instructions {
		doc.Instructions[i] = instructionDocument(ins)
	}
	return doc
}

func variableDocument(v domain.VariableDecl) dto.VariableDocument {
	out := dto.VariableDocument{Name: v.Name, Type: string(v.Type), Enum: v.Enum, Value: v.Value.Any()}
	if v.Branch == nil {
		return out
	}
	b := &dto.BranchDocument{On: v.Branch.On}
	for _, c := range v.Branch.Cases {
		cd := dto.CaseDocument{When: c.When, Text: c.Text}
		for _, e := range c.Events {
			ed := dto.EventDocument{Offset: e.Offset, ID: e.Event.ID}
			for _, a := range e.Event.Args {
				ed.Args = append(ed.Args, a.Any())
			}
			cd.Events = append(cd.Events, ed)
		}
		b.Cases = append(b.Cases, cd)
	}
	out.Branch = b
	return out
}

func instructionDocument(ins domain.Instruction) dto.InstructionDocument {
	out := dto.InstructionDocument{Kind: string(ins.Kind), LineID: ins.LineID}
	target := func() *int {
		t := ins.Target
		return &t
	}

	switch ins.Kind {
	case domain.KindLine:
		out.Operands = &dto.Operands{Text: ins.Text, Length: ins.Length}
	case domain.KindSetVar:
		out.Operands = &dto.Operands{Var: ins.Var, Op: string(ins.Op), Value: ins.Value.Any()}
		// Strings are never ambiguous, numbers and booleans keep their tag explicit.
		if ins.Value.Type != domain.TypeString {
			out.Operands.Type = string(ins.Value.Type)
		}
	case domain.KindEvent:
		ops := &dto.Operands{Threshold: ins.Threshold, ThresholdVar: ins.ThresholdVar, ID: ins.Event.ID}
		for _, a := range ins.Event.Args {
			ops.Args = append(ops.Args, a.Any())
		}
		out.Operands = ops
	case domain.KindChoice:
		ops := &dto.Operands{SaveTo: ins.SaveTo}
		for _, o := range ins.Options {
			ops.Options = append(ops.Options, dto.OptionDocument{Text: o.Text, Target: o.Target})
		}
		out.Operands = ops
	case domain.KindJump, domain.KindCall:
		out.Operands = &dto.Operands{Target: target()}
	case domain.KindBranchIfFalse:
		out.Operands = &dto.Operands{Target: target(), Cond: conditionDocument(ins.Cond)}
	}
	return out
}

func conditionDocument(c *domain.Condition) any {
	if c == nil {
		return nil
	}
	if c.Type == domain.CondIdentifier {
		return c.Name
	}
	m := map[string]any{"type": string(c.Type)}
	switch c.Type {
	case domain.CondLiteral:
		m["value"] = c.Value.Any()
	case domain.CondBinary:
		m["op"] = c.Op
		m["left"] = conditionDocument(c.Left)
		m["right"] = conditionDocument(c.Right)
	case domain.CondUnary:
		m["op"] = c.Op
		m["operand"] = conditionDocument(c.Operand)
	case domain.CondCall:
		m["func"] = c.Func
		args := make([]any, len(c.Args))
		for i, a := range c.Args {
			args[i] = conditionDocument(a)
		}
		m["args"] = args
	}
	return m
}

// MarshalJSON encodes a program as an indented JSON wire document.
func MarshalJSON(p *domain.Program) ([]byte, error) {
	return json.MarshalIndent(ToDocument(p), "", "  ")
}

// MarshalYAML encodes a program as a YAML wire document.
func MarshalYAML(p *domain.Program) ([]byte, error) {
	return yaml.Marshal(ToDocument(p))
}
