// Package schema validates program wire documents against the embedded JSON
// Schema (program.schema.json) before they are decoded.
//
// A document looks like:
//
//	name: intro
//	variables:
//	  - {name: gold, type: number, value: 0}
//	instructions:
//	  - kind: line
//	    line_id: l1
//	    operands: {text: "Hello, {name}."}
//	  - kind: event
//	    line_id: l1
//	    operands: {threshold: 3, id: flash}
//	  - kind: end
//
// Structural checks that need the whole program (targets in range, the last
// instruction being a terminator) are left to the runtime validator.
package schema
