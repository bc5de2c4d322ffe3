/*
Package dsl provides a Go builder for constructing cadence programs in code.

It is an alternative to hand-written wire documents, useful for tests, tools
and programs generated at runtime. Control flow uses symbolic labels that are
resolved to instruction indices when the program is built.

Example usage:

	b := dsl.New("tavern")
	b.Var("gold", domain.Number(3))

	b.Label("ask").
		Line("greet", "Welcome, traveler. Gold: {gold}").
		At(4, "door_creak").
		At(12, "music:start")
	b.Choice(dsl.Opt("Buy an ale", "buy"), dsl.Opt("Leave", "leave")).SaveTo("pick")

	b.Label("buy").
		Unless(domain.Bin(domain.OpGe, domain.Var("gold"), domain.Lit(domain.Number(1))), "broke").
		Add("gold", domain.Number(-1)).
		Jump("ask")

	b.Label("broke").Line("broke", "No coin, no ale.")
	b.Label("leave").End()

	program, err := b.Program()
*/
package dsl
