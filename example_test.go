package cadence_test

import (
	"fmt"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/dsl"
)

func Example() {
	b := dsl.New("intro")
	b.Line("hello", "Hello!").At(3, "sound:beep")
	b.End()

	eng, _ := cadence.New("")
	sess, _ := eng.Load(b.MustProgram())

	// Reveal two characters per tick, the way a typewriter effect would.
	for progress := 0; ; progress += 2 {
		snap, err := sess.Step(progress)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, ev := range snap.PendingEvents {
			fmt.Printf("progress %d: %s\n", progress, ev.ID)
		}
		if snap.State == domain.StateFinished {
			fmt.Println("done")
			return
		}
	}
	// Output:
	// progress 4: sound:beep
	// done
}

func ExampleSession_SubmitChoice() {
	b := dsl.New("door")
	b.Line("q", "Open the door?").Length(1)
	b.Choice(dsl.Opt("Yes", "open"), dsl.Opt("No", "leave")).SaveTo("opened")
	b.Label("open").Line("a", "It creaks.").End()
	b.Label("leave").Line("b", "You walk away.").End()

	eng, _ := cadence.New("")
	sess, _ := eng.Load(b.MustProgram())

	_, _ = sess.Step(0)
	snap, _ := sess.Step(1)
	fmt.Println(snap.State, snap.Options)

	fmt.Println(sess.SubmitChoice(3))
	_ = sess.SubmitChoice(1)
	snap, _ = sess.Step(0)
	fmt.Println(snap.Text, sess.SaveVariables()["opened"])
	// Output:
	// awaiting_choice [Yes No]
	// invalid choice 3: 2 option(s) available
	// You walk away. number(1)
}
