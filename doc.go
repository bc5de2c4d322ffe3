/*
Package cadence is a resumable interpreter for compiled dialogue scripts that
keeps script events in step with the host's presentation of each line.

A compiled program is a flat sequence of instructions (line, set_var, event,
choice, jump, branch_if_false, call, return, end). The host drives a session
by pushing a progress index for the line on screen, typically the number of
characters revealed so far or the milliseconds of voice-over played. Events
bound to a line fire exactly once, in threshold order, as progress passes them.

# Concept

The engine never reads a clock and never blocks. Everything happens inside
Step, SubmitChoice and ResetLine, so the same inputs always produce the same
events. Hosts decide what an event means (camera shake, sound cue, portrait
change) and how progress is measured.

# Key Features

  - Deterministic, call-driven execution with a loop guard and bounded call stack.
  - At-most-once event delivery per line presentation, with skip (ResetLine).
  - Typed variables with a lossless snapshot format.
  - Programs from Loam repositories, plain directories or memory, with hot reload.

# Usage

	eng, err := cadence.New("./scripts")
	if err != nil {
		log.Fatal(err)
	}

	sess, err := eng.LoadNamed("intro")
	if err != nil {
		log.Fatal(err)
	}

	progress := 0
	for {
		snap, err := sess.Step(progress)
		if err != nil {
			log.Fatal(err)
		}
		for _, ev := range snap.PendingEvents {
			log.Println("event:", ev.ID)
		}
		switch snap.State {
		case domain.StateFinished:
			return
		case domain.StateAwaitingChoice:
			_ = sess.SubmitChoice(0)
			progress = 0
			continue
		}
		progress = snap.Progress + 1
	}
*/
package cadence
