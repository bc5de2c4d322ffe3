/*
Package runner hosts cadence sessions.

The runtime is call-driven and never reads a clock; this package supplies
the host side of the progress contract:

  - Runner: plays a session end to end, ticking a ProgressSource, dispatching
    fired events, presenting snapshots and submitting choices.
  - ProgressSource: Typewriter (graphemes per tick), Timeline (elapsed
    milliseconds) and Manual (instant) sources.
  - Dispatcher: routes events to host handlers by event ID, with middleware.
  - TextHandler and JSONHandler: terminal and JSON Lines presentation.
  - StepAndDispatch, ChooseAndStep and ResetAndReport: one-call helpers for
    request/response hosts.

# Usage

	d := runner.NewDispatcher()
	d.Handle("sound:beep", playBeep)

	r := runner.NewRunner(
		runner.WithDispatcher(d),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithProgress(runner.NewTypewriter(2)),
	)
	if err := r.Run(ctx, sess); err != nil {
		log.Fatal(err)
	}
*/
package runner
