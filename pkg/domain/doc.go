/*
Package domain contains the core types of the Cadence dialogue runtime.

It defines the compiled program model, tagged variable values, the session
state machine and the errors shared by every other package. This package is
kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Program: An immutable, index-addressed sequence of Instructions.
  - Instruction: One of line, set_var, event, choice, jump, branch_if_false, end, call, return.
  - Value: A tagged number, string or boolean variable value.
  - Snapshot: What a session reports to the host after each call (text, options, fired events).
  - Checkpoint: The persisted variable snapshot of a session.
*/
package domain
