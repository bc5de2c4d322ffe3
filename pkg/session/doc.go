/*
Package session keeps dialogue sessions addressable by ID for hosts that serve
many players at once (HTTP, MCP).

The Manager serializes operations per session, persists checkpoints through a
ports.CheckpointStore and resumes sessions from them in another process. A
checkpoint holds the program name and the variables; a resumed session starts
the program again with those variables. Sessions whose program was reloaded
are restarted the same way on their next access.
*/
package session
