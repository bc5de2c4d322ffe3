package cadence

import "time"

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/aretw0/cadence.Version=...".
var Version = "0.3.0-dev"

// now is replaced in tests that need stable checkpoint timestamps.
var now = time.Now
