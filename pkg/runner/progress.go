package runner

import "time"

// ProgressSource produces the progress index pushed for the current line.
// The runtime never reads a clock; hosts pick one of these (or their own).
type ProgressSource interface {
	// Start is called when a new line is entered.
	Start(lineID string, length int)
	// Tick returns the next progress index. It never decreases within a line.
	Tick() int
}

// Typewriter reveals Rate graphemes per tick.
type Typewriter struct {
	Rate int

	pos    int
	length int
}

// NewTypewriter creates a typewriter revealing rate graphemes per tick.
func NewTypewriter(rate int) *Typewriter {
	return &Typewriter{Rate: max(rate, 1)}
}

func (t *Typewriter) Start(_ string, length int) {
	t.pos = 0
	t.length = length
}

func (t *Typewriter) Tick() int {
	t.pos = min(t.pos+max(t.Rate, 1), t.length)
	return t.pos
}

// Timeline reports the milliseconds elapsed since the line started, for lines
// whose length is a voice-over duration.
type Timeline struct {
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	start time.Time
}

func (t *Timeline) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

func (t *Timeline) Start(_ string, _ int) {
	t.start = t.now()
}

func (t *Timeline) Tick() int {
	return int(t.now().Sub(t.start).Milliseconds())
}

// Manual completes every line on its first tick.
type Manual struct {
	length int
}

func (m *Manual) Start(_ string, length int) {
	m.length = length
}

func (m *Manual) Tick() int {
	return m.length
}
