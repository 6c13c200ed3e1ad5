package transform

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step is a stage of an operation as shown to the user.
type Step string

const (
	StepPreparing    Step = "preparing"
	StepSending      Step = "sending"
	StepProcessing   Step = "processing"
	StepApplying     Step = "applying"
	StepHighlighting Step = "highlighting"
	StepCompleted    Step = "completed"
	StepFailed       Step = "failed"
)

// Steps lists the successful steps in the order they are reported.
var Steps = []Step{StepPreparing, StepSending, StepProcessing, StepApplying, StepHighlighting, StepCompleted}

// Theme selects the wording of progress messages.
type Theme string

const (
	ThemeMagical Theme = "magical"
	ThemeTech    Theme = "tech"
	ThemeCooking Theme = "cooking"

	// ThemeRandom picks one of the themes for every operation.
	ThemeRandom Theme = "random"
)

// Themes lists the concrete themes.
var Themes = []Theme{ThemeMagical, ThemeTech, ThemeCooking}

var themeMessages = map[Theme]map[Step]string{
	ThemeMagical: {
		StepPreparing:    "Summoning the prompt wizards...",
		StepSending:      "Casting transformation spells...",
		StepProcessing:   "Deciphering magical runes...",
		StepApplying:     "Infusing document with enchantments...",
		StepHighlighting: "Adding magical highlights...",
		StepCompleted:    "The spell is complete!",
	},
	ThemeTech: {
		StepPreparing:    "Initializing neural networks...",
		StepSending:      "Transmitting to AI headquarters...",
		StepProcessing:   "Parsing quantum algorithms...",
		StepApplying:     "Integrating enhanced data structures...",
		StepHighlighting: "Applying semantic highlighting...",
		StepCompleted:    "Transformation protocol complete!",
	},
	ThemeCooking: {
		StepPreparing:    "Gathering prompt ingredients...",
		StepSending:      "Mixing in the secret sauce...",
		StepProcessing:   "Letting flavors develop...",
		StepApplying:     "Plating your gourmet prompt...",
		StepHighlighting: "Adding the final garnish...",
		StepCompleted:    "Your prompt is served!",
	},
}

// IsValidTheme reports whether name is a concrete theme or "random".
func IsValidTheme(name string) bool {
	if Theme(name) == ThemeRandom {
		return true
	}
	_, ok := themeMessages[Theme(name)]
	return ok
}

// Message returns the themed text for step. Steps without themed wording,
// such as StepFailed, return "".
func Message(theme Theme, step Step) string {
	return themeMessages[theme][step]
}

// Event is one progress notification.
type Event struct {
	// RunID identifies the operation the event belongs to.
	RunID     string    `json:"run_id"`
	Document  string    `json:"document,omitempty"`
	Operation string    `json:"operation"`
	Step      Step      `json:"step"`
	Theme     Theme     `json:"theme,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Reporter receives progress events. Implementations must be safe for
// concurrent use and must not block.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// NopReporter drops every event.
type NopReporter struct{}

func (NopReporter) Report(context.Context, Event) {}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev Event)

func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// ThemedReporter fills in the themed message of each event and forwards it.
// The theme is fixed per operation: a random theme is picked when an
// operation reports its first step and kept until it completes or fails.
type ThemedReporter struct {
	theme Theme
	pick  func(n int) int
	next  Reporter

	mu     sync.Mutex
	active map[string]Theme
}

// NewThemedReporter creates a reporter using theme. pick returns a number in
// [0, n) and is used when theme is "random"; nil uses math/rand.
func NewThemedReporter(theme Theme, pick func(n int) int, next Reporter) *ThemedReporter {
	if pick == nil {
		pick = rand.Intn
	}
	if next == nil {
		next = NopReporter{}
	}
	if theme == "" {
		theme = ThemeRandom
	}
	return &ThemedReporter{
		theme:  theme,
		pick:   pick,
		next:   next,
		active: make(map[string]Theme),
	}
}

// Report implements Reporter.
func (r *ThemedReporter) Report(ctx context.Context, ev Event) {
	ev.Theme = r.themeFor(ev)
	if ev.Message == "" {
		ev.Message = Message(ev.Theme, ev.Step)
	}
	r.next.Report(ctx, ev)
}

func (r *ThemedReporter) themeFor(ev Event) Theme {
	r.mu.Lock()
	defer r.mu.Unlock()

	theme, ok := r.active[ev.RunID]
	if !ok {
		theme = r.theme
		if theme == ThemeRandom {
			theme = Themes[r.pick(len(Themes))]
		}
		r.active[ev.RunID] = theme
	}
	if ev.Step == StepCompleted || ev.Step == StepFailed {
		delete(r.active, ev.RunID)
	}
	return theme
}

// run reports the steps of a single operation.
type run struct {
	ctx       context.Context
	reporter  Reporter
	id        string
	document  string
	operation string
}

func newRun(ctx context.Context, reporter Reporter, document, operation string) *run {
	return &run{
		ctx:       ctx,
		reporter:  reporter,
		id:        uuid.New().String(),
		document:  document,
		operation: operation,
	}
}

func (r *run) step(s Step) {
	r.reporter.Report(r.ctx, Event{
		RunID:     r.id,
		Document:  r.document,
		Operation: r.operation,
		Step:      s,
		Time:      time.Now(),
	})
}

func (r *run) fail(message string) {
	r.reporter.Report(r.ctx, Event{
		RunID:     r.id,
		Document:  r.document,
		Operation: r.operation,
		Step:      StepFailed,
		Message:   message,
		Time:      time.Now(),
	})
}
