package transform

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeMessages(t *testing.T) {
	for _, theme := range Themes {
		for _, step := range Steps {
			assert.NotEmpty(t, Message(theme, step), "%s/%s", theme, step)
		}
	}
	assert.Equal(t, "Summoning the prompt wizards...", Message(ThemeMagical, StepPreparing))
	assert.Equal(t, "Your prompt is served!", Message(ThemeCooking, StepCompleted))
	assert.Empty(t, Message(ThemeTech, StepFailed))
}

func TestIsValidTheme(t *testing.T) {
	for _, name := range []string{"magical", "tech", "cooking", "random"} {
		assert.True(t, IsValidTheme(name), name)
	}
	assert.False(t, IsValidTheme("spooky"))
	assert.False(t, IsValidTheme(""))
}

// TestThemedReporterKeepsThemePerRun verifies that a random theme is picked
// once per run and released when the run ends.
func TestThemedReporterKeepsThemePerRun(t *testing.T) {
	picks := []int{2, 0}
	pick := func(n int) int {
		p := picks[0]
		picks = picks[1:]
		return p
	}

	rec := &recorder{}
	r := NewThemedReporter(ThemeRandom, pick, rec)
	ctx := context.Background()

	for _, step := range Steps {
		r.Report(ctx, Event{RunID: "a", Step: step})
	}
	r.Report(ctx, Event{RunID: "b", Step: StepPreparing})
	r.Report(ctx, Event{RunID: "b", Step: StepFailed, Message: "boom"})

	require.Len(t, rec.events, len(Steps)+2)
	for _, ev := range rec.events[:len(Steps)] {
		assert.Equal(t, ThemeCooking, ev.Theme)
	}
	assert.Equal(t, ThemeMagical, rec.events[len(Steps)].Theme)
	assert.Equal(t, "boom", rec.events[len(Steps)+1].Message)
	assert.Empty(t, r.active)
}

func TestThemedReporterFixedTheme(t *testing.T) {
	rec := &recorder{}
	r := NewThemedReporter(ThemeMagical, func(int) int {
		t.Fatal("pick must not be called for a fixed theme")
		return 0
	}, rec)

	r.Report(context.Background(), Event{RunID: "x", Step: StepSending})
	require.Len(t, rec.events, 1)
	assert.Equal(t, "Casting transformation spells...", rec.events[0].Message)
}

func TestReporterFunc(t *testing.T) {
	var got Event
	var r Reporter = ReporterFunc(func(_ context.Context, ev Event) { got = ev })
	r.Report(context.Background(), Event{Step: StepCompleted})
	assert.Equal(t, StepCompleted, got.Step)

	NopReporter{}.Report(context.Background(), Event{})
}

func TestDocumentGuard(t *testing.T) {
	g := newDocumentGuard()

	release, ok := g.tryAcquire("a")
	require.True(t, ok)
	_, ok = g.tryAcquire("a")
	assert.False(t, ok)

	other, ok := g.tryAcquire("b")
	require.True(t, ok)
	other()

	release()
	release()
	assert.False(t, g.busy("a"))

	again, ok := g.tryAcquire("a")
	assert.True(t, ok)
	again()

	r1, ok1 := g.tryAcquire("")
	r2, ok2 := g.tryAcquire("")
	assert.True(t, ok1 && ok2)
	r1()
	r2()
}

// TestDocumentGuardConcurrent races many goroutines for the same document and
// checks that the semaphore admits exactly one of them while it is held.
func TestDocumentGuardConcurrent(t *testing.T) {
	g := newDocumentGuard()

	for round := 0; round < 3; round++ {
		var admitted int32
		var attempted sync.WaitGroup
		var wg sync.WaitGroup
		start := make(chan struct{})
		done := make(chan struct{})

		for i := 0; i < 32; i++ {
			attempted.Add(1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				release, ok := g.tryAcquire("doc.prompt.md")
				attempted.Done()
				if !ok {
					return
				}
				atomic.AddInt32(&admitted, 1)
				<-done
				release()
			}()
		}

		close(start)
		attempted.Wait()
		assert.True(t, g.busy("doc.prompt.md"))
		close(done)
		wg.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&admitted), "round %d", round)
		assert.False(t, g.busy("doc.prompt.md"))
	}
}

func TestDocumentGuardBusyDoesNotClaim(t *testing.T) {
	g := newDocumentGuard()
	assert.False(t, g.busy("never-seen"))

	release, ok := g.tryAcquire("a")
	require.True(t, ok)
	release()

	// Probing an idle key leaves it free for the next caller
	assert.False(t, g.busy("a"))
	assert.False(t, g.busy("a"))
	again, ok := g.tryAcquire("a")
	require.True(t, ok)
	again()
}
