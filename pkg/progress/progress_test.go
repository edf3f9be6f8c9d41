package progress

import (
	"bytes"
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// progress_test.go covers rendering, clamping, and the update/read cycle.

var renderPattern = regexp.MustCompile(`^\[(\d+\.\d{2})%\] \[([#\-/\\|]*)\]`)

func newBar(t *testing.T, total float64, opts ...Option) *Bar {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	b, err := New(total, opts...)
	if err != nil {
		t.Fatalf("New(%v): %v", total, err)
	}
	return b
}

func body(t *testing.T, text string) string {
	t.Helper()
	m := renderPattern.FindStringSubmatch(text)
	if m == nil {
		t.Fatalf("malformed rendering %q", text)
	}
	return m[2]
}

func TestNew_RejectsInvalidArguments(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		width int
		want  error
	}{
		{"zero total", 0, 20, ErrInvalidTotal},
		{"negative total", -5, 20, ErrInvalidTotal},
		{"NaN total", math.NaN(), 20, ErrInvalidTotal},
		{"infinite total", math.Inf(1), 20, ErrInvalidTotal},
		{"zero width", 10, 0, ErrInvalidWidth},
		{"negative width", 10, -1, ErrInvalidWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.total, WithWidth(tt.width))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNew_StartsEmpty(t *testing.T) {
	b := newBar(t, 10)
	if got := b.Snapshot(); got != "" {
		t.Fatalf("expected empty rendering before first update, got %q", got)
	}
	if b.Generation() != 0 {
		t.Fatalf("expected generation 0, got %d", b.Generation())
	}
}

func TestUpdate_HalfwayScenario(t *testing.T) {
	b := newBar(t, 50, WithWidth(20))
	b.Update(25)

	want := "[50.00%] [#########/----------] (25/50)"
	if got := b.Snapshot(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUpdate_CompleteWithoutDetails(t *testing.T) {
	b := newBar(t, 1000, WithWidth(200), WithDetails(false))
	b.Update(1000)

	want := "[100.00%] [" + strings.Repeat("#", 200) + "]"
	if got := b.Snapshot(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUpdate_ExtraAnnotation(t *testing.T) {
	b := newBar(t, 1000, WithWidth(50))
	b.UpdateWithExtra(500, "loss=0.5")

	got := b.Snapshot()
	if !strings.HasSuffix(got, " (500/1000) - loss=0.5") {
		t.Fatalf("unexpected rendering %q", got)
	}

	// The annotation only applies to the update that supplied it.
	b.Update(600)
	if strings.Contains(b.Snapshot(), "loss") {
		t.Fatalf("annotation leaked into next rendering: %q", b.Snapshot())
	}
}

func TestUpdate_ExtraIsFlattened(t *testing.T) {
	b := newBar(t, 10, WithDetails(false))
	b.UpdateWithExtra(5, "loss=0.5\r\nacc=0.9")

	got := b.Snapshot()
	if strings.ContainsAny(got, "\r\n") {
		t.Fatalf("rendering contains line breaks: %q", got)
	}
	if !strings.Contains(got, "loss=0.5") || !strings.Contains(got, "acc=0.9") {
		t.Fatalf("annotation content lost: %q", got)
	}
}

func TestUpdate_ZeroProgressDoesNotSpin(t *testing.T) {
	b := newBar(t, 10, WithWidth(8), WithDetails(false))
	for i := 0; i < 3; i++ {
		b.Update(0)
		if got := b.Snapshot(); got != "[0.00%] [--------]" {
			t.Fatalf("unexpected rendering %q", got)
		}
	}

	// First non-empty render shows the first spin glyph.
	b.Update(1)
	if got := body(t, b.Snapshot()); got != "/-------" {
		t.Fatalf("expected spin counter untouched by empty renders, got %q", got)
	}
}

func TestUpdate_SpinCyclesModuloFour(t *testing.T) {
	b := newBar(t, 100, WithWidth(10), WithDetails(false))
	want := []byte{'/', '-', '\\', '|', '/', '-'}

	for i, glyph := range want {
		b.Update(35)
		got := body(t, b.Snapshot())
		if got[3] != glyph {
			t.Fatalf("render %d: expected spin glyph %q, got %q", i, glyph, got)
		}
		if got[:3] != "###" || got[4:] != "------" {
			t.Fatalf("render %d: unexpected body %q", i, got)
		}
	}
}

func TestUpdate_CompletionNeverSpins(t *testing.T) {
	b := newBar(t, 7, WithWidth(13), WithDetails(false))
	for i := 0; i < 5; i++ {
		b.Update(7)
		got := body(t, b.Snapshot())
		if got != strings.Repeat("#", 13) {
			t.Fatalf("expected full bar, got %q", got)
		}
	}

	// Completed renders do not advance the spin counter either.
	b.Update(1)
	if got := body(t, b.Snapshot()); got[1] != '/' {
		t.Fatalf("expected first spin glyph after completed renders, got %q", got)
	}
}

func TestUpdate_ClampsAboveTotal(t *testing.T) {
	over := newBar(t, 40, WithWidth(16))
	exact := newBar(t, 40, WithWidth(16))

	over.UpdateWithExtra(1e9, "a")
	exact.UpdateWithExtra(40, "a")

	if over.Snapshot() != exact.Snapshot() {
		t.Fatalf("expected %q, got %q", exact.Snapshot(), over.Snapshot())
	}
	if !strings.Contains(over.Snapshot(), "(40/40)") {
		t.Fatalf("expected clamped details, got %q", over.Snapshot())
	}
}

func TestUpdate_ClampsBelowZero(t *testing.T) {
	b := newBar(t, 40, WithWidth(4))
	b.Update(-3)
	if got := b.Snapshot(); got != "[0.00%] [----] (0/40)" {
		t.Fatalf("unexpected rendering %q", got)
	}

	b.Update(math.NaN())
	if got := b.Snapshot(); got != "[0.00%] [----] (0/40)" {
		t.Fatalf("unexpected rendering for NaN %q", got)
	}
}

func TestUpdate_FractionalTotals(t *testing.T) {
	b := newBar(t, 2.5, WithWidth(10))
	b.Update(1.25)

	want := "[50.00%] [####/-----] (1.25/2.5)"
	if got := b.Snapshot(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUpdate_BodyWidthAndHeader(t *testing.T) {
	for _, total := range []float64{1, 3, 7, 50, 999, 12.75} {
		for _, width := range []int{1, 2, 5, 20, 77} {
			b := newBar(t, total, WithWidth(width), WithDetails(false))
			for _, step := range []float64{0, 0.1, 0.33, 0.5, 0.999, 1} {
				current := total * step
				b.Update(current)

				text := b.Snapshot()
				m := renderPattern.FindStringSubmatch(text)
				if m == nil {
					t.Fatalf("malformed rendering %q", text)
				}
				if len(m[2]) != width {
					t.Fatalf("total=%v width=%d current=%v: body %q has length %d",
						total, width, current, m[2], len(m[2]))
				}
				want := current / total * 100
				got, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					t.Fatalf("parse header %q: %v", m[1], err)
				}
				if math.Abs(got-want) > 0.005+1e-9 {
					t.Fatalf("header %q does not match %v", m[1], want)
				}
			}
		}
	}
}

func TestPrint_OverwritesLine(t *testing.T) {
	var buf bytes.Buffer
	b := newBar(t, 4, WithWidth(4), WithWriter(&buf))

	b.Update(1)
	if err := b.Print(); err != nil {
		t.Fatalf("Print: %v", err)
	}
	b.Update(4)
	if err := b.Print(); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	want := "\r[25.00%] [/---] (1/4)\r[100.00%] [####] (4/4)\n"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestPrint_ReturnsWriteError(t *testing.T) {
	b := newBar(t, 4, WithWriter(failingWriter{}))
	b.Update(1)
	if err := b.Print(); err == nil {
		t.Fatalf("expected write error")
	}
	if err := b.Finish(); err == nil {
		t.Fatalf("expected write error from Finish")
	}
}

func TestString_MatchesSnapshot(t *testing.T) {
	b := newBar(t, 3)
	b.Update(2)
	if b.String() != b.Snapshot() {
		t.Fatalf("String %q differs from Snapshot %q", b.String(), b.Snapshot())
	}
}

func TestWait_ReturnsAfterNextRender(t *testing.T) {
	b := newBar(t, 100)
	start := b.Generation()

	done := make(chan uint64, 1)
	go func() {
		gen, err := b.Wait(context.Background(), start)
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		done <- gen
	}()

	b.Update(10)

	select {
	case gen := <-done:
		if gen <= start {
			t.Fatalf("expected generation after %d, got %d", start, gen)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait did not observe the render")
	}
}

func TestWait_HonoursContext(t *testing.T) {
	b := newBar(t, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.Wait(ctx, b.Generation()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConcurrentUpdates_NeverTear(t *testing.T) {
	for _, async := range []bool{false, true} {
		opts := []Option{WithWidth(30)}
		if async {
			opts = append(opts, WithAsyncRender())
		}
		b := newBar(t, 1000, opts...)

		var wg sync.WaitGroup
		stop := make(chan struct{})
		var readerErr error
		var readerMu sync.Mutex

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				text := b.Snapshot()
				if text == "" {
					continue
				}
				m := renderPattern.FindStringSubmatch(text)
				if m == nil || len(m[2]) != 30 || !strings.HasSuffix(text, "/1000) - tick") {
					readerMu.Lock()
					readerErr = errors.New("torn rendering: " + text)
					readerMu.Unlock()
					return
				}
			}
		}()

		var writers sync.WaitGroup
		for w := 0; w < 4; w++ {
			writers.Add(1)
			go func(offset int) {
				defer writers.Done()
				for i := offset; i <= 1000; i += 4 {
					b.UpdateWithExtra(float64(i), "tick")
				}
			}(w)
		}
		writers.Wait()

		b.UpdateWithExtra(1000, "tick")
		b.Close()
		close(stop)
		wg.Wait()

		if readerErr != nil {
			t.Fatalf("async=%v: %v", async, readerErr)
		}
		want := "[100.00%] [" + strings.Repeat("#", 30) + "] (1000/1000) - tick"
		if got := b.Snapshot(); got != want {
			t.Fatalf("async=%v: expected final %q, got %q", async, want, got)
		}
	}
}

func TestAsyncRender_PublishesLatestState(t *testing.T) {
	b := newBar(t, 10, WithWidth(10), WithDetails(false), WithAsyncRender())
	defer b.Close()

	for i := 1; i <= 10; i++ {
		b.Update(float64(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	want := "[100.00%] [" + strings.Repeat("#", 10) + "]"
	for {
		gen := b.Generation()
		if b.Snapshot() == want {
			break
		}
		if _, err := b.Wait(ctx, gen); err != nil {
			t.Fatalf("last update never rendered, have %q: %v", b.Snapshot(), err)
		}
	}

	b.Close()
	if b.Pending() {
		t.Fatalf("expected no pending render after Close")
	}
}

func TestAsyncRender_SyncAfterClose(t *testing.T) {
	b := newBar(t, 10, WithWidth(10), WithDetails(false), WithAsyncRender())
	b.Close()
	b.Close()

	b.Update(5)
	if got := b.Snapshot(); got != "[50.00%] [####/-----]" {
		t.Fatalf("expected synchronous render after Close, got %q", got)
	}
}
