// Package progress renders a single-line textual progress bar for
// element-counted tasks and keeps that rendering safe to read while another
// goroutine keeps updating it.
//
// A bar is updated by one or more updaters and printed by a presenter, which
// may run in the same goroutine or a different one:
//
//	bar, err := progress.New(1000, progress.WithWidth(50))
//	if err != nil {
//	    return err
//	}
//	for i := 1; i <= 1000; i++ {
//	    bar.Update(float64(i))
//	    bar.Print()
//	}
//	bar.Finish()
//
// Output looks like
//
//	[50.00%] [#########/----------] (25/50) - loss=0.5
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/mrz1836/go-sanitize"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// DefaultWidth is the number of body cells used when WithWidth is not given.
const DefaultWidth = 20

var (
	// ErrInvalidTotal is returned by New when total is not a positive finite number.
	ErrInvalidTotal = errors.New("progress: total must be a positive finite number")
	// ErrInvalidWidth is returned by New when width is not positive.
	ErrInvalidWidth = errors.New("progress: width must be positive")
)

// Option configures a Bar
type Option func(*Bar)

// WithWidth sets the number of glyph cells in the bar body
func WithWidth(width int) Option {
	return func(b *Bar) {
		b.width = width
	}
}

// WithDetails toggles the "(current/total)" suffix
func WithDetails(show bool) Option {
	return func(b *Bar) {
		b.showDetails = show
	}
}

// WithWriter sets where Print and Finish write to
func WithWriter(w io.Writer) Option {
	return func(b *Bar) {
		b.out = w
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bar) {
		b.logger = logger
	}
}

// WithAsyncRender moves the render step off the updater's goroutine onto a
// single background worker. Pending renders are coalesced, so only the most
// recent state is rendered once the worker catches up.
func WithAsyncRender() Option {
	return func(b *Bar) {
		b.async = true
	}
}

// Bar holds the progress state and its latest rendering.
type Bar struct {
	total       float64
	width       int
	showDetails bool
	out         io.Writer
	logger      zerolog.Logger
	async       bool
	pool        *ants.Pool

	mu       sync.Mutex
	current  float64
	fraction float64
	extra    string
	spin     int
	text     string
	gen      uint64
	fresh    chan struct{} // closed when gen advances, then replaced
	dirty    bool          // state changed since the last async render
	queued   bool          // an async drain is scheduled or running
	closed   bool
	inflight sync.WaitGroup
}

// New creates a bar for total units of work.
func New(total float64, opts ...Option) (*Bar, error) {
	b := &Bar{
		total:       total,
		width:       DefaultWidth,
		showDetails: true,
		out:         os.Stdout,
		logger:      zerolog.Nop(),
		fresh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTotal, total)
	}
	if b.width <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWidth, b.width)
	}

	if b.async {
		pool, err := ants.NewPool(1)
		if err != nil {
			return nil, fmt.Errorf("creating render worker: %w", err)
		}
		b.pool = pool
	}

	b.logger.Debug().
		Float64("total", total).
		Int("width", b.width).
		Bool("details", b.showDetails).
		Bool("async", b.async).
		Msg("Created progress bar")

	return b, nil
}

// Update sets the completed amount and renders the bar.
func (b *Bar) Update(current float64) {
	b.UpdateWithExtra(current, "")
}

// UpdateWithExtra sets the completed amount and an annotation shown after
// the bar, then renders. Values outside [0, total] are clamped. The
// annotation is flattened to a single line.
//
// With WithAsyncRender the rendering may not be visible yet when this
// returns; use Wait to block for it.
func (b *Bar) UpdateWithExtra(current float64, extra string) {
	if extra != "" {
		extra = sanitize.SingleLine(extra)
	}

	b.mu.Lock()
	b.setLocked(current, extra)
	if b.queued {
		// The running drain renders this state before it exits.
		b.dirty = true
		b.mu.Unlock()
		return
	}
	if !b.async || b.closed {
		b.renderLocked()
		b.mu.Unlock()
		return
	}
	b.dirty = true
	b.queued = true
	b.inflight.Add(1)
	b.mu.Unlock()

	if err := b.pool.Submit(b.drain); err != nil {
		b.logger.Warn().Err(err).Msg("Render worker unavailable, rendering inline")
		b.drain()
	}
}

func (b *Bar) setLocked(current float64, extra string) {
	switch {
	case math.IsNaN(current) || current < 0:
		b.logger.Trace().Float64("current", current).Msg("Clamped progress to zero")
		current = 0
	case current > b.total:
		b.logger.Trace().Float64("current", current).Msg("Clamped progress to total")
		current = b.total
	}
	b.current = current
	b.fraction = current / b.total
	b.extra = extra
}

// drain renders until no state change is pending. Only one drain runs at a
// time, so renders are published in request order.
func (b *Bar) drain() {
	defer b.inflight.Done()
	for {
		b.mu.Lock()
		if !b.dirty {
			b.queued = false
			b.mu.Unlock()
			return
		}
		b.dirty = false
		f := b.frameLocked()
		b.mu.Unlock()

		text, spun := f.render()

		b.mu.Lock()
		b.publishLocked(text, spun)
		b.mu.Unlock()
	}
}

func (b *Bar) renderLocked() {
	text, spun := b.frameLocked().render()
	b.publishLocked(text, spun)
}

func (b *Bar) frameLocked() frame {
	return frame{
		fraction:    b.fraction,
		width:       b.width,
		spin:        b.spin,
		current:     b.current,
		total:       b.total,
		showDetails: b.showDetails,
		extra:       b.extra,
	}
}

func (b *Bar) publishLocked(text string, spun bool) {
	if spun {
		b.spin = (b.spin + 1) % len(spinGlyphs)
	}
	b.text = text
	b.gen++
	close(b.fresh)
	b.fresh = make(chan struct{})
}

// Snapshot returns the most recently completed rendering.
func (b *Bar) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// String implements fmt.Stringer.
func (b *Bar) String() string {
	return b.Snapshot()
}

// Generation returns the number of renders completed so far.
func (b *Bar) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Pending reports whether an asynchronous render has been requested but not
// yet published.
func (b *Bar) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queued
}

// Wait blocks until a render newer than generation after has completed and
// returns the new generation.
func (b *Bar) Wait(ctx context.Context, after uint64) (uint64, error) {
	for {
		b.mu.Lock()
		gen, fresh := b.gen, b.fresh
		b.mu.Unlock()

		if gen > after {
			return gen, nil
		}

		select {
		case <-fresh:
		case <-ctx.Done():
			return gen, ctx.Err()
		}
	}
}

// Print writes a carriage return followed by the latest rendering, so
// repeated calls overwrite the same terminal line.
func (b *Bar) Print() error {
	if _, err := io.WriteString(b.out, "\r"+b.Snapshot()); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return nil
}

// Finish moves the cursor off the progress line.
func (b *Bar) Finish() error {
	if _, err := io.WriteString(b.out, "\n"); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return nil
}

// Close waits for pending asynchronous renders and stops the render
// worker. Later updates render synchronously. Close is a no-op for
// synchronous bars.
func (b *Bar) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	if b.pool != nil {
		b.pool.Release()
	}
}
