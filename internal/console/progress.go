package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// progress.go runs the presenter side of a progress bar: it waits for fresh
// renderings and redraws the terminal line at a bounded rate.

// Bar is the part of a progress bar the presenter needs
type Bar interface {
	Generation() uint64
	Wait(ctx context.Context, after uint64) (uint64, error)
	Print() error
	Finish() error
}

// Presenter redraws a Bar whenever it renders, at most as often as the
// limiter allows.
type Presenter struct {
	bar     Bar
	limiter *rate.Limiter
	logger  zerolog.Logger
	printed int
}

// NewPresenter creates a presenter for bar. A nil limiter never throttles.
func NewPresenter(bar Bar, limiter *rate.Limiter, logger zerolog.Logger) *Presenter {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Presenter{
		bar:     bar,
		limiter: limiter,
		logger:  logger,
	}
}

// Run prints the bar each time it renders until ctx is done, then prints the
// final frame and moves the cursor to a fresh line. Cancellation is the
// normal way to stop, so it is not reported as an error.
func (p *Presenter) Run(ctx context.Context) error {
	var seen uint64
	for {
		gen, err := p.bar.Wait(ctx, seen)
		if err != nil {
			break
		}
		seen = gen

		if err := p.limiter.Wait(ctx); err != nil {
			break
		}
		if err := p.bar.Print(); err != nil {
			return err
		}
		p.printed++
	}

	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug().Err(err).Msg("Presenter stopped")
	}
	return p.flush()
}

func (p *Presenter) flush() error {
	if err := p.bar.Print(); err != nil {
		return fmt.Errorf("final frame: %w", err)
	}
	p.printed++
	if err := p.bar.Finish(); err != nil {
		return fmt.Errorf("final newline: %w", err)
	}
	p.logger.Debug().Int("frames", p.printed).Msg("Presenter finished")
	return nil
}

// Frames returns how many times the bar was printed. Call it after Run returns.
func (p *Presenter) Frames() int {
	return p.printed
}
