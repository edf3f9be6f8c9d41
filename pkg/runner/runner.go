package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/itsrenoria/spinbar/internal/config"
	"github.com/itsrenoria/spinbar/internal/console"
	"github.com/itsrenoria/spinbar/internal/logger"
	"github.com/itsrenoria/spinbar/internal/throttle"
	"github.com/itsrenoria/spinbar/pkg/progress"
	"github.com/itsrenoria/spinbar/pkg/worker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// runner.go drives simulated element-counted tasks and reports them through a
// progress bar.

// Mode names a demo task
type Mode string

const (
	ModeSequential Mode = "run"
	ModeWorkers    Mode = "workers"
	ModeFraction   Mode = "fraction"
)

// fractionSteps is how many updates the fractional task makes.
const fractionSteps = 100

// Service runs demo tasks
type Service struct {
	config *config.Config
	out    io.Writer
	logger zerolog.Logger
}

// New creates a new runner writing the bar to out
func New(cfg *config.Config, out io.Writer) *Service {
	return &Service{
		config: cfg,
		out:    out,
		logger: logger.New("runner"),
	}
}

// RunResult contains the results of a task run
type RunResult struct {
	Mode      Mode
	Total     float64
	Completed float64
	Failed    int
	Frames    int
	Final     string
	Duration  time.Duration
}

// Run executes the task for mode
func (s *Service) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	startTime := time.Now()

	var (
		result *RunResult
		err    error
	)
	switch mode {
	case ModeSequential:
		result, err = s.runSequential(ctx)
	case ModeWorkers:
		result, err = s.runWorkers(ctx)
	case ModeFraction:
		result, err = s.runFraction(ctx)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	result.Mode = mode
	result.Duration = time.Since(startTime)
	s.logger.Debug().
		Str("mode", string(mode)).
		Dur("duration", result.Duration).
		Msg("Task finished")

	return result, nil
}

func (s *Service) newBar(total float64, extra ...progress.Option) (*progress.Bar, error) {
	opts := []progress.Option{
		progress.WithWidth(s.config.Width),
		progress.WithDetails(s.config.ShowDetails),
		progress.WithWriter(s.out),
		progress.WithLogger(s.logger),
	}
	if s.config.AsyncRender {
		opts = append(opts, progress.WithAsyncRender())
	}
	bar, err := progress.New(total, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("creating progress bar: %w", err)
	}
	return bar, nil
}

func (s *Service) stepDelay() time.Duration {
	return time.Duration(s.config.StepDelayMs) * time.Millisecond
}

// runSequential updates and prints on the caller's goroutine, one element
// per tick.
func (s *Service) runSequential(ctx context.Context) (*RunResult, error) {
	bar, err := s.newBar(s.config.Total)
	if err != nil {
		return nil, err
	}
	result := &RunResult{Total: s.config.Total}
	steps := int(math.Ceil(s.config.Total))

	for i := 1; i <= steps; i++ {
		if err := sleep(ctx, s.stepDelay()); err != nil {
			break
		}
		// Async renders land later; wait so the tick prints a fresh frame.
		gen := bar.Generation()
		bar.Update(float64(i))
		result.Completed = math.Min(float64(i), s.config.Total)
		if _, err := bar.Wait(ctx, gen); err != nil {
			break
		}
		if err := bar.Print(); err != nil {
			return nil, err
		}
		result.Frames++
	}

	return s.finish(bar, result)
}

// runWorkers processes elements on a worker pool while a presenter goroutine
// redraws the bar at the configured refresh rate.
func (s *Service) runWorkers(ctx context.Context) (*RunResult, error) {
	bar, err := s.newBar(s.config.Total)
	if err != nil {
		return nil, err
	}

	limiter := throttle.ParseRate(s.config.RefreshRate)
	if limiter == nil {
		limiter = throttle.Unlimited()
	}
	presenter := console.NewPresenter(bar, limiter, s.logger)

	items := make([]int, int(math.Ceil(s.config.Total)))
	for i := range items {
		items[i] = i
	}

	result := &RunResult{Total: s.config.Total}
	presentCtx, stopPresenter := context.WithCancel(ctx)
	defer stopPresenter()

	g, gctx := errgroup.WithContext(presentCtx)
	g.Go(func() error {
		return presenter.Run(gctx)
	})
	g.Go(func() error {
		defer stopPresenter()
		_, errs := worker.ProcessWithProgress(ctx, items, s.config.Workers,
			func(ctx context.Context, _ int) (struct{}, error) {
				return struct{}{}, sleep(ctx, s.stepDelay())
			},
			func(completed, total int) {
				bar.UpdateWithExtra(float64(completed), fmt.Sprintf("workers=%d", s.config.Workers))
				result.Completed = math.Min(float64(completed), s.config.Total)
			},
		)
		result.Failed = len(errs)
		for _, err := range errs {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn().Err(err).Msg("Element failed")
			}
		}
		// Publish any pending render before the presenter draws its final frame.
		bar.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Frames = presenter.Frames()
	result.Final = bar.Snapshot()
	return result, nil
}

// runFraction walks a fractional total and annotates each tick with a
// decaying metric.
func (s *Service) runFraction(ctx context.Context) (*RunResult, error) {
	total := s.config.Total / 4
	bar, err := s.newBar(total)
	if err != nil {
		return nil, err
	}
	result := &RunResult{Total: total}

	for k := 1; k <= fractionSteps; k++ {
		if err := sleep(ctx, s.stepDelay()); err != nil {
			break
		}
		current := total * float64(k) / fractionSteps
		loss := 1 / float64(1+k)
		gen := bar.Generation()
		bar.UpdateWithExtra(current, fmt.Sprintf("loss=%.4f", loss))
		result.Completed = math.Min(current, total)
		if _, err := bar.Wait(ctx, gen); err != nil {
			break
		}
		if err := bar.Print(); err != nil {
			return nil, err
		}
		result.Frames++
	}

	return s.finish(bar, result)
}

// finish flushes pending renders, draws the last frame, and leaves the
// progress line.
func (s *Service) finish(bar *progress.Bar, result *RunResult) (*RunResult, error) {
	bar.Close()
	if err := bar.Print(); err != nil {
		return nil, err
	}
	result.Frames++
	if err := bar.Finish(); err != nil {
		return nil, err
	}
	result.Final = bar.Snapshot()
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
