// Package focus produces simulated focus scores from the band.
package focus

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

// MaxScore is the highest focus score a sample can take. Scores lie in
// [0, MaxScore].
const MaxScore = 100

// Source yields focus scores.
type Source interface {
	Score() int
}

// RandomSource draws scores uniformly from [0, MaxScore].
type RandomSource struct{}

// Score returns a uniformly random score.
func (RandomSource) Score() int {
	return rand.IntN(MaxScore + 1)
}

// Sampler emits one score immediately and then one per interval until its
// context is cancelled.
type Sampler struct {
	source   Source
	clock    clockwork.Clock
	interval time.Duration
}

// NewSampler creates a Sampler. A nil clock means the real clock.
func NewSampler(source Source, clock clockwork.Clock, interval time.Duration) *Sampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sampler{source: source, clock: clock, interval: interval}
}

// Run samples until ctx is done, handing each score to publish. It returns
// ctx.Err(). No score is drawn or published once ctx is done, and publish
// is never called after Run returns.
func (s *Sampler) Run(ctx context.Context, publish func(score int)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		publish(s.source.Score())
		if err := Sleep(ctx, s.clock, s.interval); err != nil {
			return err
		}
	}
}

// Sleep waits for d on clock, returning early with ctx.Err() if ctx is done
// first. The timer is always stopped before returning.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}
