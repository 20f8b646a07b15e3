package sim

import (
	"context"
	"time"
)

// HeadlessPresenter paces Run without drawing anything: each Frame sleeps
// until the next frame boundary.
type HeadlessPresenter struct {
	period time.Duration
	next   time.Time
	now    func() time.Time
}

// NewHeadlessPresenter creates a presenter running at frameRate frames per second.
func NewHeadlessPresenter(frameRate float64) *HeadlessPresenter {
	return &HeadlessPresenter{
		period: time.Duration(float64(time.Second) / frameRate),
		now:    time.Now,
	}
}

// Frame blocks until the next frame boundary or until ctx is done.
func (p *HeadlessPresenter) Frame(ctx context.Context) error {
	now := p.now()
	if p.next.IsZero() || now.Sub(p.next) > p.period {
		// first frame, or we fell more than a frame behind
		p.next = now
	}
	p.next = p.next.Add(p.period)
	wait := p.next.Sub(now)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return nil
}
