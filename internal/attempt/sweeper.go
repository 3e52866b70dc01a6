package attempt

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SubmitFunc auto-submits a running session with its recorded answers.
type SubmitFunc func(ctx context.Context, sessionID string) error

type RunningLister interface {
	ListRunning(ctx context.Context) ([]Session, error)
}

// Sweeper reconciles stored running sessions with the in-memory scheduler.
// It covers sessions whose countdown was lost, for example across a restart:
// past-deadline sessions are auto-submitted and live ones are re-armed with
// the time they have left.
type Sweeper struct {
	sessions RunningLister
	sched    *Scheduler
	submit   SubmitFunc
	now      func() time.Time
	cron     *cron.Cron
}

type SweepReport struct {
	Armed     int
	Submitted int
	Failed    int
}

func NewSweeper(sessions RunningLister, sched *Scheduler, submit SubmitFunc) *Sweeper {
	return &Sweeper{sessions: sessions, sched: sched, submit: submit, now: time.Now}
}

func (w *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	running, err := w.sessions.ListRunning(ctx)
	if err != nil {
		return rep, err
	}
	now := w.now()
	for _, s := range running {
		if _, live := w.sched.Remaining(s.ID); live {
			continue
		}
		if left := s.Remaining(now); left > 0 {
			if w.sched.Arm(s.ID, left) != nil {
				rep.Armed++
			}
			continue
		}
		if err := w.submit(ctx, s.ID); err != nil {
			log.Printf("sweeper: auto-submit session %s: %v", s.ID, err)
			rep.Failed++
			continue
		}
		rep.Submitted++
	}
	return rep, nil
}

// Start schedules Sweep on a cron spec such as "@every 1m".
func (w *Sweeper) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rep, err := w.Sweep(ctx)
		if err != nil {
			log.Printf("sweeper: %v", err)
			return
		}
		if rep.Armed+rep.Submitted+rep.Failed > 0 {
			log.Printf("sweeper: armed=%d submitted=%d failed=%d", rep.Armed, rep.Submitted, rep.Failed)
		}
	}); err != nil {
		return err
	}
	w.cron = c
	c.Start()
	return nil
}

// Stop halts the cron schedule and waits for a running sweep to finish.
func (w *Sweeper) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}
