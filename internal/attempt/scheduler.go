package attempt

import (
	"context"
	"log"
	"sync"
	"time"
)

// Ticker is the part of *time.Ticker the scheduler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func NewRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

// ExpireFunc is called once when a session's countdown reaches zero.
type ExpireFunc func(ctx context.Context, sessionID string)

type SchedulerOption func(*Scheduler)

func WithTicker(f TickerFunc) SchedulerOption {
	return func(s *Scheduler) { s.newTicker = f }
}

type entry struct {
	cd     *Countdown
	cancel context.CancelFunc
}

// Scheduler runs one countdown goroutine per active session, ticking once a
// second. Entries leave the map when they expire or are canceled.
type Scheduler struct {
	mu        sync.Mutex
	timers    map[string]*entry
	newTicker TickerFunc
	onExpire  ExpireFunc

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewScheduler(onExpire ExpireFunc, opts ...SchedulerOption) *Scheduler {
	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		timers:    make(map[string]*entry),
		newTicker: NewRealTicker,
		onExpire:  onExpire,
		ctx:       ctx,
		stop:      stop,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Arm starts a countdown of seconds for the session. Arming a session that
// already has a live countdown returns it unchanged, so reopening a quiz
// never resets its timer.
func (s *Scheduler) Arm(sessionID string, seconds int) *Countdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[sessionID]; ok {
		return e.cd
	}
	if s.ctx.Err() != nil {
		return nil
	}
	cd := &Countdown{}
	_ = cd.Start(seconds)
	ctx, cancel := context.WithCancel(s.ctx)
	e := &entry{cd: cd, cancel: cancel}
	s.timers[sessionID] = e

	t := s.newTicker(time.Second)
	s.wg.Add(1)
	go s.run(ctx, sessionID, e, t)
	return cd
}

func (s *Scheduler) run(ctx context.Context, sessionID string, e *entry, t Ticker) {
	defer s.wg.Done()
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if !e.cd.Tick() {
				continue
			}
			s.remove(sessionID, e)
			log.Printf("attempt: session %s expired", sessionID)
			if s.onExpire != nil {
				s.onExpire(s.ctx, sessionID)
			}
			return
		}
	}
}

func (s *Scheduler) remove(sessionID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[sessionID]; ok && cur == e {
		delete(s.timers, sessionID)
	}
	e.cancel()
}

// Cancel marks the session's countdown submitted and stops its goroutine.
// It reports false when no live countdown was found, including when the
// countdown expired first.
func (s *Scheduler) Cancel(sessionID string) bool {
	s.mu.Lock()
	e, ok := s.timers[sessionID]
	if ok {
		delete(s.timers, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	return e.cd.Submit() == nil
}

// Remaining returns the seconds left on a live countdown.
func (s *Scheduler) Remaining(sessionID string) (int, bool) {
	s.mu.Lock()
	e, ok := s.timers[sessionID]
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	return e.cd.Remaining(), true
}

func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every countdown and waits for the goroutines to exit.
// Running sessions stay running in storage and are picked up again by the
// sweeper on the next boot.
func (s *Scheduler) Stop() {
	s.stop()
	s.mu.Lock()
	s.timers = make(map[string]*entry)
	s.mu.Unlock()
	s.wg.Wait()
}
