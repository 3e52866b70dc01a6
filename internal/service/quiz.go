package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/academy/internal/attempt"
	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/grading"
	"github.com/mind-engage/academy/internal/quiz"
	syncx "github.com/mind-engage/academy/internal/sync"
)

var (
	ErrNotPublished = errors.New("quiz is not published")
	ErrNotOwner     = errors.New("session belongs to another student")
)

type Clock func() time.Time

type Options struct {
	DefaultTimerMinutes int
	Scheduler           []attempt.SchedulerOption
	Now                 Clock
}

// Attempt is what a student gets when opening a quiz: the running session,
// the quiz without answer keys, and the seconds left on its countdown.
type Attempt struct {
	Session   attempt.Session `json:"session"`
	Quiz      quiz.Quiz       `json:"quiz"`
	Remaining int             `json:"remaining_seconds"`
	Resumed   bool            `json:"resumed"`
}

// QuizService runs the attempt flow: open, record answers, submit manually
// or on expiry, and read results back.
type QuizService struct {
	db       *sql.DB
	quizzes  quiz.Store
	sessions attempt.SessionStore
	tracker  *attempt.Tracker
	grader   grading.Grader
	events   *syncx.EventRepo
	sched    *attempt.Scheduler
	sweeper  *attempt.Sweeper
	defTimer int
	now      Clock
}

func NewQuizService(dbh *sql.DB, quizzes quiz.Store, sessions attempt.SessionStore, events *syncx.EventRepo, opts Options) *QuizService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &QuizService{
		db:       dbh,
		quizzes:  quizzes,
		sessions: sessions,
		tracker:  attempt.NewTracker(quizzes, sessions),
		grader:   grading.NewDefaultGrader(),
		events:   events,
		defTimer: opts.DefaultTimerMinutes,
		now:      opts.Now,
	}
	s.sched = attempt.NewScheduler(s.onExpire, opts.Scheduler...)
	s.sweeper = attempt.NewSweeper(sessions, s.sched, func(ctx context.Context, id string) error {
		_, err := s.AutoSubmit(ctx, id)
		return err
	})
	return s
}

func (s *QuizService) onExpire(ctx context.Context, sessionID string) {
	r, err := s.AutoSubmit(ctx, sessionID)
	if err != nil {
		log.Printf("auto-submit session %s: %v", sessionID, err)
		return
	}
	log.Printf("auto-submitted session %s: result %s score %d/%d", sessionID, r.ID, r.Score, r.TotalPoints)
}

// Start opens a quiz for a student. A running session is resumed with the
// time it has left; otherwise a new session starts a full countdown.
func (s *QuizService) Start(ctx context.Context, quizID, studentID string) (Attempt, error) {
	q, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if !q.Published {
		return Attempt{}, ErrNotPublished
	}

	var started *attempt.AlreadyStartedError
	err = s.tracker.CanStart(ctx, q, studentID)
	switch {
	case errors.As(err, &started):
		return s.resume(ctx, q, started.Session)
	case err != nil:
		return Attempt{}, err
	}

	seconds := q.TimerSeconds(s.defTimer)
	sess, err := s.sessions.Create(ctx, q.ID, studentID, seconds)
	if errors.As(err, &started) {
		return s.resume(ctx, q, started.Session)
	}
	if err != nil {
		return Attempt{}, err
	}
	s.sched.Arm(sess.ID, seconds)
	return Attempt{Session: sess, Quiz: q.StudentView(), Remaining: seconds}, nil
}

func (s *QuizService) resume(ctx context.Context, q quiz.Quiz, sess attempt.Session) (Attempt, error) {
	left, live := s.sched.Remaining(sess.ID)
	if !live {
		left = sess.Remaining(s.now())
		if left == 0 {
			// Deadline passed while nothing was counting down.
			if _, err := s.AutoSubmit(ctx, sess.ID); err != nil && !errors.Is(err, attempt.ErrSessionClosed) {
				return Attempt{}, err
			}
			return s.Start(ctx, q.ID, sess.StudentID)
		}
		s.sched.Arm(sess.ID, left)
	}
	return Attempt{Session: sess, Quiz: q.StudentView(), Remaining: left, Resumed: true}, nil
}

// SaveAnswers records in-progress answers on the student's running session.
func (s *QuizService) SaveAnswers(ctx context.Context, sessionID, studentID string, answers []quiz.SubmittedAnswer) (attempt.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return attempt.Session{}, err
	}
	if sess.StudentID != studentID {
		return attempt.Session{}, ErrNotOwner
	}
	m := make(map[string]string, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a.Answer
	}
	return s.sessions.SaveAnswers(ctx, sessionID, m)
}

// Submit grades a manual submission. Only the attempt count is checked; a
// submission after the countdown ran out is still accepted.
func (s *QuizService) Submit(ctx context.Context, sub quiz.Submission) (quiz.Result, error) {
	sessionID := ""
	live, err := s.sessions.FindRunning(ctx, sub.QuizID, sub.StudentID)
	switch {
	case err == nil:
		sessionID = live.ID
	case !errors.Is(err, attempt.ErrSessionNotFound):
		return quiz.Result{}, err
	}
	r, err := s.submit(ctx, sub, quiz.SourceManual, sessionID)
	if err != nil {
		return quiz.Result{}, err
	}
	if sessionID != "" {
		s.sched.Cancel(sessionID)
	}
	return r, nil
}

// AutoSubmit submits a running session with the answers recorded so far.
// Unanswered questions score zero.
func (s *QuizService) AutoSubmit(ctx context.Context, sessionID string) (quiz.Result, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return quiz.Result{}, err
	}
	if sess.Status != attempt.StatusRunning {
		return quiz.Result{}, attempt.ErrSessionClosed
	}
	r, err := s.submit(ctx, sess.Submission(), quiz.SourceTimer, sessionID)
	if errors.Is(err, attempt.ErrMaxAttemptsReached) {
		// Attempts ran out elsewhere; close the session without a result.
		if cerr := s.sessions.Close(ctx, s.db, sessionID, attempt.StatusExpired); cerr != nil && !errors.Is(cerr, attempt.ErrSessionClosed) {
			return quiz.Result{}, cerr
		}
	}
	return r, err
}

func (s *QuizService) submit(ctx context.Context, sub quiz.Submission, src quiz.Source, sessionID string) (quiz.Result, error) {
	q, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return quiz.Result{}, err
	}
	if err := s.tracker.CanSubmit(ctx, q, sub.StudentID); err != nil {
		return quiz.Result{}, err
	}

	out := s.grader.Grade(q.GradingView(), sub.Responses())
	r := quiz.NewResult(q.ID, sub.StudentID, out)
	r.SessionID = sessionID
	r.Source = src
	r.SubmittedAt = s.now().Unix()

	closeAs, evType := attempt.StatusSubmitted, syncx.TypeQuizSubmitted
	if src == quiz.SourceTimer {
		closeAs, evType = attempt.StatusExpired, syncx.TypeQuizAutoSubmitted
	}
	var stored quiz.Result
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if sessionID != "" {
			if err := s.sessions.Close(ctx, tx, sessionID, closeAs); err != nil {
				return err
			}
		}
		var err error
		stored, err = s.quizzes.InsertResult(ctx, tx, r)
		if err != nil {
			return err
		}
		return s.events.Append(ctx, tx, evType, stored.ID, map[string]any{
			"quiz_id":    stored.QuizID,
			"student_id": stored.StudentID,
			"session_id": sessionID,
			"score":      stored.Score,
			"total":      stored.TotalPoints,
			"percentage": stored.Percentage,
		})
	})
	if err != nil {
		return quiz.Result{}, fmt.Errorf("submit quiz %s: %w", q.ID, err)
	}
	return stored, nil
}

func (s *QuizService) Result(ctx context.Context, id string) (quiz.Result, error) {
	return s.quizzes.GetResult(ctx, id)
}

func (s *QuizService) Results(ctx context.Context, quizID, studentID string) ([]quiz.Result, error) {
	return s.quizzes.ListResults(ctx, quiz.ResultListOpts{QuizID: quizID, StudentID: studentID})
}

func (s *QuizService) Best(ctx context.Context, quizID, studentID string) (quiz.Result, error) {
	return s.quizzes.BestResult(ctx, quizID, studentID)
}

func (s *QuizService) Dashboard(ctx context.Context, courseID, studentID string) (quiz.Dashboard, error) {
	return s.quizzes.Dashboard(ctx, courseID, studentID)
}

// Remaining reports the live countdown of a session, if any.
func (s *QuizService) Remaining(sessionID string) (int, bool) {
	return s.sched.Remaining(sessionID)
}

// Restore re-arms countdowns for running sessions and submits the ones whose
// deadline passed while the process was down.
func (s *QuizService) Restore(ctx context.Context) (attempt.SweepReport, error) {
	return s.sweeper.Sweep(ctx)
}

func (s *QuizService) StartSweeper(spec string) error {
	return s.sweeper.Start(spec)
}

// Close stops the sweeper and every countdown. Running sessions stay in
// storage for the next Restore.
func (s *QuizService) Close() {
	s.sweeper.Stop()
	s.sched.Stop()
}
