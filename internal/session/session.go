// Package session owns the lifecycle of one exam attempt: creation
// from oracle-generated questions, active answering with navigation,
// timed auto-submission, grading, and the hand-off into history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrab/sscprep/internal/grader"
	"github.com/mrab/sscprep/internal/history"
	"github.com/mrab/sscprep/internal/model"
	"github.com/mrab/sscprep/internal/timer"
)

// Session durations in minutes.
const (
	practiceMCQFloor   = 5
	practiceCQDuration = 30
	boardDuration      = 120
)

var (
	// ErrEmptyGeneration means the oracle succeeded but returned no
	// usable questions. No session is created; the caller stays in
	// configuration.
	ErrEmptyGeneration = errors.New("generation returned no questions")
	// ErrNoSession means no session exists for the operation.
	ErrNoSession = errors.New("no session")
	// ErrSessionState means the session is not in a state that allows
	// the operation.
	ErrSessionState = errors.New("invalid session state")
	// ErrFinishInFlight means a finish or timeout is already running.
	ErrFinishInFlight = errors.New("submission already in flight")
	// ErrSessionActive means a new session cannot start while another
	// is still in progress.
	ErrSessionActive = errors.New("a session is already in progress")
)

// Oracle is the external generation and grading service.
type Oracle interface {
	GenerateQuestions(ctx context.Context, subject model.Subject, chapter string, count int, lang model.Language) ([]model.MCQQuestion, error)
	GenerateCreativeQuestion(ctx context.Context, subject model.Subject, chapter string, lang model.Language) (*model.CQQuestion, error)
	GenerateFullExam(ctx context.Context, subject model.Subject, lang model.Language) ([]model.MCQQuestion, []model.CQQuestion, error)
	grader.CQGrader
}

// Engine is the session state machine. It holds at most one session at
// a time; a new attempt always constructs a fresh session with a new
// identifier.
type Engine struct {
	oracle  Oracle
	history *history.Store

	newID    func() string
	now      func() time.Time
	autoTick bool

	mu        sync.Mutex
	sess      *model.ExamSession
	answers   map[string]model.Answer
	cursor    int
	finishing bool
	clock     *timer.Countdown
	results   []model.GradingResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDFunc overrides session id generation.
func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithNowFunc overrides the clock used for timestamps.
func WithNowFunc(f func() time.Time) Option {
	return func(e *Engine) { e.now = f }
}

// WithManualClock disables the countdown's real-time ticker; ticks
// must then be driven explicitly. Used by tests.
func WithManualClock() Option {
	return func(e *Engine) { e.autoTick = false }
}

// New creates an engine backed by the given oracle and history store.
func New(o Oracle, h *history.Store, opts ...Option) *Engine {
	e := &Engine{
		oracle:   o,
		history:  h,
		newID:    uuid.NewString,
		now:      time.Now,
		autoTick: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartPractice creates a practice session: count MCQs for one
// chapter, or a single CQ. The session is not created if the oracle
// fails or returns nothing.
func (e *Engine) StartPractice(ctx context.Context, subject model.Subject, chapter string, kind model.QuestionKind, count int, lang model.Language) (*model.ExamSession, error) {
	if err := e.ensureIdle(); err != nil {
		return nil, err
	}

	var questions []model.Question
	var duration int
	switch kind {
	case model.KindMCQ:
		mcqs, err := e.oracle.GenerateQuestions(ctx, subject, chapter, count, lang)
		if err != nil {
			return nil, fmt.Errorf("generate MCQs: %w", err)
		}
		for i := range mcqs {
			questions = append(questions, model.Question{MCQ: &mcqs[i]})
		}
		duration = max(practiceMCQFloor, count)
	case model.KindCQ:
		cq, err := e.oracle.GenerateCreativeQuestion(ctx, subject, chapter, lang)
		if err != nil {
			return nil, fmt.Errorf("generate CQ: %w", err)
		}
		if cq != nil {
			questions = append(questions, model.Question{CQ: cq})
		}
		duration = practiceCQDuration
	default:
		return nil, fmt.Errorf("unknown question kind %q", kind)
	}

	if len(questions) == 0 {
		return nil, ErrEmptyGeneration
	}
	return e.activate(subject, model.ModePractice, lang, questions, duration)
}

// StartBoardExam creates a full-syllabus timed board mock: 15 MCQs
// plus two concurrently generated CQs under a fixed 120 minute budget.
// Failure of either CQ request fails the whole creation.
func (e *Engine) StartBoardExam(ctx context.Context, subject model.Subject, lang model.Language) (*model.ExamSession, error) {
	if err := e.ensureIdle(); err != nil {
		return nil, err
	}

	mcqs, cqs, err := e.oracle.GenerateFullExam(ctx, subject, lang)
	if err != nil {
		return nil, fmt.Errorf("generate full exam: %w", err)
	}

	var questions []model.Question
	for i := range mcqs {
		questions = append(questions, model.Question{MCQ: &mcqs[i]})
	}
	for i := range cqs {
		questions = append(questions, model.Question{CQ: &cqs[i]})
	}
	if len(questions) == 0 {
		return nil, ErrEmptyGeneration
	}
	return e.activate(subject, model.ModeBoard, lang, questions, boardDuration)
}

func (e *Engine) ensureIdle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil && e.sess.State != model.StateCompleted {
		return ErrSessionActive
	}
	return nil
}

func (e *Engine) activate(subject model.Subject, mode model.Mode, lang model.Language, questions []model.Question, duration int) (*model.ExamSession, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("non-positive duration %d", duration)
	}

	sess := &model.ExamSession{
		ID:              e.newID(),
		Subject:         subject,
		Mode:            mode,
		StartTime:       e.now(),
		Questions:       questions,
		DurationMinutes: duration,
		Language:        lang,
		State:           model.StateActive,
	}

	e.mu.Lock()
	if e.clock != nil {
		e.clock.Stop()
	}
	e.sess = sess
	e.answers = make(map[string]model.Answer)
	e.cursor = 0
	e.results = nil
	e.finishing = false
	e.clock = timer.New(duration, func() {
		if _, err := e.Timeout(context.Background()); err != nil {
			slog.Warn("auto-submission failed", "session_id", sess.ID, "error", err)
		}
	})
	if e.autoTick {
		e.clock.Start()
	}
	e.mu.Unlock()

	slog.Info("session started",
		"session_id", sess.ID,
		"mode", mode,
		"subject", subject,
		"questions", len(questions),
		"duration_min", duration,
	)
	return e.snapshot(), nil
}

// Session returns a snapshot of the current session, or nil.
func (e *Engine) Session() *model.ExamSession {
	return e.snapshot()
}

func (e *Engine) snapshot() *model.ExamSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}
	cp := *e.sess
	cp.Questions = append([]model.Question(nil), e.sess.Questions...)
	return &cp
}

// RecordAnswer inserts or overwrites the answer for a question id.
// Answer shape is not validated here; that is deferred to grading.
func (e *Engine) RecordAnswer(questionID string, ans model.Answer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	if e.sess.State != model.StateActive {
		return fmt.Errorf("%w: cannot answer in state %s", ErrSessionState, e.sess.State)
	}
	e.answers[questionID] = ans
	return nil
}

// Advance moves the question cursor by delta, clamped to the question
// sequence, and returns the new position. Answers are untouched.
func (e *Engine) Advance(delta int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return 0, ErrNoSession
	}
	e.cursor += delta
	if e.cursor < 0 {
		e.cursor = 0
	}
	if maxIdx := len(e.sess.Questions) - 1; e.cursor > maxIdx {
		e.cursor = maxIdx
	}
	return e.cursor, nil
}

// Cursor returns the current question index.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Finish grades the session and completes it. MCQs are graded locally;
// each CQ goes to the oracle once, in question order. On oracle
// failure the session stays in the finalizing state with answers
// unchanged, so re-invoking Finish repeats the same request. At most
// one Finish or Timeout runs at a time.
func (e *Engine) Finish(ctx context.Context) ([]model.GradingResult, error) {
	return e.finalize(ctx, "finish")
}

// Timeout is the timer-driven variant of Finish: identical contract,
// grading whatever answers have been recorded so far.
func (e *Engine) Timeout(ctx context.Context) ([]model.GradingResult, error) {
	return e.finalize(ctx, "timeout")
}

func (e *Engine) finalize(ctx context.Context, trigger string) ([]model.GradingResult, error) {
	e.mu.Lock()
	if e.sess == nil {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	if e.sess.State != model.StateActive && e.sess.State != model.StateFinalizing {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot submit in state %s", ErrSessionState, e.sess.State)
	}
	if e.finishing {
		e.mu.Unlock()
		return nil, ErrFinishInFlight
	}
	e.sess.State = model.StateFinalizing
	e.finishing = true
	sess := e.sess
	questions := append([]model.Question(nil), sess.Questions...)
	answers := make(map[string]model.Answer, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	e.mu.Unlock()

	slog.Info("grading session", "session_id", sess.ID, "trigger", trigger)
	results, err := grader.GradeSession(ctx, e.oracle, questions, answers, sess.Language)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishing = false
	if err != nil {
		// Stay in finalizing; the caller retries with unchanged answers.
		return nil, fmt.Errorf("grade session: %w", err)
	}

	obtained, total, accuracy := grader.Summarize(results)
	entry := model.SessionHistory{
		SessionID:       sess.ID,
		Subject:         sess.Subject,
		Timestamp:       e.now(),
		Score:           obtained,
		TotalMarks:      total,
		Accuracy:        accuracy,
		DurationMinutes: sess.DurationMinutes,
		Mode:            sess.Mode,
	}
	if err := e.history.Append(entry); err != nil {
		slog.Warn("history persistence failed", "session_id", sess.ID, "error", err)
	}

	sess.IsCompleted = true
	sess.State = model.StateCompleted
	e.results = results
	e.answers = nil
	if e.clock != nil {
		e.clock.Stop()
	}

	slog.Info("session completed",
		"session_id", sess.ID,
		"trigger", trigger,
		"score", obtained,
		"total", total,
		"accuracy", accuracy,
	)
	return append([]model.GradingResult(nil), results...), nil
}

// Results returns the grading results of the completed session.
func (e *Engine) Results() []model.GradingResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.GradingResult(nil), e.results...)
}

// Clock returns the countdown of the current session, or nil.
func (e *Engine) Clock() *timer.Countdown {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// Dismiss drops a completed session so a new one can start. The
// session and its results are dereferenced.
func (e *Engine) Dismiss() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	if e.sess.State != model.StateCompleted {
		return fmt.Errorf("%w: cannot dismiss in state %s", ErrSessionState, e.sess.State)
	}
	e.sess = nil
	e.results = nil
	e.cursor = 0
	if e.clock != nil {
		e.clock.Stop()
		e.clock = nil
	}
	return nil
}
