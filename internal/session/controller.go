package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
)

var (
	ErrNoQuestions     = errors.New("test has no questions")
	ErrSubmitInFlight  = errors.New("submission already in progress")
	ErrNotSubmittable  = errors.New("session is not running")
	ErrAlreadyTerminal = errors.New("session already terminal")
)

// Answer is the mutable per-question state of one session. Exactly one
// Answer exists per question for the session lifetime; it is only ever
// overwritten, never removed.
type Answer struct {
	QuestionID  uint         `json:"question_id"`
	OptionIndex *int         `json:"option_index"`
	Status      AnswerStatus `json:"status"`
}

// Snapshot is an immutable copy of the observable session state, handed to
// the OnChange observer and to read endpoints.
type Snapshot struct {
	TestID    uint     `json:"test_id"`
	StudentID string   `json:"student_id"`
	State     State    `json:"state"`
	Current   int      `json:"current"`
	Remaining int      `json:"remaining"` // seconds
	Answers   []Answer `json:"answers"`
}

// Result carries the final outcome of a session. It is delivered exactly
// once via OnTerminal. AttemptID is zero when the sink write failed on the
// abandon path.
type Result struct {
	AttemptID uint
	Record    *models.AttemptRecord
}

// Config wires a controller to its collaborators.
type Config struct {
	Store     repositories.QuestionStore
	Sink      repositories.AttemptSink
	Clock     Clock
	Logger    *slog.Logger
	TestID    uint
	StudentID string

	// OnChange is invoked after every observable mutation, outside the
	// controller lock. Snapshots from concurrent operations may therefore
	// arrive out of order; consumers needing the current state should call
	// Snapshot instead of trusting the last delivery. OnTerminal fires
	// exactly once.
	OnChange   func(Snapshot)
	OnTerminal func(Result)
}

// Controller owns the state machine of one timed test attempt. All
// operations are serialized by an internal mutex, so user dispatches and
// timer ticks may arrive from any goroutine in any interleaving.
type Controller struct {
	mu sync.Mutex

	test         *models.Test
	questions    []*models.Question
	optionCounts []int

	state     State
	current   int
	remaining int // seconds
	answers   []Answer

	// pendingReason holds the submit reason across sink retries so a retry
	// cannot reclassify the submission.
	pendingReason SubmitReason
	sinkInFlight  bool
	terminalFired bool

	studentID string
	startedAt time.Time

	sink    repositories.AttemptSink
	clock   Clock
	logger  *slog.Logger
	baseCtx context.Context

	onChange   func(Snapshot)
	onTerminal func(Result)
}

const sinkTimeout = 10 * time.Second

// Start loads the test and its ordered question list, then returns a running
// controller. Loading is one-shot: any fetch failure terminates the session
// before it exists, and the error is surfaced to the caller.
func Start(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	test, err := cfg.Store.GetTest(ctx, cfg.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test %d: %w", cfg.TestID, err)
	}

	questions, err := cfg.Store.GetQuestions(ctx, cfg.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions for test %d: %w", cfg.TestID, err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	c := &Controller{
		test:         test,
		questions:    questions,
		optionCounts: make([]int, len(questions)),
		state:        StateRunning,
		remaining:    test.Duration,
		answers:      make([]Answer, len(questions)),
		studentID:    cfg.StudentID,
		startedAt:    cfg.Clock.Now(),
		sink:         cfg.Sink,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		baseCtx:      context.WithoutCancel(ctx),
		onChange:     cfg.OnChange,
		onTerminal:   cfg.OnTerminal,
	}

	for i, q := range questions {
		c.answers[i] = Answer{QuestionID: q.ID, Status: StatusNotVisited}
		c.optionCounts[i] = len(q.OptionList())
	}
	// The first question is current from the moment the session starts.
	c.answers[0].Status = visited(c.answers[0].Status)

	return c, nil
}

// Test returns the immutable test metadata.
func (c *Controller) Test() *models.Test { return c.test }

// Questions returns the immutable ordered question list.
func (c *Controller) Questions() []*models.Question { return c.questions }

// Snapshot returns a copy of the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Navigate moves the current-question pointer. Out-of-range indices are
// ignored; they never crash or corrupt state.
func (c *Controller) Navigate(index int) {
	c.mu.Lock()
	if c.state != StateRunning || index < 0 || index >= len(c.answers) {
		c.mu.Unlock()
		return
	}
	c.current = index
	c.answers[index].Status = visited(c.answers[index].Status)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)
}

// SelectAnswer records an option for the current question. An option index
// outside the question's option list is ignored.
func (c *Controller) SelectAnswer(optionIndex int) {
	c.mu.Lock()
	if c.state != StateRunning || optionIndex < 0 || optionIndex >= c.optionCounts[c.current] {
		c.mu.Unlock()
		return
	}
	ans := &c.answers[c.current]
	idx := optionIndex
	ans.OptionIndex = &idx
	ans.Status = selected(ans.Status)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)
}

// ClearAnswer removes the selection from the current question. Clearing also
// drops the marked-for-review qualifier.
func (c *Controller) ClearAnswer() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	ans := &c.answers[c.current]
	ans.OptionIndex = nil
	ans.Status = cleared()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)
}

// ToggleMarkForReview flips the review mark on the current question, then
// advances to the next question if one exists (mark-and-next convention).
func (c *Controller) ToggleMarkForReview() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	ans := &c.answers[c.current]
	ans.Status = toggledMark(ans.Status)
	if next := c.current + 1; next < len(c.answers) {
		c.current = next
		c.answers[next].Status = visited(c.answers[next].Status)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)
}

// Tick decrements the countdown by one second. The host drives it at 1 Hz;
// delayed ticks simply stretch the session in wall-clock terms. Reaching
// zero triggers the automatic submission exactly once.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.state != StateRunning || c.remaining == 0 {
		c.mu.Unlock()
		return
	}
	c.remaining--
	expired := c.remaining == 0
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)

	if expired {
		if err := c.Submit(c.baseCtx, ReasonTimeout); err != nil {
			c.logger.Error("auto-submission failed, session held for retry",
				"test_id", c.test.ID,
				"student_id", c.studentID,
				"error", err)
		}
	}
}

// Submit grades the answer sheet and hands the record to the attempt sink.
// On sink failure the session stays in the submitting state with all answers
// intact, and the caller may invoke Submit again to retry; the original
// submit reason is kept across retries. Once terminal, Submit is a no-op.
func (c *Controller) Submit(ctx context.Context, reason SubmitReason) error {
	c.mu.Lock()
	switch {
	case c.state == StateRunning:
		c.state = StateSubmitting
		c.pendingReason = reason
	case c.state == StateSubmitting:
		if c.sinkInFlight {
			c.mu.Unlock()
			return ErrSubmitInFlight
		}
	default:
		c.mu.Unlock()
		return nil
	}
	c.sinkInFlight = true
	reason = c.pendingReason
	record := c.buildRecordLocked(reason)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)

	attemptID, err := c.recordAttempt(ctx, record)

	c.mu.Lock()
	c.sinkInFlight = false
	if c.state != StateSubmitting {
		// Abandon went terminal while the write was in flight; that outcome
		// stands and this submission is discarded.
		c.mu.Unlock()
		if err == nil {
			c.logger.Warn("submission superseded while sink write was in flight",
				"test_id", c.test.ID,
				"student_id", c.studentID)
		}
		return nil
	}
	if err != nil {
		// Stay in Submitting; the attempt is not lost and the caller
		// decides whether to retry or abandon.
		c.mu.Unlock()
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	c.state = reason.terminalState()
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)
	c.fireTerminal(Result{AttemptID: attemptID, Record: record})

	return nil
}

// Abandon terminates the session immediately, forfeiting the score. The
// attempt is still recorded (scored as zero) so instructors keep an audit
// trail, but the terminal transition does not wait on the sink: a failed
// write is logged, not retried.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return ErrAlreadyTerminal
	}
	c.state = StateAbandoned
	c.pendingReason = ReasonAbandoned
	record := c.buildRecordLocked(ReasonAbandoned)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyChange(snap)

	attemptID, err := c.recordAttempt(ctx, record)
	if err != nil {
		c.logger.Error("failed to record abandoned attempt",
			"test_id", c.test.ID,
			"student_id", record.StudentID,
			"error", err)
	}

	c.fireTerminal(Result{AttemptID: attemptID, Record: record})
	return nil
}

// ===== INTERNALS =====

func (c *Controller) snapshotLocked() Snapshot {
	answers := make([]Answer, len(c.answers))
	copy(answers, c.answers)
	return Snapshot{
		TestID:    c.test.ID,
		StudentID: c.studentID,
		State:     c.state,
		Current:   c.current,
		Remaining: c.remaining,
		Answers:   answers,
	}
}

func (c *Controller) buildRecordLocked(reason SubmitReason) *models.AttemptRecord {
	breakdown := ComputeScore(c.questions, c.answers, c.test.PassPercent)

	status := models.AttemptCompleted
	switch reason {
	case ReasonTimeout:
		status = models.AttemptAutoSubmitted
	case ReasonAbandoned:
		status = models.AttemptAbandoned
		// Score forfeited on abandon; the answer sheet is still recorded.
		breakdown.Score = 0
		breakdown.Percentage = 0
		breakdown.Passed = false
	}

	recorded := make([]models.RecordedAnswer, len(c.answers))
	for i, a := range c.answers {
		recorded[i] = models.RecordedAnswer{
			QuestionID:  a.QuestionID,
			OptionIndex: a.OptionIndex,
			Status:      string(a.Status),
		}
	}

	return &models.AttemptRecord{
		TestID:      c.test.ID,
		StudentID:   c.studentID,
		Status:      status,
		EndReason:   string(reason),
		Score:       breakdown.Score,
		TotalMarks:  breakdown.TotalMarks,
		Percentage:  breakdown.Percentage,
		Passed:      breakdown.Passed,
		Correct:     breakdown.Correct,
		Incorrect:   breakdown.Incorrect,
		Unattempted: breakdown.Unattempted,
		Answers:     recorded,
		StartedAt:   c.startedAt,
		SubmittedAt: c.clock.Now(),
		TimeSpent:   c.test.Duration - c.remaining,
	}
}

func (c *Controller) recordAttempt(ctx context.Context, record *models.AttemptRecord) (uint, error) {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	return c.sink.RecordAttempt(ctx, record)
}

func (c *Controller) notifyChange(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}

func (c *Controller) fireTerminal(result Result) {
	c.mu.Lock()
	if c.terminalFired {
		c.mu.Unlock()
		return
	}
	c.terminalFired = true
	c.mu.Unlock()

	if c.onTerminal != nil {
		c.onTerminal(result)
	}
}
