package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/learnspace/session-service/internal/models"
)

// ===== FAKES =====

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStore struct {
	test         *models.Test
	questions    []*models.Question
	testErr      error
	questionsErr error
}

func (s *fakeStore) GetTest(ctx context.Context, id uint) (*models.Test, error) {
	if s.testErr != nil {
		return nil, s.testErr
	}
	return s.test, nil
}

func (s *fakeStore) GetQuestions(ctx context.Context, testID uint) ([]*models.Question, error) {
	if s.questionsErr != nil {
		return nil, s.questionsErr
	}
	return s.questions, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []*models.AttemptRecord
	err     error
}

func (s *fakeSink) RecordAttempt(ctx context.Context, record *models.AttemptRecord) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.records = append(s.records, record)
	return uint(len(s.records)), nil
}

func (s *fakeSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSink) recorded() []*models.AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AttemptRecord, len(s.records))
	copy(out, s.records)
	return out
}

// gatedSink holds its first write open until released, so tests can land
// other operations while that write is in flight.
type gatedSink struct {
	fakeSink
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func newGatedSink() *gatedSink {
	return &gatedSink{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gatedSink) RecordAttempt(ctx context.Context, record *models.AttemptRecord) (uint, error) {
	if atomic.AddInt32(&s.calls, 1) == 1 {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.fakeSink.RecordAttempt(ctx, record)
}

// ===== FIXTURES =====

func fixtureQuestion(id uint, correct, marks int, negative float64) *models.Question {
	return &models.Question{
		ID:            id,
		TestID:        1,
		Text:          "q",
		Options:       datatypes.JSON(`["a","b","c","d"]`),
		CorrectOption: correct,
		Marks:         marks,
		NegativeMarks: negative,
		Order:         int(id),
	}
}

func fixtureTest(duration int) *models.Test {
	return &models.Test{
		ID:          1,
		Title:       "Unit 4 quiz",
		Duration:    duration,
		Status:      models.TestActive,
		PassPercent: 50,
		CreatedBy:   "instructor-1",
	}
}

type fixture struct {
	store *fakeStore
	sink  *fakeSink
	clock *fakeClock
}

func startSession(t *testing.T, fx fixture, hooks ...func(*Config)) *Controller {
	t.Helper()
	cfg := Config{
		Store:     fx.store,
		Sink:      fx.sink,
		Clock:     fx.clock,
		TestID:    1,
		StudentID: "student-1",
	}
	for _, hook := range hooks {
		hook(&cfg)
	}
	c, err := Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return c
}

func defaultFixture(duration int) fixture {
	return fixture{
		store: &fakeStore{
			test: fixtureTest(duration),
			questions: []*models.Question{
				fixtureQuestion(10, 0, 2, 1),
				fixtureQuestion(11, 1, 2, 1),
				fixtureQuestion(12, 2, 2, 1),
			},
		},
		sink:  &fakeSink{},
		clock: newFakeClock(),
	}
}

// ===== START =====

func TestStart(t *testing.T) {
	t.Run("loads test and marks first question visited", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		snap := c.Snapshot()
		if snap.State != StateRunning {
			t.Errorf("state = %s, want %s", snap.State, StateRunning)
		}
		if snap.Remaining != 120 {
			t.Errorf("remaining = %d, want 120", snap.Remaining)
		}
		if snap.Current != 0 {
			t.Errorf("current = %d, want 0", snap.Current)
		}
		if snap.Answers[0].Status != StatusNotAnswered {
			t.Errorf("answers[0].Status = %s, want %s", snap.Answers[0].Status, StatusNotAnswered)
		}
		for i := 1; i < len(snap.Answers); i++ {
			if snap.Answers[i].Status != StatusNotVisited {
				t.Errorf("answers[%d].Status = %s, want %s", i, snap.Answers[i].Status, StatusNotVisited)
			}
		}
	})

	t.Run("test fetch failure surfaces the error", func(t *testing.T) {
		fx := defaultFixture(120)
		fx.store.testErr = errors.New("connection refused")

		_, err := Start(context.Background(), Config{
			Store: fx.store, Sink: fx.sink, Clock: fx.clock, TestID: 1, StudentID: "student-1",
		})
		if err == nil {
			t.Fatal("Start() expected error, got nil")
		}
	})

	t.Run("question fetch failure surfaces the error", func(t *testing.T) {
		fx := defaultFixture(120)
		fx.store.questionsErr = errors.New("connection refused")

		_, err := Start(context.Background(), Config{
			Store: fx.store, Sink: fx.sink, Clock: fx.clock, TestID: 1, StudentID: "student-1",
		})
		if err == nil {
			t.Fatal("Start() expected error, got nil")
		}
	})

	t.Run("empty question list is rejected", func(t *testing.T) {
		fx := defaultFixture(120)
		fx.store.questions = nil

		_, err := Start(context.Background(), Config{
			Store: fx.store, Sink: fx.sink, Clock: fx.clock, TestID: 1, StudentID: "student-1",
		})
		if !errors.Is(err, ErrNoQuestions) {
			t.Fatalf("Start() error = %v, want %v", err, ErrNoQuestions)
		}
	})
}

// ===== NAVIGATION AND ANSWERING =====

func TestNavigate(t *testing.T) {
	fx := defaultFixture(120)
	c := startSession(t, fx)

	c.Navigate(2)
	snap := c.Snapshot()
	if snap.Current != 2 {
		t.Errorf("current = %d, want 2", snap.Current)
	}
	if snap.Answers[2].Status != StatusNotAnswered {
		t.Errorf("answers[2].Status = %s, want %s", snap.Answers[2].Status, StatusNotAnswered)
	}

	// Out-of-range indices are ignored, never fatal.
	c.Navigate(-1)
	c.Navigate(99)
	if snap = c.Snapshot(); snap.Current != 2 {
		t.Errorf("current after out-of-range navigation = %d, want 2", snap.Current)
	}

	// Navigating back never reverts a visited status.
	c.Navigate(0)
	if snap = c.Snapshot(); snap.Answers[2].Status != StatusNotAnswered {
		t.Errorf("answers[2].Status reverted to %s", snap.Answers[2].Status)
	}
}

func TestSelectAnswer(t *testing.T) {
	t.Run("records option and status", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.SelectAnswer(1)
		snap := c.Snapshot()
		if snap.Answers[0].OptionIndex == nil || *snap.Answers[0].OptionIndex != 1 {
			t.Errorf("answers[0].OptionIndex = %v, want 1", snap.Answers[0].OptionIndex)
		}
		if snap.Answers[0].Status != StatusAnswered {
			t.Errorf("answers[0].Status = %s, want %s", snap.Answers[0].Status, StatusAnswered)
		}

		// Re-selecting replaces the option.
		c.SelectAnswer(3)
		if snap = c.Snapshot(); *snap.Answers[0].OptionIndex != 3 {
			t.Errorf("answers[0].OptionIndex = %d, want 3", *snap.Answers[0].OptionIndex)
		}
	})

	t.Run("selection on marked question keeps the mark", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.ToggleMarkForReview() // marks question 0, advances to 1
		c.Navigate(0)
		c.SelectAnswer(2)

		snap := c.Snapshot()
		if snap.Answers[0].Status != StatusAnsweredMarked {
			t.Errorf("answers[0].Status = %s, want %s", snap.Answers[0].Status, StatusAnsweredMarked)
		}
	})

	t.Run("out-of-range option is ignored", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.SelectAnswer(4)
		c.SelectAnswer(-1)
		snap := c.Snapshot()
		if snap.Answers[0].OptionIndex != nil {
			t.Errorf("answers[0].OptionIndex = %v, want nil", snap.Answers[0].OptionIndex)
		}
	})
}

func TestClearAnswer(t *testing.T) {
	fx := defaultFixture(120)
	c := startSession(t, fx)

	c.SelectAnswer(1)
	c.ToggleMarkForReview() // answered -> answered_marked, advances
	c.Navigate(0)
	c.ClearAnswer()

	snap := c.Snapshot()
	if snap.Answers[0].OptionIndex != nil {
		t.Errorf("answers[0].OptionIndex = %v, want nil", snap.Answers[0].OptionIndex)
	}
	// Clearing drops the review mark along with the selection.
	if snap.Answers[0].Status != StatusNotAnswered {
		t.Errorf("answers[0].Status = %s, want %s", snap.Answers[0].Status, StatusNotAnswered)
	}
}

func TestToggleMarkForReview(t *testing.T) {
	t.Run("marks and advances", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.ToggleMarkForReview()
		snap := c.Snapshot()
		if snap.Answers[0].Status != StatusMarked {
			t.Errorf("answers[0].Status = %s, want %s", snap.Answers[0].Status, StatusMarked)
		}
		if snap.Current != 1 {
			t.Errorf("current = %d, want 1", snap.Current)
		}
		if snap.Answers[1].Status != StatusNotAnswered {
			t.Errorf("answers[1].Status = %s, want %s", snap.Answers[1].Status, StatusNotAnswered)
		}
	})

	t.Run("last question stays current", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.Navigate(2)
		c.ToggleMarkForReview()
		snap := c.Snapshot()
		if snap.Current != 2 {
			t.Errorf("current = %d, want 2", snap.Current)
		}
		if snap.Answers[2].Status != StatusMarked {
			t.Errorf("answers[2].Status = %s, want %s", snap.Answers[2].Status, StatusMarked)
		}
	})
}

// ===== COUNTDOWN =====

func TestTick(t *testing.T) {
	t.Run("decrements once per tick", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.Tick()
		c.Tick()
		if snap := c.Snapshot(); snap.Remaining != 118 {
			t.Errorf("remaining = %d, want 118", snap.Remaining)
		}
	})

	t.Run("expiry auto-submits exactly once", func(t *testing.T) {
		fx := defaultFixture(3)
		c := startSession(t, fx)
		c.SelectAnswer(0) // correct

		for i := 0; i < 10; i++ {
			c.Tick()
		}

		snap := c.Snapshot()
		if snap.State != StateAutoSubmitted {
			t.Fatalf("state = %s, want %s", snap.State, StateAutoSubmitted)
		}
		if snap.Remaining != 0 {
			t.Errorf("remaining = %d, want 0", snap.Remaining)
		}
		records := fx.sink.recorded()
		if len(records) != 1 {
			t.Fatalf("sink received %d records, want 1", len(records))
		}
		if records[0].Status != models.AttemptAutoSubmitted {
			t.Errorf("record status = %s, want %s", records[0].Status, models.AttemptAutoSubmitted)
		}
		if records[0].EndReason != models.AttemptEndReasonTimeout {
			t.Errorf("record end reason = %s, want %s", records[0].EndReason, models.AttemptEndReasonTimeout)
		}
		if records[0].TimeSpent != 3 {
			t.Errorf("record time spent = %d, want 3", records[0].TimeSpent)
		}
	})
}

// ===== SUBMIT =====

func TestSubmit(t *testing.T) {
	t.Run("grades and records the attempt", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		c.SelectAnswer(0) // correct, +2
		c.Navigate(1)
		c.SelectAnswer(3) // incorrect, -1
		c.Tick()
		c.Tick()

		if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		snap := c.Snapshot()
		if snap.State != StateSubmitted {
			t.Errorf("state = %s, want %s", snap.State, StateSubmitted)
		}

		records := fx.sink.recorded()
		if len(records) != 1 {
			t.Fatalf("sink received %d records, want 1", len(records))
		}
		rec := records[0]
		if rec.Score != 1 || rec.TotalMarks != 6 {
			t.Errorf("score = %v/%d, want 1/6", rec.Score, rec.TotalMarks)
		}
		if rec.Percentage != 17 {
			t.Errorf("percentage = %d, want 17", rec.Percentage)
		}
		if rec.Passed {
			t.Error("passed = true, want false")
		}
		if rec.Correct != 1 || rec.Incorrect != 1 || rec.Unattempted != 1 {
			t.Errorf("counts = %d/%d/%d, want 1/1/1", rec.Correct, rec.Incorrect, rec.Unattempted)
		}
		if rec.TimeSpent != 2 {
			t.Errorf("time spent = %d, want 2", rec.TimeSpent)
		}
		if len(rec.Answers) != 3 {
			t.Errorf("recorded %d answers, want 3", len(rec.Answers))
		}
	})

	t.Run("sink failure keeps session retryable", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)
		c.SelectAnswer(0)

		fx.sink.fail(errors.New("db unavailable"))
		if err := c.Submit(context.Background(), ReasonCompleted); err == nil {
			t.Fatal("Submit() expected error, got nil")
		}

		snap := c.Snapshot()
		if snap.State != StateSubmitting {
			t.Fatalf("state = %s, want %s", snap.State, StateSubmitting)
		}
		// The answer sheet survives the failure.
		if snap.Answers[0].OptionIndex == nil || *snap.Answers[0].OptionIndex != 0 {
			t.Error("answers lost after failed submission")
		}

		fx.sink.fail(nil)
		if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
			t.Fatalf("retry Submit() error = %v", err)
		}
		if snap = c.Snapshot(); snap.State != StateSubmitted {
			t.Errorf("state = %s, want %s", snap.State, StateSubmitted)
		}
		if records := fx.sink.recorded(); len(records) != 1 {
			t.Errorf("sink received %d records, want 1", len(records))
		}
	})

	t.Run("retry keeps the original submit reason", func(t *testing.T) {
		fx := defaultFixture(2)
		c := startSession(t, fx)

		fx.sink.fail(errors.New("db unavailable"))
		c.Tick()
		c.Tick() // expiry, auto-submission fails

		if snap := c.Snapshot(); snap.State != StateSubmitting {
			t.Fatalf("state = %s, want %s", snap.State, StateSubmitting)
		}

		fx.sink.fail(nil)
		// A manual retry must not reclassify the timeout as a completion.
		if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
			t.Fatalf("retry Submit() error = %v", err)
		}

		if snap := c.Snapshot(); snap.State != StateAutoSubmitted {
			t.Errorf("state = %s, want %s", snap.State, StateAutoSubmitted)
		}
		records := fx.sink.recorded()
		if len(records) != 1 || records[0].Status != models.AttemptAutoSubmitted {
			t.Errorf("record status = %v, want one %s record", records, models.AttemptAutoSubmitted)
		}
	})

	t.Run("no-op once terminal", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
			t.Fatalf("second Submit() error = %v", err)
		}
		if records := fx.sink.recorded(); len(records) != 1 {
			t.Errorf("sink received %d records, want 1", len(records))
		}
	})
}

// ===== ABANDON =====

func TestAbandon(t *testing.T) {
	t.Run("forfeits score but keeps the answer sheet", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)
		c.SelectAnswer(0) // would have been correct

		if err := c.Abandon(context.Background()); err != nil {
			t.Fatalf("Abandon() error = %v", err)
		}

		if snap := c.Snapshot(); snap.State != StateAbandoned {
			t.Errorf("state = %s, want %s", snap.State, StateAbandoned)
		}

		records := fx.sink.recorded()
		if len(records) != 1 {
			t.Fatalf("sink received %d records, want 1", len(records))
		}
		rec := records[0]
		if rec.Score != 0 || rec.Percentage != 0 || rec.Passed {
			t.Errorf("abandoned attempt scored %v/%d%%/passed=%v, want 0/0/false",
				rec.Score, rec.Percentage, rec.Passed)
		}
		if rec.Status != models.AttemptAbandoned {
			t.Errorf("record status = %s, want %s", rec.Status, models.AttemptAbandoned)
		}
		if len(rec.Answers) != 3 || rec.Answers[0].OptionIndex == nil {
			t.Error("abandoned record lost the answer sheet")
		}
	})

	t.Run("goes terminal even when the sink fails", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		fx.sink.fail(errors.New("db unavailable"))
		if err := c.Abandon(context.Background()); err != nil {
			t.Fatalf("Abandon() error = %v", err)
		}
		if snap := c.Snapshot(); snap.State != StateAbandoned {
			t.Errorf("state = %s, want %s", snap.State, StateAbandoned)
		}
	})

	t.Run("wins over an in-flight submit", func(t *testing.T) {
		fx := defaultFixture(120)
		sink := newGatedSink()

		var (
			mu            sync.Mutex
			terminalCount int
			terminal      Result
		)
		c := startSession(t, fx, func(cfg *Config) {
			cfg.Sink = sink
			cfg.OnTerminal = func(r Result) {
				mu.Lock()
				terminalCount++
				terminal = r
				mu.Unlock()
			}
		})
		c.SelectAnswer(0)

		submitDone := make(chan error, 1)
		go func() {
			submitDone <- c.Submit(context.Background(), ReasonCompleted)
		}()
		<-sink.entered // the submit's sink write is now in flight

		if err := c.Abandon(context.Background()); err != nil {
			t.Fatalf("Abandon() error = %v", err)
		}
		if snap := c.Snapshot(); snap.State != StateAbandoned {
			t.Fatalf("state = %s, want %s", snap.State, StateAbandoned)
		}

		close(sink.release)
		if err := <-submitDone; err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		// The abandoned outcome stands; the returning submit must not
		// overwrite the terminal state.
		if snap := c.Snapshot(); snap.State != StateAbandoned {
			t.Errorf("state = %s, want %s", snap.State, StateAbandoned)
		}

		mu.Lock()
		defer mu.Unlock()
		if terminalCount != 1 {
			t.Fatalf("terminal fired %d times, want 1", terminalCount)
		}
		if terminal.Record == nil || terminal.Record.Status != models.AttemptAbandoned {
			t.Errorf("terminal record = %+v, want status %s", terminal.Record, models.AttemptAbandoned)
		}
		records := sink.recorded()
		if len(records) == 0 || records[0].Status != models.AttemptAbandoned {
			t.Errorf("first recorded attempt = %+v, want status %s", records, models.AttemptAbandoned)
		}
	})

	t.Run("rejected once terminal", func(t *testing.T) {
		fx := defaultFixture(120)
		c := startSession(t, fx)

		if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if err := c.Abandon(context.Background()); !errors.Is(err, ErrAlreadyTerminal) {
			t.Errorf("Abandon() error = %v, want %v", err, ErrAlreadyTerminal)
		}
		if records := fx.sink.recorded(); len(records) != 1 {
			t.Errorf("sink received %d records, want 1", len(records))
		}
	})
}

// ===== TERMINAL BEHAVIOR =====

func TestTerminalSessionIgnoresMutations(t *testing.T) {
	fx := defaultFixture(120)
	c := startSession(t, fx)

	if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	before := c.Snapshot()

	c.Navigate(2)
	c.SelectAnswer(1)
	c.ClearAnswer()
	c.ToggleMarkForReview()
	c.Tick()

	after := c.Snapshot()
	if after.Current != before.Current || after.Remaining != before.Remaining {
		t.Errorf("terminal session mutated: %+v -> %+v", before, after)
	}
	for i := range after.Answers {
		if after.Answers[i].Status != before.Answers[i].Status {
			t.Errorf("answers[%d].Status changed after terminal", i)
		}
	}
}

func TestObservers(t *testing.T) {
	fx := defaultFixture(120)

	var (
		mu            sync.Mutex
		changes       []State
		terminalCount int
		terminal      Result
	)
	c := startSession(t, fx, func(cfg *Config) {
		cfg.OnChange = func(s Snapshot) {
			mu.Lock()
			changes = append(changes, s.State)
			mu.Unlock()
		}
		cfg.OnTerminal = func(r Result) {
			mu.Lock()
			terminalCount++
			terminal = r
			mu.Unlock()
		}
	})

	c.SelectAnswer(0)
	c.Navigate(1)
	if err := c.Submit(context.Background(), ReasonCompleted); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) < 4 {
		t.Errorf("observed %d changes, want at least 4", len(changes))
	}
	if terminalCount != 1 {
		t.Fatalf("terminal fired %d times, want 1", terminalCount)
	}
	if terminal.AttemptID == 0 {
		t.Error("terminal result missing attempt ID")
	}
	if terminal.Record == nil || terminal.Record.Correct != 1 {
		t.Errorf("terminal record = %+v, want 1 correct", terminal.Record)
	}
}

func TestConcurrentDispatch(t *testing.T) {
	fx := defaultFixture(600)
	c := startSession(t, fx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch n % 4 {
				case 0:
					c.Navigate(j % 3)
				case 1:
					c.SelectAnswer(j % 4)
				case 2:
					c.ToggleMarkForReview()
				default:
					c.Tick()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.State != StateRunning {
		t.Errorf("state = %s, want %s", snap.State, StateRunning)
	}
	if snap.Remaining < 600-2*50 || snap.Remaining > 600 {
		t.Errorf("remaining = %d out of expected range", snap.Remaining)
	}
	for i, a := range snap.Answers {
		if a.Status.HasSelection() != (a.OptionIndex != nil) {
			t.Errorf("answers[%d] selection/status mismatch: %s with option %v", i, a.Status, a.OptionIndex)
		}
	}
}
