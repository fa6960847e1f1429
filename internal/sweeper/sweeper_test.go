package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brokeshield/brokeshield/internal/db/dbtest"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/notify"
	"github.com/brokeshield/brokeshield/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []model.NotificationEvent
}

func (r *recorder) Emit(ev model.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []model.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.NotificationEvent(nil), r.events...)
}

func setup(t *testing.T) (*sqlx.DB, *Sweeper, *recorder) {
	t.Helper()
	database := dbtest.Open(t)
	rec := &recorder{}
	sw := New(database, rec, Config{AppName: "BrokeShield", Holder: "test"}, slog.New(slog.DiscardHandler))

	err := repository.NewUserRepository(database).Upsert(context.Background(), &model.User{ID: "alice", Email: "alice@example.com", CreatedAt: now})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return database, sw, rec
}

type goalOpts struct {
	description string
	deadline    time.Time
	required    model.Money
	saved       model.Money
	complete    bool
	status      string
}

func insertGoal(t *testing.T, database *sqlx.DB, o goalOpts) *model.Goal {
	t.Helper()
	ctx := context.Background()
	if o.status == "" {
		o.status = model.GoalStatusPending
	}

	goal := &model.Goal{
		ID:             uuid.NewString(),
		UserID:         "alice",
		Description:    o.description,
		AmountRequired: o.required,
		Deadline:       o.deadline,
		AmountSaved:    o.saved,
		Complete:       o.complete,
		Status:         o.status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	repos := repository.New(database)
	if err := repos.Goals.Create(ctx, goal); err != nil {
		t.Fatalf("Create goal: %v", err)
	}
	if o.saved > 0 {
		err := repos.Contributions.Create(ctx, &model.Contribution{
			ID:            uuid.NewString(),
			GoalID:        goal.ID,
			ContributorID: "alice",
			Amount:        o.saved,
			CreatedAt:     now,
		})
		if err != nil {
			t.Fatalf("Create contribution: %v", err)
		}
	}
	return goal
}

func status(t *testing.T, database *sqlx.DB, goalID string) *model.Goal {
	t.Helper()
	goal, err := repository.NewGoalRepository(database).ByID(context.Background(), goalID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	return goal
}

func TestSweepExpirations(t *testing.T) {
	database, sw, rec := setup(t)
	yesterday := insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000})
	future := insertGoal(t, database, goalOpts{description: "car", deadline: model.Deadline(now.AddDate(0, 0, 3)), required: 1000})
	claimed := insertGoal(t, database, goalOpts{description: "trip", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000, saved: 1000, complete: true})

	res, err := sw.SweepExpirations(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpirations: %v", err)
	}
	if res.Transitioned != 1 || res.Skipped {
		t.Fatalf("result = %+v, want 1 transitioned", res)
	}

	if got := status(t, database, yesterday.ID).Status; got != model.GoalStatusExpired {
		t.Fatalf("past goal status = %s, want expired", got)
	}
	if got := status(t, database, future.ID).Status; got != model.GoalStatusPending {
		t.Fatalf("future goal status = %s, want pending", got)
	}
	if got := status(t, database, claimed.ID).Status; got != model.GoalStatusPending {
		t.Fatalf("completed goal status = %s, want pending", got)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if ev := events[0]; ev.Kind != model.NotificationExpired || ev.GoalID != yesterday.ID || ev.RecipientEmail != "alice@example.com" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestSweepExpirationsIsIdempotent(t *testing.T) {
	database, sw, rec := setup(t)
	insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000})

	if _, err := sw.SweepExpirations(context.Background(), now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	res, err := sw.SweepExpirations(context.Background(), now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Transitioned != 0 {
		t.Fatalf("second sweep transitioned %d, want 0", res.Transitioned)
	}
	if got := len(rec.all()); got != 1 {
		t.Fatalf("events = %d, want 1", got)
	}
}

func TestSweepCompletions(t *testing.T) {
	database, sw, rec := setup(t)
	backed := insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, 2)), required: 1000, saved: 1000, complete: true})
	unbacked := insertGoal(t, database, goalOpts{description: "car", deadline: model.Deadline(now.AddDate(0, 0, 2)), required: 5000, saved: 1000, complete: true})
	open := insertGoal(t, database, goalOpts{description: "trip", deadline: model.Deadline(now.AddDate(0, 0, 2)), required: 1000, saved: 1000})

	res, err := sw.SweepCompletions(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepCompletions: %v", err)
	}
	if res.Transitioned != 1 || res.Invalidated != 1 {
		t.Fatalf("result = %+v, want 1 transitioned and 1 invalidated", res)
	}

	if got := status(t, database, backed.ID).Status; got != model.GoalStatusAccomplished {
		t.Fatalf("backed goal status = %s, want accomplished", got)
	}
	withdrawn := status(t, database, unbacked.ID)
	if withdrawn.Status != model.GoalStatusPending || withdrawn.Complete {
		t.Fatalf("unbacked goal = %+v, want pending and not complete", withdrawn)
	}
	if got := status(t, database, open.ID).Status; got != model.GoalStatusPending {
		t.Fatalf("open goal status = %s, want pending", got)
	}

	events := rec.all()
	if len(events) != 1 || events[0].Kind != model.NotificationAccomplished || events[0].GoalID != backed.ID {
		t.Fatalf("events = %+v", events)
	}
}

func TestTerminalStatesNeverChange(t *testing.T) {
	database, sw, rec := setup(t)
	expired := insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000, saved: 1000, complete: true, status: model.GoalStatusExpired})
	done := insertGoal(t, database, goalOpts{description: "car", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000, status: model.GoalStatusAccomplished})

	for _, pass := range []string{PassExpirations, PassCompletions, PassExpirations} {
		if _, err := sw.Run(context.Background(), pass, now.AddDate(0, 1, 0)); err != nil {
			t.Fatalf("Run(%s): %v", pass, err)
		}
	}

	if got := status(t, database, expired.ID).Status; got != model.GoalStatusExpired {
		t.Fatalf("expired goal became %s", got)
	}
	if got := status(t, database, done.ID).Status; got != model.GoalStatusAccomplished {
		t.Fatalf("accomplished goal became %s", got)
	}
	if got := len(rec.all()); got != 0 {
		t.Fatalf("events = %d, want 0", got)
	}
}

func newSweeper(database *sqlx.DB, dispatcher notify.Dispatcher, holder string, clock func() time.Time) *Sweeper {
	return New(database, dispatcher, Config{AppName: "BrokeShield", Holder: holder, LeaseTTL: time.Minute, Clock: clock}, slog.New(slog.DiscardHandler))
}

func TestLeaseBlocksOverlappingRun(t *testing.T) {
	database, _, rec := setup(t)
	goal := insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000})

	ok, err := repository.NewLeaseRepository(database).Acquire(context.Background(), PassExpirations, "other-host", now, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}

	wall := now
	sw := newSweeper(database, rec, "test", func() time.Time { return wall })

	res, err := sw.SweepExpirations(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpirations: %v", err)
	}
	if !res.Skipped || res.Transitioned != 0 {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if got := status(t, database, goal.ID).Status; got != model.GoalStatusPending {
		t.Fatalf("status = %s while lease held elsewhere", got)
	}

	// The foreign lease lapses on the wall clock and the next run proceeds.
	wall = now.Add(2 * time.Minute)
	res, err = sw.SweepExpirations(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpirations: %v", err)
	}
	if res.Skipped || res.Transitioned != 1 || len(rec.all()) != 1 {
		t.Fatalf("result = %+v, events = %d", res, len(rec.all()))
	}
}

// blockingDispatcher holds the emitting pass, and with it the pass lease,
// until release is closed.
type blockingDispatcher struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (d *blockingDispatcher) Emit(model.NotificationEvent) {
	d.once.Do(func() { close(d.started) })
	<-d.release
}

func TestLeaseExpiryFollowsWallClock(t *testing.T) {
	database, _, rec := setup(t)
	insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, 1)), required: 1000})

	// A manual run evaluated five years ahead holds the lease mid-pass.
	blocker := &blockingDispatcher{started: make(chan struct{}), release: make(chan struct{})}
	manual := newSweeper(database, blocker, "cli", func() time.Time { return now })
	done := make(chan error, 1)
	go func() {
		_, err := manual.SweepExpirations(context.Background(), now.AddDate(5, 0, 0))
		done <- err
	}()

	select {
	case <-blocker.started:
	case <-time.After(5 * time.Second):
		close(blocker.release)
		t.Fatal("manual pass never emitted")
	}

	// A run evaluated in the past cannot take over the live lease.
	stale := newSweeper(database, rec, "stale", func() time.Time { return now.Add(30 * time.Second) })
	res, err := stale.SweepExpirations(context.Background(), now.AddDate(-5, 0, 0))
	if err != nil {
		t.Fatalf("stale SweepExpirations: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("stale result = %+v, want skipped while the lease is live", res)
	}

	// Ten minutes of wall time later the one minute lease has lapsed.
	server := newSweeper(database, rec, "server", func() time.Time { return now.Add(10 * time.Minute) })
	res, err = server.SweepExpirations(context.Background(), now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("server SweepExpirations: %v", err)
	}
	if res.Skipped {
		t.Fatalf("server result = %+v, want the lapsed lease reclaimed", res)
	}

	close(blocker.release)
	if err := <-done; err != nil {
		t.Fatalf("manual SweepExpirations: %v", err)
	}
}

func TestSweepExpirationsWithZonedInstant(t *testing.T) {
	database, sw, rec := setup(t)
	deadline := model.Deadline(now.AddDate(0, 0, 1))
	goal := insertGoal(t, database, goalOpts{description: "bike", deadline: deadline, required: 1000})
	kiritimati := time.FixedZone("UTC+14", 14*60*60)

	res, err := sw.SweepExpirations(context.Background(), deadline.Add(-time.Hour).In(kiritimati))
	if err != nil {
		t.Fatalf("SweepExpirations: %v", err)
	}
	if res.Transitioned != 0 || len(rec.all()) != 0 {
		t.Fatalf("result = %+v, events = %d before the deadline", res, len(rec.all()))
	}
	if got := status(t, database, goal.ID).Status; got != model.GoalStatusPending {
		t.Fatalf("status = %s an hour before the deadline, want pending", got)
	}

	res, err = sw.SweepExpirations(context.Background(), deadline.Add(time.Hour).In(kiritimati))
	if err != nil {
		t.Fatalf("SweepExpirations: %v", err)
	}
	if res.Transitioned != 1 || len(rec.all()) != 1 {
		t.Fatalf("result = %+v, events = %d after the deadline", res, len(rec.all()))
	}
}

func TestFailedPassRollsBackWithoutEvents(t *testing.T) {
	database, sw, rec := setup(t)
	first := insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, -3)), required: 1000})
	insertGoal(t, database, goalOpts{description: "boom", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000})

	_, err := database.Exec(`CREATE TRIGGER fail_boom BEFORE UPDATE OF status ON goals
		WHEN NEW.description = 'boom'
		BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := sw.SweepExpirations(context.Background(), now); err == nil {
		t.Fatal("SweepExpirations succeeded, want error")
	}
	if got := status(t, database, first.ID).Status; got != model.GoalStatusPending {
		t.Fatalf("status = %s after rollback, want pending", got)
	}
	if got := len(rec.all()); got != 0 {
		t.Fatalf("events = %d after rollback, want 0", got)
	}

	if _, err := database.Exec(`DROP TRIGGER fail_boom`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	res, err := sw.SweepExpirations(context.Background(), now)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Transitioned != 2 || len(rec.all()) != 2 {
		t.Fatalf("retry result = %+v, events = %d", res, len(rec.all()))
	}
}

func TestRunRejectsUnknownPass(t *testing.T) {
	_, sw, _ := setup(t)
	if _, err := sw.Run(context.Background(), "everything", now); err == nil {
		t.Fatal("Run accepted unknown pass")
	}
}

func TestSchedulerRunsBothPasses(t *testing.T) {
	database, sw, rec := setup(t)
	expiring := insertGoal(t, database, goalOpts{description: "bike", deadline: model.Deadline(now.AddDate(0, 0, -1)), required: 1000})
	completing := insertGoal(t, database, goalOpts{description: "car", deadline: model.Deadline(now.AddDate(0, 0, 5)), required: 1000, saved: 1000, complete: true})

	sched := NewScheduler(sw, SchedulerConfig{
		ExpiryInterval:     20 * time.Millisecond,
		CompletionInterval: 10 * time.Millisecond,
		PassTimeout:        5 * time.Second,
	}, slog.New(slog.DiscardHandler))
	sched.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(rec.all()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := status(t, database, expiring.ID).Status; got != model.GoalStatusExpired {
		t.Fatalf("expiring goal = %s", got)
	}
	if got := status(t, database, completing.ID).Status; got != model.GoalStatusAccomplished {
		t.Fatalf("completing goal = %s", got)
	}
	if got := len(rec.all()); got != 2 {
		t.Fatalf("events = %d, want exactly 2", got)
	}
}
