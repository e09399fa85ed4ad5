package exchange_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
)

// memStore is an in-memory Store with the same guard semantics the
// MySQL implementation enforces: a unique (task, user) completion
// key, a conditional capacity decrement and a balance that refuses
// to go negative. A single mutex stands in for the row locks, which
// makes it safe to hammer from concurrent goroutines in tests.
type memStore struct {
	mu          sync.Mutex
	users       map[uint64]*model.User
	tasks       map[uint64]*model.Task
	completions map[[2]uint64]model.Completion
	nextTaskID  uint64
	nextCompID  uint64
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uint64]*model.User),
		tasks:       make(map[uint64]*model.Task),
		completions: make(map[[2]uint64]model.Completion),
	}
}

func (s *memStore) addUser(id uint64, credits int64) {
	s.users[id] = &model.User{ID: id, Role: "USER", Credits: credits, TrialStartedAt: time.Now().UTC()}
}

func (s *memStore) User(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, exchange.ErrUnknownUser
	}
	return *u, nil
}

func (s *memStore) Balance(_ context.Context, id uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, exchange.ErrUnknownUser
	}
	return u.Credits, nil
}

func (s *memStore) Task(_ context.Context, id uint64) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, exchange.ErrUnknownTask
	}
	return *t, nil
}

func (s *memStore) OpenTasks(_ context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if t.Status == model.TaskOpen && t.RemainingActions > 0 {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) TaskCompletions(_ context.Context, taskID uint64) ([]model.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Completion, 0)
	for _, c := range s.completions {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) HasCompletion(_ context.Context, taskID, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completions[[2]uint64{taskID, userID}]
	return ok, nil
}

func (s *memStore) CreateTask(_ context.Context, creatorID uint64, taskType model.TaskType, targetURL string, actions, cost int64) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[creatorID]
	if !ok {
		return model.Task{}, exchange.ErrUnknownUser
	}
	if u.Credits < cost {
		return model.Task{}, exchange.ErrInsufficientCredits
	}
	u.Credits -= cost
	s.nextTaskID++
	t := &model.Task{
		ID:               s.nextTaskID,
		Type:             taskType,
		TargetURL:        targetURL,
		CreatorID:        creatorID,
		RemainingActions: actions,
		Status:           model.TaskOpen,
		CreatedAt:        time.Now().UTC(),
	}
	s.tasks[t.ID] = t
	return *t, nil
}

func (s *memStore) CommitCompletion(_ context.Context, taskID, userID uint64, reward int64) (exchange.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uint64{taskID, userID}
	if _, dup := s.completions[key]; dup {
		return exchange.CommitResult{}, exchange.ErrAlreadyCompleted
	}
	t, ok := s.tasks[taskID]
	if !ok || t.Status != model.TaskOpen || t.RemainingActions <= 0 {
		return exchange.CommitResult{}, exchange.ErrTaskExhausted
	}
	u, ok := s.users[userID]
	if !ok {
		return exchange.CommitResult{}, exchange.ErrUnknownUser
	}
	s.nextCompID++
	s.completions[key] = model.Completion{
		ID: s.nextCompID, TaskID: taskID, UserID: userID,
		CreditsAwarded: reward, VerifiedAt: time.Now().UTC(),
	}
	t.RemainingActions--
	u.Credits += reward
	if t.RemainingActions == 0 {
		t.Status = model.TaskExhausted
	}
	return exchange.CommitResult{Remaining: t.RemainingActions, NewBalance: u.Credits}, nil
}

func (s *memStore) DeleteTask(_ context.Context, taskID, requesterID uint64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.Status == model.TaskDeleted {
		return exchange.ErrUnknownTask
	}
	if !force && t.CreatorID != requesterID {
		return exchange.ErrForbidden
	}
	t.Status = model.TaskDeleted
	return nil
}

func alwaysVerified() exchange.ActionVerifier {
	return exchange.VerifierFunc(func(context.Context, model.TaskType, string, uint64) (exchange.VerifyResult, error) {
		return exchange.Verified, nil
	})
}

func newEngine(t *testing.T, store *memStore, v exchange.ActionVerifier) *exchange.Engine {
	t.Helper()
	if v == nil {
		v = alwaysVerified()
	}
	return exchange.New(store, v, nil, exchange.Config{})
}

func TestCreateTaskValidation(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 10)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	cases := []struct {
		name      string
		taskType  string
		targetURL string
		actions   int64
	}{
		{"unknown type", "UPVOTE", "https://tiktok.com/@a/video/1", 3},
		{"missing platform marker", "LIKE", "https://example.com/x", 3},
		{"zero actions", "LIKE", "https://tiktok.com/@a/video/1", 0},
		{"negative actions", "LIKE", "https://tiktok.com/@a/video/1", -4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.CreateTask(ctx, 1, tc.taskType, tc.targetURL, tc.actions)
			assert.ErrorIs(t, err, exchange.ErrInvalidTask)
		})
	}

	// no validation failure may cost credits
	bal, err := eng.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)
}

func TestCreateTaskDebitsCost(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 150)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://www.TikTok.com/@a/video/1", 10)
	require.NoError(t, err)
	assert.Equal(t, model.TaskLike, task.Type)
	assert.Equal(t, int64(10), task.RemainingActions)
	assert.Equal(t, model.TaskOpen, task.Status)

	bal, err := eng.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(149), bal)
}

func TestCreateTaskInsufficientCredits(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 0)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	_, err := eng.CreateTask(ctx, 1, "FOLLOW", "https://tiktok.com/@a", 5)
	assert.ErrorIs(t, err, exchange.ErrInsufficientCredits)

	tasks, err := eng.OpenTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks, "failed debit must not leave a task behind")
}

func TestCompleteCreditsReward(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 3)
	require.NoError(t, err)

	res, err := eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Remaining)
	assert.Equal(t, exchange.RewardPerCompletion, res.NewBalance)

	bal, err := eng.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.RewardPerCompletion, bal)
}

func TestCompleteNotifies(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)

	var mu sync.Mutex
	var notified []uint64
	notifier := exchange.NotifierFunc(func(_ context.Context, userID uint64, msg string) error {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, userID)
		assert.NotEmpty(t, msg)
		return nil
	})
	eng := exchange.New(store, alwaysVerified(), notifier, exchange.Config{})
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "SHARE", "https://tiktok.com/@a/video/1", 1)
	require.NoError(t, err)
	_, err = eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, notified)
}

func TestCompleteNotifierFailureIsIgnored(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	notifier := exchange.NotifierFunc(func(context.Context, uint64, string) error {
		return errors.New("broker down")
	})
	eng := exchange.New(store, alwaysVerified(), notifier, exchange.Config{})
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 1)
	require.NoError(t, err)
	res, err := eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.RewardPerCompletion, res.NewBalance)
}

func TestCompleteSelfRejected(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 2)
	require.NoError(t, err)

	_, err = eng.Complete(ctx, task.ID, 1)
	assert.ErrorIs(t, err, exchange.ErrSelfCompletion)
}

func TestCompleteDuplicateRejected(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "COMMENT", "https://tiktok.com/@a/video/1", 5)
	require.NoError(t, err)

	_, err = eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)
	_, err = eng.Complete(ctx, task.ID, 2)
	assert.ErrorIs(t, err, exchange.ErrAlreadyCompleted)

	bal, err := eng.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.RewardPerCompletion, bal, "retry must not pay twice")
}

func TestCompleteUnknownAndDeletedTask(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	_, err := eng.Complete(ctx, 99, 2)
	assert.ErrorIs(t, err, exchange.ErrUnknownTask)

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 2)
	require.NoError(t, err)
	require.NoError(t, eng.DeleteTask(ctx, task.ID, 1))

	_, err = eng.Complete(ctx, task.ID, 2)
	assert.ErrorIs(t, err, exchange.ErrUnknownTask)
}

func TestCompleteVerificationOutcomes(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	ctx := context.Background()

	failing := exchange.VerifierFunc(func(context.Context, model.TaskType, string, uint64) (exchange.VerifyResult, error) {
		return exchange.Unverified, nil
	})
	eng := exchange.New(store, failing, nil, exchange.Config{})
	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 2)
	require.NoError(t, err)

	_, err = eng.Complete(ctx, task.ID, 2)
	assert.ErrorIs(t, err, exchange.ErrVerificationFailed)

	down := exchange.VerifierFunc(func(context.Context, model.TaskType, string, uint64) (exchange.VerifyResult, error) {
		return exchange.Unverified, errors.New("connection refused")
	})
	eng = exchange.New(store, down, nil, exchange.Config{})
	_, err = eng.Complete(ctx, task.ID, 2)
	assert.ErrorIs(t, err, exchange.ErrVerifierUnavailable)

	// neither outcome may touch state
	got, err := eng.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.RemainingActions)
	bal, err := eng.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestCompleteRetryAfterFailedVerification(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	ctx := context.Background()

	verified := false
	flaky := exchange.VerifierFunc(func(context.Context, model.TaskType, string, uint64) (exchange.VerifyResult, error) {
		if !verified {
			return exchange.Unverified, nil
		}
		return exchange.Verified, nil
	})
	eng := exchange.New(store, flaky, nil, exchange.Config{})

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 3)
	require.NoError(t, err)

	_, err = eng.Complete(ctx, task.ID, 2)
	require.ErrorIs(t, err, exchange.ErrVerificationFailed)

	// the user performs the action, then retries
	verified = true
	res, err := eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.RewardPerCompletion, res.NewBalance)

	// a further retry must not pay again
	_, err = eng.Complete(ctx, task.ID, 2)
	assert.ErrorIs(t, err, exchange.ErrAlreadyCompleted)

	bal, err := eng.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.RewardPerCompletion, bal)
}

// Walks a fresh account through the whole economy: register with the
// signup bonus, spend one credit publishing a task, earn rewards by
// completing someone else's.
func TestCreditLifecycleScenario(t *testing.T) {
	store := newMemStore()
	store.addUser(1, exchange.DefaultSignupBonus) // publisher
	store.addUser(2, exchange.DefaultSignupBonus) // worker
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 2)
	require.NoError(t, err)

	bal, err := eng.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, exchange.DefaultSignupBonus-exchange.CreationCost, bal)

	_, err = eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)

	bal, err = eng.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.DefaultSignupBonus+exchange.RewardPerCompletion, bal)

	// the publisher's balance is untouched by completions
	bal, err = eng.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, exchange.DefaultSignupBonus-exchange.CreationCost, bal)
}

func TestCompleteExhaustsTask(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	store.addUser(3, 0)
	store.addUser(4, 0)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "FOLLOW", "https://tiktok.com/@a", 2)
	require.NoError(t, err)

	res, err := eng.Complete(ctx, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Remaining)

	res, err = eng.Complete(ctx, task.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, res.Remaining)

	got, err := eng.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskExhausted, got.Status)

	_, err = eng.Complete(ctx, task.ID, 4)
	assert.ErrorIs(t, err, exchange.ErrTaskExhausted)
}

func TestConcurrentCompletionsRespectCapacity(t *testing.T) {
	const capacity = 5
	const workers = 40

	store := newMemStore()
	store.addUser(1, 100)
	for id := uint64(2); id < 2+workers; id++ {
		store.addUser(id, 0)
	}
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", capacity)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Complete(ctx, task.ID, uint64(2+i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, exchange.ErrTaskExhausted)
	}
	assert.Equal(t, capacity, succeeded)

	got, err := eng.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RemainingActions)
	assert.Equal(t, model.TaskExhausted, got.Status)

	// total credits paid out must equal capacity * reward
	var total int64
	for id := uint64(2); id < 2+workers; id++ {
		bal, err := eng.Balance(ctx, id)
		require.NoError(t, err)
		total += bal
	}
	assert.Equal(t, int64(capacity)*exchange.RewardPerCompletion, total)
}

func TestConcurrentDuplicateAttemptsPayOnce(t *testing.T) {
	const attempts = 20

	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 0)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Complete(ctx, task.ID, 2)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, exchange.ErrAlreadyCompleted)
	}
	assert.Equal(t, 1, succeeded)

	bal, err := eng.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, exchange.RewardPerCompletion, bal)
}

func TestDeleteTask(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addUser(2, 100)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 2)
	require.NoError(t, err)

	assert.ErrorIs(t, eng.DeleteTask(ctx, task.ID, 2), exchange.ErrForbidden)
	require.NoError(t, eng.DeleteTask(ctx, task.ID, 1))

	// no refund on delete
	bal, err := eng.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(99), bal)

	assert.ErrorIs(t, eng.DeleteTask(ctx, task.ID, 1), exchange.ErrUnknownTask)
}

func TestAdminDeleteBypassesOwnership(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	eng := newEngine(t, store, nil)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, 1, "LIKE", "https://tiktok.com/@a/video/1", 2)
	require.NoError(t, err)
	require.NoError(t, eng.AdminDeleteTask(ctx, task.ID))

	got, err := eng.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskDeleted, got.Status)
}
