package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockTask is a mock implementation of the Task interface.
type MockTask struct {
	mock.Mock
}

func (m *MockTask) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTask) Run(ctx context.Context) {
	m.Called(ctx)
}

func TestScheduler_Register(t *testing.T) {
	sched := NewScheduler(zerolog.Nop())

	task := new(MockTask)
	task.On("Name").Return("test_task")

	sched.Register(task, time.Minute)

	assert.Len(t, sched.tasks, 1)
	assert.Equal(t, task, sched.tasks[0].task)
	assert.True(t, sched.tasks[0].enabled)
	task.AssertExpectations(t)
}

func TestScheduler_Start(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	sched := NewScheduler(zerolog.Nop())

	enabledTask := new(MockTask)
	enabledTask.On("Name").Return("task_enabled")

	var wg sync.WaitGroup
	// 1 immediate run + ticks; wait for the first two to keep the test fast.
	wg.Add(2)
	var mu sync.Mutex
	calls := 0
	enabledTask.On("Run", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		calls++
		if calls <= 2 {
			wg.Done()
		}
		mu.Unlock()
	}).Return()
	sched.Register(enabledTask, 100*time.Millisecond)

	disabledTask := new(MockTask)
	disabledTask.On("Name").Return("task_disabled")
	disabledTask.AssertNotCalled(t, "Run", mock.Anything)
	sched.Register(disabledTask, 0)

	sched.Start(ctx)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("enabled task did not run twice before timeout")
	}

	disabledTask.AssertExpectations(t)
}

func TestScheduler_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := NewScheduler(zerolog.Nop())

	task := new(MockTask)
	task.On("Name").Return("shutdown_task")

	var wg sync.WaitGroup
	wg.Add(1)
	var once sync.Once
	task.On("Run", mock.Anything).Run(func(args mock.Arguments) {
		once.Do(wg.Done)
	}).Return()
	sched.Register(task, 100*time.Millisecond)

	sched.Start(ctx)
	wg.Wait()

	cancel()
	time.Sleep(200 * time.Millisecond)

	task.AssertExpectations(t)
}
