package process

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunningProcess(start time.Time) *RunningProcess {
	return newRunningProcess(&os.Process{Pid: 4242}, start, false)
}

func TestCoordinator_TrySetOnce(t *testing.T) {
	c := newCoordinator()
	assert.Equal(t, OutcomePending, c.Outcome())

	res := &Result{ExitCode: 3}
	require.True(t, c.trySet(OutcomeCompleted, res, nil))
	assert.False(t, c.trySet(OutcomeCanceled, nil, ErrCanceled))
	assert.False(t, c.trySet(OutcomeCompleted, &Result{}, nil))

	assert.Equal(t, OutcomeCompleted, c.Outcome())
	assert.Same(t, res, c.result)
	assert.NoError(t, c.err)

	select {
	case <-c.done:
	default:
		t.Fatal("done not closed after trySet")
	}
}

func TestCoordinator_ConcurrentTrySetHasOneWinner(t *testing.T) {
	for iter := 0; iter < 100; iter++ {
		c := newCoordinator()

		var (
			wg    sync.WaitGroup
			wins  atomic.Int32
			start = make(chan struct{})
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				outcome := OutcomeCompleted
				if i%2 == 0 {
					outcome = OutcomeCanceled
				}
				if c.trySet(outcome, nil, nil) {
					wins.Add(1)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.True(t, c.Outcome().IsTerminal())
	}
}

func TestCoordinator_JoinAnyOrder(t *testing.T) {
	start := time.Now()
	exitAt := start.Add(1500 * time.Millisecond)

	orders := [][3]string{
		{"exit", "stdout", "stderr"},
		{"exit", "stderr", "stdout"},
		{"stdout", "exit", "stderr"},
		{"stdout", "stderr", "exit"},
		{"stderr", "exit", "stdout"},
		{"stderr", "stdout", "exit"},
	}

	for _, order := range orders {
		t.Run(order[0]+"_"+order[1]+"_"+order[2], func(t *testing.T) {
			c := newCoordinator()
			rp := fakeRunningProcess(start)

			exited := make(chan exitInfo, 1)
			stdout := make(chan []string, 1)
			stderr := make(chan []string, 1)

			type joined struct {
				res *Result
				ok  bool
			}
			out := make(chan joined, 1)
			go func() {
				res, ok := c.join(rp, "run-1", exited, stdout, stderr)
				out <- joined{res, ok}
			}()

			for _, sig := range order {
				switch sig {
				case "exit":
					exited <- exitInfo{code: 123, at: exitAt}
				case "stdout":
					stdout <- []string{"a", "b"}
				case "stderr":
					stderr <- []string{}
				}
				time.Sleep(5 * time.Millisecond)
				if sig != order[2] {
					assert.Equal(t, OutcomePending, c.Outcome(), "resolved before all signals")
				}
			}

			j := <-out
			require.True(t, j.ok)
			assert.Equal(t, OutcomeCompleted, c.Outcome())
			assert.Equal(t, "run-1", j.res.RunID)
			assert.Equal(t, 123, j.res.ExitCode)
			assert.Equal(t, start, j.res.StartTime)
			assert.Equal(t, 1500*time.Millisecond, j.res.RunTime)
			assert.Equal(t, []string{"a", "b"}, j.res.Stdout)
			assert.Equal(t, []string{}, j.res.Stderr)
			assert.Same(t, rp, j.res.Process)
		})
	}
}

func TestCoordinator_JoinDetachesOnCancel(t *testing.T) {
	c := newCoordinator()
	rp := fakeRunningProcess(time.Now())

	exited := make(chan exitInfo, 1)
	stdout := make(chan []string, 1)
	stderr := make(chan []string, 1)
	stdout <- []string{"partial"}

	done := make(chan bool, 1)
	go func() {
		_, ok := c.join(rp, "run-1", exited, stdout, stderr)
		done <- ok
	}()

	require.True(t, c.trySet(OutcomeCanceled, nil, ErrCanceled))

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("join did not return after cancellation")
	}
	assert.Equal(t, OutcomeCanceled, c.Outcome())
	assert.True(t, errors.Is(c.err, ErrCanceled))
	assert.Nil(t, c.result)
}

func TestCoordinator_CompletionAfterCancelIsDropped(t *testing.T) {
	c := newCoordinator()
	rp := fakeRunningProcess(time.Now())
	require.True(t, c.trySet(OutcomeCanceled, nil, ErrCanceled))

	exited := make(chan exitInfo, 1)
	stdout := make(chan []string, 1)
	stderr := make(chan []string, 1)
	exited <- exitInfo{at: time.Now()}
	stdout <- nil
	stderr <- nil

	res, ok := c.join(rp, "run-1", exited, stdout, stderr)
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Equal(t, OutcomeCanceled, c.Outcome())
}

func TestOutcome_String(t *testing.T) {
	testCases := []struct {
		outcome  Outcome
		want     string
		terminal bool
	}{
		{OutcomePending, "pending", false},
		{OutcomeCompleted, "completed", true},
		{OutcomeCanceled, "canceled", true},
		{OutcomeLaunchFailed, "launch_failed", true},
		{Outcome(99), "unknown", true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, tc.outcome.String())
		assert.Equal(t, tc.terminal, tc.outcome.IsTerminal())
	}
}
