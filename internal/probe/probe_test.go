package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	res := Run(5*time.Second, "sh", "-c", "echo out; echo err 1>&2; exit 3")

	assert.Equal(t, Completed, res.State)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.OK())
	assert.Contains(t, string(res.Output), "out")
	assert.Contains(t, string(res.Output), "err")
}

func TestRunSuccess(t *testing.T) {
	res := Run(5*time.Second, "true")

	assert.Equal(t, Completed, res.State)
	assert.Zero(t, res.ExitCode)
	assert.True(t, res.OK())
	assert.NoError(t, res.Err)
}

func TestRunTimeout(t *testing.T) {
	start := time.Now()
	res := Run(100*time.Millisecond, "sleep", "10")

	assert.Equal(t, TimedOut, res.State)
	assert.False(t, res.OK())
	assert.Error(t, res.Err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunLaunchFailure(t *testing.T) {
	res := Run(time.Second, "/no/such/binary")

	assert.Equal(t, LaunchFailed, res.State)
	assert.False(t, res.OK())
	assert.Error(t, res.Err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "timed out", TimedOut.String())
	assert.Equal(t, "launch failed", LaunchFailed.String())
}

func TestMapPreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	outcomes := Map(items, 3, func(item string) Result {
		return Result{Output: []byte(item + "!")}
	})

	require.Len(t, outcomes, len(items))
	for i, item := range items {
		assert.Equal(t, item, outcomes[i].Item)
		assert.Equal(t, item+"!", string(outcomes[i].Result.Output))
	}
}

func TestMapIsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3}

	outcomes := Map(items, 2, func(n int) Result {
		if n == 2 {
			return Result{State: TimedOut}
		}
		return Result{State: Completed}
	})

	assert.Equal(t, Completed, outcomes[0].Result.State)
	assert.Equal(t, TimedOut, outcomes[1].Result.State)
	assert.Equal(t, Completed, outcomes[2].Result.State)
}

func TestMapEmptyAndDefaults(t *testing.T) {
	assert.Empty(t, Map(nil, 0, func(int) Result { return Result{} }))

	// Zero workers falls back to the default pool size.
	outcomes := Map([]int{1}, 0, func(int) Result { return Result{ExitCode: 7} })
	require.Len(t, outcomes, 1)
	assert.Equal(t, 7, outcomes[0].Result.ExitCode)
}
