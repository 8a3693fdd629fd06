package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vent/engine/core"
)

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobsCompleteOrFail(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	var wg sync.WaitGroup
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, js.Submit(JobTask{
			Name: "counter",
			Run: func() (interface{}, error) {
				if i%5 == 0 {
					return nil, boom
				}
				return i * 2, nil
			},
			OnComplete: func(result interface{}) {
				assert.Equal(t, i*2, result)
				completed.Add(1)
				wg.Done()
			},
			OnFailure: func(err error) {
				assert.ErrorIs(t, err, boom)
				failed.Add(1)
				wg.Done()
			},
		}))
	}
	wg.Wait()
	require.NoError(t, js.Shutdown())

	assert.Equal(t, int32(16), completed.Load())
	assert.Equal(t, int32(4), failed.Load())
}

func TestPanickingJobReportsFailure(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	require.NoError(t, js.Submit(JobTask{
		Name:      "panic",
		Run:       func() (interface{}, error) { panic("bad job") },
		OnFailure: func(err error) { done <- err },
	}))
	assert.ErrorIs(t, <-done, core.ErrUnknown)

	// the worker survived
	ran := make(chan struct{})
	require.NoError(t, js.Submit(JobTask{
		Name:       "after",
		Run:        func() (interface{}, error) { return nil, nil },
		OnComplete: func(interface{}) { close(ran) },
	}))
	<-ran
	require.NoError(t, js.Shutdown())
}

func TestShutdownDrainsQueueAndRejectsNewWork(t *testing.T) {
	js, err := NewJobSystem(1, 10)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, js.Submit(JobTask{
			Run: func() (interface{}, error) {
				ran.Add(1)
				return nil, nil
			},
		}))
	}
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	assert.Equal(t, int32(5), ran.Load())
	assert.ErrorIs(t, js.Submit(JobTask{}), ErrJobSystemClosed)
}
