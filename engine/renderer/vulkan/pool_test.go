package vulkan

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeCallSerializesGroup(t *testing.T) {
	pool := NewVulkanLockPool()

	var wg sync.WaitGroup
	inside, maxInside, total := 0, 0, 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(BufferManagement, func() error {
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				total++
				inside--
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 32, total)
}

func TestSafeCallReturnsError(t *testing.T) {
	pool := NewVulkanLockPool()
	boom := errors.New("boom")
	assert.ErrorIs(t, pool.SafeCall(ImageManagement, func() error { return boom }), boom)
}

func TestSafeQueueCallUnknownFamily(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	calls := 0
	assert.NoError(t, pool.SafeQueueCall(0, func() error { calls++; return nil }))
	// families that were never registered get a mutex on first use
	assert.NoError(t, pool.SafeQueueCall(3, func() error {
		return pool.SafeQueueCall(0, func() error { calls++; return nil })
	}))
	assert.Equal(t, 2, calls)
}
