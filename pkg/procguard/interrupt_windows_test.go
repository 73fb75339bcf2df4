//go:build windows

package procguard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestCtrlIgnore_NestedAcquireRelease(t *testing.T) {
	var c ctrlIgnore

	releaseA, err := c.acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, c.refs)
	handler := c.handler
	assert.NotZero(t, handler)

	releaseB, err := c.acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, c.refs)
	assert.Equal(t, handler, c.handler, "the callback is created once")

	releaseA()
	assert.Equal(t, 1, c.refs)

	releaseA()
	assert.Equal(t, 1, c.refs, "a second call of the same release is a no-op")

	releaseB()
	assert.Equal(t, 0, c.refs)

	releaseC, err := c.acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, c.refs)
	assert.Equal(t, handler, c.handler, "the callback is reused after the count drops to zero")
	releaseC()
	assert.Equal(t, 0, c.refs)
}

func TestCtrlIgnore_ConcurrentInterruptsBalance(t *testing.T) {
	var c ctrlIgnore

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := c.acquire()
			if !assert.NoError(t, err) {
				return
			}
			release()
			release()
		}()
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 0, c.refs)
}

func TestIgnoreCtrlEvent(t *testing.T) {
	assert.Equal(t, uintptr(1), ignoreCtrlEvent(windows.CTRL_C_EVENT))
	assert.Equal(t, uintptr(1), ignoreCtrlEvent(windows.CTRL_BREAK_EVENT))
	assert.Equal(t, uintptr(0), ignoreCtrlEvent(windows.CTRL_CLOSE_EVENT))
}
