package analyzer

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var counter int64
	for i := 0; i < 50; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
		})
	}
	pool.Wait()

	assert.Equal(t, int64(50), atomic.LoadInt64(&counter))
}

func TestWorkerPool_ReusableAfterWait(t *testing.T) {
	pool := NewWorkerPool(0)
	pool.Start()
	pool.Start()
	defer pool.Close()

	var mu sync.Mutex
	var seen []int
	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			v := round*4 + i
			pool.Submit(func() {
				mu.Lock()
				seen = append(seen, v)
				mu.Unlock()
			})
		}
		pool.Wait()
		assert.Len(t, seen, (round+1)*4)
	}
}
