package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLock_SerializesSameKey(t *testing.T) {
	var (
		l       Locks
		wg      sync.WaitGroup
		counter int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("income_tax_guide_2024.pdf")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLock_ReleaseAllowsReacquire(t *testing.T) {
	var l Locks
	unlock := l.Lock("a")
	unlock()
	unlock = l.Lock("a")
	unlock()
}
