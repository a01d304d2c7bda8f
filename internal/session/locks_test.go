package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesAndCleansUp(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	var mu sync.Mutex
	inside, maxInside := 0, 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(testDevice)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 0, k.len())
}

func TestKeyedMutexKeysAreIndependent(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock("dev_a")
	unlockB := k.Lock("dev_b")
	assert.Equal(t, 2, k.len())
	unlockA()
	unlockB()
	assert.Equal(t, 0, k.len())
}
