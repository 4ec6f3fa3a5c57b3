package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	testLen := 100
	ready := make(chan struct{}, testLen)
	wg := sync.WaitGroup{}
	count := atomic.Uint64{}
	for i := 0; i < testLen; i++ {
		ch := make(chan interface{}, 1)
		bus.Subscribe(BlockImported, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready <- struct{}{}
			<-ch
			count.Add(1)
		}()
	}
	for i := 0; i < testLen; i++ {
		<-ready
	}
	bus.Publish(BlockImported, uint64(1))
	wg.Wait()
	assert.Equal(t, uint64(testLen), count.Load())
	assert.Equal(t, testLen, bus.SubscriberCount(BlockImported))
}

func TestEventBusSkipsBusySubscribers(t *testing.T) {
	bus := NewEventBus()
	busy := make(chan interface{}, 1)
	bus.Subscribe(BlockFinalized, busy)

	bus.Publish(BlockFinalized, uint64(1))
	bus.Publish(BlockFinalized, uint64(2))
	assert.Equal(t, 1, bus.SubscriberCount(BlockFinalized))

	// the second notification was missed, the subscription survives
	assert.Equal(t, uint64(1), <-busy)
	bus.Publish(BlockFinalized, uint64(3))
	assert.Equal(t, uint64(3), <-busy)

	bus.Unsubscribe(BlockFinalized, busy)
	assert.Equal(t, 0, bus.SubscriberCount(BlockFinalized))
	bus.Publish(BlockImported, "nobody listens")
}
