package actor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallReturnsValueAndError(t *testing.T) {
	m := NewMailbox(4)
	t.Cleanup(m.Close)

	value, err := Call(m, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestCallSerializesConcurrentAccess(t *testing.T) {
	m := NewMailbox(64)
	t.Cleanup(m.Close)

	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Call(m, func() (struct{}, error) {
				counter++
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestCastDoesNotBlockOnCompletion(t *testing.T) {
	m := NewMailbox(4)
	t.Cleanup(m.Close)

	release := make(chan struct{})
	done := make(chan struct{})
	Cast(m, func() { <-release; close(done) })

	// Cast has returned while the command is still waiting on release.
	close(release)
	<-done
}
