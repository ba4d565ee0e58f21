package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N    int
	Name string
}

func TestStateManager_SubscribeSeesCurrentValue(t *testing.T) {
	m := NewStateManager(counter{Name: "a"})

	ch, cancel := m.Subscribe()
	defer cancel()

	assert.Equal(t, counter{Name: "a"}, <-ch)
}

func TestStateManager_LatestValueWins(t *testing.T) {
	m := NewStateManager(counter{})
	ch, cancel := m.Subscribe()
	defer cancel()
	<-ch

	for i := 1; i <= 5; i++ {
		m.Set(counter{N: i})
	}

	assert.Equal(t, counter{N: 5}, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %+v", v)
	default:
	}
}

func TestStateManager_Update(t *testing.T) {
	m := NewStateManager(counter{N: 1})

	got := m.Update(func(c *counter) { c.N++ })

	assert.Equal(t, 2, got.N)
	assert.Equal(t, 2, m.Get().N)
}

func TestStateManager_CancelAndClose(t *testing.T) {
	m := NewStateManager(counter{})
	ch1, cancel1 := m.Subscribe()
	ch2, _ := m.Subscribe()
	<-ch1
	<-ch2

	cancel1()
	_, open := <-ch1
	assert.False(t, open)
	cancel1()

	m.Close()
	_, open = <-ch2
	assert.False(t, open)

	m.Set(counter{N: 9})
	assert.Equal(t, 9, m.Get().N)

	ch3, _ := m.Subscribe()
	_, open = <-ch3
	assert.False(t, open)
}

func TestStateManager_ConcurrentWriters(t *testing.T) {
	m := NewStateManager(counter{})
	ch, cancel := m.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update(func(c *counter) { c.N++ })
		}()
	}
	wg.Wait()

	require.Equal(t, 50, m.Get().N)
	assert.Equal(t, 50, (<-ch).N)
}
