package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(sub *Subscription) []CountEvent {
	var out []CountEvent
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestChannel_DeliversInEmissionOrder(t *testing.T) {
	ch := NewChannel(zaptest.NewLogger(t))
	sub := ch.Subscribe("", 10)
	defer sub.Unsubscribe()

	ch.Publish(CountEvent{ClientID: "c1", Count: 1})
	ch.Publish(CountEvent{ClientID: "c2", Count: 5})
	ch.Publish(CountEvent{ClientID: "c1", Count: 3})

	got := drain(sub)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 5, 3}, []int{got[0].Count, got[1].Count, got[2].Count})
}

func TestChannel_FiltersByClient(t *testing.T) {
	ch := NewChannel(zaptest.NewLogger(t))
	sub := ch.Subscribe("c1", 10)
	defer sub.Unsubscribe()

	ch.Publish(CountEvent{ClientID: "c2", Count: 5})
	ch.Publish(CountEvent{ClientID: "c1", Count: 2})

	assert.Equal(t, []CountEvent{{ClientID: "c1", Count: 2}}, drain(sub))
}

// 受信側が詰まっていても Publish はブロックしない
func TestChannel_DropsWhenBufferFull(t *testing.T) {
	ch := NewChannel(zaptest.NewLogger(t))
	sub := ch.Subscribe("", 1)
	defer sub.Unsubscribe()

	ch.Publish(CountEvent{ClientID: "c1", Count: 1})
	ch.Publish(CountEvent{ClientID: "c1", Count: 2})

	assert.Equal(t, []CountEvent{{ClientID: "c1", Count: 1}}, drain(sub))
}

// 購読前のイベントは届かない（マウント時に自分で件数を読む前提）
func TestChannel_MissedBeforeSubscribe(t *testing.T) {
	ch := NewChannel(nil)
	ch.Publish(CountEvent{ClientID: "c1", Count: 1})

	sub := ch.Subscribe("c1", 4)
	defer sub.Unsubscribe()
	assert.Empty(t, drain(sub))
}

func TestChannel_Unsubscribe(t *testing.T) {
	ch := NewChannel(nil)
	sub := ch.Subscribe("", 4)
	assert.Equal(t, 1, ch.Subscribers())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, ch.Subscribers())

	ch.Publish(CountEvent{ClientID: "c1", Count: 1})
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestChannel_CloseEndsSubscriptions(t *testing.T) {
	ch := NewChannel(nil)
	sub := ch.Subscribe("", 4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range sub.C {
		}
	}()

	ch.Close()
	wg.Wait()

	sub.Unsubscribe()
	late := ch.Subscribe("", 1)
	_, ok := <-late.C
	assert.False(t, ok)
}

func TestChannel_ConcurrentPublish(t *testing.T) {
	ch := NewChannel(nil)
	sub := ch.Subscribe("", 100)
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ch.Publish(CountEvent{ClientID: "c1", Count: n})
		}(i)
	}
	wg.Wait()

	assert.Len(t, drain(sub), 10)
}
