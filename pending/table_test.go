package pending

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// testKey mirrors the (entity ID, sequence ID) shape of protocol keys.
type testKey struct {
	entity uint64
	seq    uint16
}

func (k testKey) Valid() bool {
	return k.seq != 0
}

func (k testKey) String() string {
	return fmt.Sprintf("%#x/%d", k.entity, k.seq)
}

type testResponse struct {
	payload string
}

func newTestTable(opts ...Option) *Table[testKey, *testResponse] {
	return NewTable[testKey, *testResponse]("test", opts...)
}

func TestRegisterThenResolve(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 0x001B92FFFE000001, seq: 7}

	var calls int
	var got *testResponse
	var gotErr error
	require.NoError(t, table.TryRegister(key, func(resp *testResponse, err error) {
		calls++
		got = resp
		gotErr = err
	}))
	assert.True(t, table.Contains(key))

	resp := &testResponse{payload: "ok"}
	assert.True(t, table.Resolve(key, resp, nil))

	assert.Equal(t, 1, calls)
	assert.Same(t, resp, got)
	assert.NoError(t, gotErr)
	assert.False(t, table.Contains(key))
	assert.Equal(t, 0, table.Len())
}

func TestResolveDeliversError(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 1, seq: 1}
	transportErr := fmt.Errorf("link down")

	var gotErr error
	require.NoError(t, table.TryRegister(key, func(_ *testResponse, err error) {
		gotErr = err
	}))

	assert.True(t, table.Resolve(key, nil, transportErr))
	assert.ErrorIs(t, gotErr, transportErr)
}

func TestResolveUnknownKey(t *testing.T) {
	table := newTestTable()
	other := testKey{entity: 1, seq: 2}

	var calls int
	require.NoError(t, table.TryRegister(other, func(*testResponse, error) { calls++ }))

	assert.False(t, table.Resolve(testKey{entity: 1, seq: 3}, &testResponse{}, nil))
	assert.False(t, table.Resolve(testKey{entity: 2, seq: 2}, &testResponse{}, nil))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, table.Len())
}

func TestDuplicateRegistrationKeepsOriginal(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 5, seq: 9}

	var first, second int
	require.NoError(t, table.TryRegister(key, func(*testResponse, error) { first++ }))

	err := table.TryRegister(key, func(*testResponse, error) { second++ })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, table.Len())

	assert.True(t, table.Resolve(key, &testResponse{}, nil))
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
}

func TestSecondResolveIsNoop(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 5, seq: 10}

	var calls int
	require.NoError(t, table.TryRegister(key, func(*testResponse, error) { calls++ }))

	assert.True(t, table.Resolve(key, &testResponse{payload: "first"}, nil))
	assert.False(t, table.Resolve(key, &testResponse{payload: "retransmit"}, nil))
	assert.Equal(t, 1, calls)
}

func TestFilterRejectsWrongResponse(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 5, seq: 11}

	var got []string
	require.NoError(t, table.TryRegisterMatching(key, func(resp *testResponse, _ error) {
		got = append(got, resp.payload)
	}, time.Second, func(resp *testResponse) bool {
		return resp != nil && resp.payload == "rx"
	}))

	assert.False(t, table.Resolve(key, &testResponse{payload: "tx"}, nil))
	assert.False(t, table.Resolve(key, nil, nil))
	assert.True(t, table.Contains(key))
	assert.Empty(t, got)

	assert.True(t, table.Resolve(key, &testResponse{payload: "rx"}, nil))
	assert.Equal(t, []string{"rx"}, got)
	assert.False(t, table.Contains(key))
}

func TestZeroSequenceRejected(t *testing.T) {
	table := newTestTable()

	var calls int
	err := table.TryRegister(testKey{entity: 42, seq: 0}, func(*testResponse, error) { calls++ })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 0, table.Len())

	assert.False(t, table.Resolve(testKey{entity: 42, seq: 0}, &testResponse{}, nil))
	assert.Equal(t, 0, calls)
}

func TestNilCallbackRejected(t *testing.T) {
	table := newTestTable()
	err := table.TryRegister(testKey{entity: 1, seq: 1}, nil)
	assert.ErrorIs(t, err, ErrNilCallback)
	assert.Equal(t, 0, table.Len())
}

func TestCancelSuppressesCallback(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 3, seq: 4}

	var calls int
	require.NoError(t, table.TryRegister(key, func(*testResponse, error) { calls++ }))

	assert.True(t, table.Cancel(key))
	assert.False(t, table.Cancel(key))
	assert.False(t, table.Resolve(key, &testResponse{}, nil))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, table.Len())
}

func TestCloseAbandonsWithoutInvoking(t *testing.T) {
	table := newTestTable()

	var calls atomic.Int32
	for seq := uint16(1); seq <= 5; seq++ {
		require.NoError(t, table.TryRegister(testKey{entity: 7, seq: seq}, func(*testResponse, error) {
			calls.Add(1)
		}))
	}
	require.Equal(t, 5, table.Len())

	assert.Equal(t, 5, table.Close())
	assert.Equal(t, 0, table.Close(), "second close abandons nothing")
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, int32(0), calls.Load())

	// Responses arriving after teardown are dropped silently.
	assert.False(t, table.Resolve(testKey{entity: 7, seq: 1}, &testResponse{}, nil))
	assert.Equal(t, 0, table.Expire(time.Now().Add(time.Hour)))
	assert.Equal(t, int32(0), calls.Load())

	err := table.TryRegister(testKey{entity: 7, seq: 6}, func(*testResponse, error) {})
	assert.ErrorIs(t, err, ErrTableClosed)
}

func TestCallbackMayRegisterFollowUp(t *testing.T) {
	table := newTestTable()
	first := testKey{entity: 9, seq: 1}
	followUp := testKey{entity: 9, seq: 2}

	done := make(chan struct{})
	require.NoError(t, table.TryRegister(first, func(*testResponse, error) {
		// Issuing a new command from a completion handler must not deadlock.
		err := table.TryRegister(followUp, func(*testResponse, error) {
			close(done)
		})
		assert.NoError(t, err)
		assert.False(t, table.Cancel(testKey{entity: 9, seq: 99}))
	}))

	resolved := make(chan bool, 1)
	go func() {
		resolved <- table.Resolve(first, &testResponse{}, nil)
	}()

	select {
	case ok := <-resolved:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve deadlocked when the callback re-entered the table")
	}

	assert.True(t, table.Contains(followUp))
	assert.True(t, table.Resolve(followUp, &testResponse{}, nil))
	<-done
}

func TestPanickingCallbackIsContained(t *testing.T) {
	table := newTestTable()
	bad := testKey{entity: 1, seq: 1}
	good := testKey{entity: 1, seq: 2}

	require.NoError(t, table.TryRegister(bad, func(*testResponse, error) {
		panic("handler bug")
	}))

	var calls int
	require.NoError(t, table.TryRegister(good, func(*testResponse, error) { calls++ }))

	assert.NotPanics(t, func() {
		assert.True(t, table.Resolve(bad, &testResponse{}, nil))
	})
	assert.False(t, table.Contains(bad))

	assert.True(t, table.Resolve(good, &testResponse{}, nil))
	assert.Equal(t, 1, calls)
}

func TestSlowCallbackDoesNotCorruptState(t *testing.T) {
	table := newTestTable()
	slow := testKey{entity: 2, seq: 1}

	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, table.TryRegister(slow, func(*testResponse, error) {
		close(entered)
		<-release
	}))

	go table.Resolve(slow, &testResponse{}, nil)
	<-entered

	// While the slow callback runs, the table keeps serving other keys.
	var calls int
	for seq := uint16(2); seq <= 20; seq++ {
		key := testKey{entity: 2, seq: seq}
		require.NoError(t, table.TryRegister(key, func(*testResponse, error) { calls++ }))
		assert.True(t, table.Resolve(key, &testResponse{}, nil))
	}
	assert.Equal(t, 19, calls)
	assert.False(t, table.Contains(slow))

	close(release)
	assert.Equal(t, 0, table.Len())
}

func TestConcurrentRegisterAndResolve(t *testing.T) {
	const (
		numKeys    = 1000
		numSenders = 8
		numRecv    = 8
	)

	table := newTestTable()

	keys := make([]testKey, numKeys)
	for i := range keys {
		keys[i] = testKey{entity: uint64(i % 17), seq: uint16(i + 1)}
	}

	var invocations [numKeys]atomic.Int32
	order := rand.New(rand.NewSource(1)).Perm(numKeys)

	var g errgroup.Group
	for s := 0; s < numSenders; s++ {
		s := s
		g.Go(func() error {
			for i := s; i < numKeys; i += numSenders {
				i := i
				if err := table.TryRegister(keys[i], func(resp *testResponse, err error) {
					invocations[i].Add(1)
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for r := 0; r < numRecv; r++ {
		r := r
		g.Go(func() error {
			for j := r; j < numKeys; j += numRecv {
				key := keys[order[j]]
				// The sender may not have registered this key yet.
				for !table.Resolve(key, &testResponse{}, nil) {
					runtime.Gosched()
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range invocations {
		assert.Equal(t, int32(1), invocations[i].Load(), "key %v", keys[i])
	}
	assert.Equal(t, 0, table.Len())
}

func TestConcurrentResolveSingleDelivery(t *testing.T) {
	table := newTestTable()
	key := testKey{entity: 11, seq: 11}

	var calls atomic.Int32
	require.NoError(t, table.TryRegister(key, func(*testResponse, error) { calls.Add(1) }))

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if table.Resolve(key, &testResponse{}, nil) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), calls.Load())
}
