package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fabrics-catalog-service/internal/store"
)

func TestRegistry_RegisterAndRecipients(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())

	added, err := r.Register(ctx, 300)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Register(ctx, 300)
	require.NoError(t, err)
	assert.False(t, added, "duplicate registration")

	require.NoError(t, r.Seed(ctx, []int64{100, 300, 200}))

	ids, err := r.Recipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, ids)
}

func TestRegistry_ConcurrentRegistrationsAreNotLost(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := r.Register(ctx, id)
			assert.NoError(t, err)
		}(int64(i + 1))
	}
	wg.Wait()

	ids, err := r.Recipients(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, n)
}

func TestRegistry_ReplicasSharingAStoreKeepEveryID(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore()
	replicas := []*Registry{NewRegistry(shared), NewRegistry(shared)}

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := replicas[id%2].Register(ctx, id)
			assert.NoError(t, err)
		}(int64(i + 1))
	}
	wg.Wait()

	ids, err := replicas[0].Recipients(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, n)

	added, err := replicas[1].Register(ctx, 1)
	require.NoError(t, err)
	assert.False(t, added)
}

type brokenStore struct{ getErr, putErr error }

func (b brokenStore) Get(context.Context, string) (json.RawMessage, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return json.RawMessage(`[1]`), nil
}

func (b brokenStore) Put(context.Context, string, json.RawMessage) error { return b.putErr }

func TestRegistry_StoreErrors(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("db down")

	_, err := NewRegistry(brokenStore{getErr: dbErr}).Register(ctx, 5)
	assert.ErrorIs(t, err, dbErr)

	_, err = NewRegistry(brokenStore{putErr: dbErr}).Register(ctx, 5)
	assert.ErrorIs(t, err, dbErr)

	_, err = NewRegistry(brokenStore{getErr: dbErr}).Recipients(ctx)
	assert.ErrorIs(t, err, dbErr)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) SendStaff(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

func TestBroadcaster_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())
	require.NoError(t, r.Seed(ctx, []int64{1, 2, 3}))

	sender := new(mockSender)
	sender.On("SendStaff", mock.Anything, int64(1), "new reservation").Return(nil).Once()
	sender.On("SendStaff", mock.Anything, int64(2), "new reservation").Return(errors.New("chat not found")).Once()
	sender.On("SendStaff", mock.Anything, int64(3), "new reservation").Return(nil).Once()

	result, err := NewBroadcaster(r, sender).Broadcast(ctx, "new reservation")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Contains(t, result.Failed, int64(2))
	assert.Equal(t, "sent=2 failed=1", result.String())
	sender.AssertExpectations(t)
}

func TestBroadcaster_NoRecipients(t *testing.T) {
	sender := new(mockSender)

	result, err := NewBroadcaster(NewRegistry(store.NewMemoryStore()), sender).Broadcast(context.Background(), "x")

	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	sender.AssertNotCalled(t, "SendStaff", mock.Anything, mock.Anything, mock.Anything)
}
