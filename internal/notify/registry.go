// Package notify keeps the list of staff Telegram chats and fans reservation
// notifications out to them.
package notify

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/store"
)

// RecipientsKey is the store key holding the registered chat ids.
const RecipientsKey = "telegram:recipients"

// Registry persists staff chat ids in a KeyValueStore. When the store is a
// store.Updater every registration is one atomic update, so replicas sharing the store
// never lose an id; otherwise registrations are serialized within the process.
type Registry struct {
	mu    sync.Mutex
	store store.KeyValueStore
}

// NewRegistry creates a Registry over kv.
func NewRegistry(kv store.KeyValueStore) *Registry {
	return &Registry{store: kv}
}

// Register adds chatID. It reports false when the chat was already registered.
func (r *Registry) Register(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		added bool
		count int
	)
	add := func(current json.RawMessage) (json.RawMessage, error) {
		ids, err := decodeRecipients(current)
		if err != nil {
			return nil, err
		}
		count = len(ids)
		for _, id := range ids {
			if id == chatID {
				return nil, nil
			}
		}
		added, count = true, count+1
		return encodeRecipients(append(ids, chatID))
	}

	var err error
	if u, ok := r.store.(store.Updater); ok {
		err = errors.Wrap(u.Update(ctx, RecipientsKey, add), "notify: update recipients")
	} else {
		err = r.readModifyWrite(ctx, add)
	}
	if err != nil {
		return false, err
	}
	if added {
		log.WithFields(log.Fields{"chat": chatID, "recipients": count}).Info("notify: recipient registered")
	}
	return added, nil
}

func (r *Registry) readModifyWrite(ctx context.Context, fn store.UpdateFunc) error {
	raw, err := r.store.Get(ctx, RecipientsKey)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return errors.Wrap(err, "notify: load recipients")
	}
	next, err := fn(raw)
	if err != nil || next == nil {
		return err
	}
	return errors.Wrap(r.store.Put(ctx, RecipientsKey, next), "notify: save recipients")
}

// Seed registers every id in chatIDs, skipping the ones already present.
func (r *Registry) Seed(ctx context.Context, chatIDs []int64) error {
	for _, id := range chatIDs {
		if _, err := r.Register(ctx, id); err != nil {
			return errors.Wrapf(err, "notify: seed chat %d", id)
		}
	}
	return nil
}

// Recipients returns a snapshot of the registered ids in ascending order.
func (r *Registry) Recipients(ctx context.Context) ([]int64, error) {
	ids, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Registry) load(ctx context.Context) ([]int64, error) {
	raw, err := r.store.Get(ctx, RecipientsKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return []int64{}, nil
		}
		return nil, errors.Wrap(err, "notify: load recipients")
	}
	return decodeRecipients(raw)
}

func decodeRecipients(raw json.RawMessage) ([]int64, error) {
	ids := []int64{}
	if len(raw) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, errors.Wrap(err, "notify: decode recipients")
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func encodeRecipients(ids []int64) (json.RawMessage, error) {
	raw, err := json.Marshal(ids)
	return raw, errors.Wrap(err, "notify: encode recipients")
}
