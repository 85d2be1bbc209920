// Package conversation persists conversations and their append-only message
// logs in BadgerDB. Message keys embed a big-endian sequence number so
// iteration order is insertion order.
package conversation

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/lattica-ai/ragline/internal/domain"
	storebadger "github.com/lattica-ai/ragline/internal/store/badger"
)

const (
	keyPrefix  = "conv:"
	msgNS      = "msg:"
	msgCountNS = "msgn:"
)

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func messagePrefix(conversationID string) []byte {
	return []byte(msgNS + conversationID + ":")
}

func messageKey(conversationID string, seq uint64) []byte {
	prefix := messagePrefix(conversationID)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func messageCountKey(conversationID string) []byte {
	return []byte(msgCountNS + conversationID)
}

// Repo implements conversation storage over BadgerDB.
type Repo struct {
	backend *storebadger.Backend
}

// New creates a conversation repository.
func New(backend *storebadger.Backend) *Repo {
	return &Repo{backend: backend}
}

// Create stores a new conversation record.
func (r *Repo) Create(_ context.Context, conv domain.Conversation) error {
	value, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(recordKey(conv.ID), value)
	})
}

// Get retrieves a conversation by id.
func (r *Repo) Get(_ context.Context, id string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.backend.View(func(tx *badger.Txn) error {
		return readConversation(tx, id, &conv)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

// List returns all conversations, most recently updated first.
func (r *Repo) List(_ context.Context) ([]domain.Conversation, error) {
	conversations := []domain.Conversation{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var conv domain.Conversation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			})
			if err != nil {
				return fmt.Errorf("parse conversation %s: %w", it.Item().Key(), err)
			}
			conversations = append(conversations, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// Update overwrites an existing conversation record.
func (r *Repo) Update(_ context.Context, conv domain.Conversation) error {
	value, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(recordKey(conv.ID)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}
		return tx.Set(recordKey(conv.ID), value)
	})
}

// Delete removes a conversation together with its message log.
func (r *Repo) Delete(_ context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(recordKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = messagePrefix(id)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		var msgKeys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			msgKeys = append(msgKeys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range msgKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Delete(messageCountKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Delete(recordKey(id))
	})
}

// AppendMessage adds a message to the conversation's log.
func (r *Repo) AppendMessage(_ context.Context, msg domain.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(recordKey(msg.ConversationID)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}

		seq, err := nextSeq(tx, msg.ConversationID)
		if err != nil {
			return err
		}
		if err := tx.Set(messageKey(msg.ConversationID, seq), value); err != nil {
			return err
		}

		var count [8]byte
		binary.BigEndian.PutUint64(count[:], seq+1)
		return tx.Set(messageCountKey(msg.ConversationID), count[:])
	})
}

// Messages returns the full message log in insertion order.
func (r *Repo) Messages(_ context.Context, conversationID string) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = messagePrefix(conversationID)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var msg domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return fmt.Errorf("parse message %s: %w", it.Item().Key(), err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// LastMessages returns the trailing n messages in insertion order.
func (r *Repo) LastMessages(ctx context.Context, conversationID string, n int) ([]domain.Message, error) {
	messages, err := r.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	return messages, nil
}

func nextSeq(tx *badger.Txn, conversationID string) (uint64, error) {
	item, err := tx.Get(messageCountKey(conversationID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt message counter for %s", conversationID)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func readConversation(tx *badger.Txn, id string, conv *domain.Conversation) error {
	item, err := tx.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, conv)
	})
}
