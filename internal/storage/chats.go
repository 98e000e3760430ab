package storage

import "sync"

// ChatStorage keeps one value per chat, created on first use.
type ChatStorage[T any] struct {
	mu    sync.Mutex
	items map[int64]T
}

func NewChatStorage[T any]() *ChatStorage[T] {
	return &ChatStorage[T]{
		items: make(map[int64]T),
	}
}

// GetOrCreate returns the value of chatID, calling create if there is none.
// create runs under the storage lock, so it is called at most once per chat.
func (s *ChatStorage[T]) GetOrCreate(chatID int64, create func() (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.items[chatID]; ok {
		return v, nil
	}

	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	s.items[chatID] = v
	return v, nil
}

func (s *ChatStorage[T]) Get(chatID int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[chatID]
	return v, ok
}

func (s *ChatStorage[T]) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, chatID)
}

func (s *ChatStorage[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}
