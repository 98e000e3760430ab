package storage

import (
	"sync"
	"time"
)

// QuestionMessage is the chat message that shows the current question.
type QuestionMessage struct {
	MessageID  int
	QuestionID int64
	SentAt     time.Time
}

// QuestionMessageStorage remembers which message carries the question
// keyboard of each chat.
type QuestionMessageStorage struct {
	mu       sync.RWMutex
	messages map[int64]QuestionMessage
}

func NewQuestionMessageStorage() *QuestionMessageStorage {
	return &QuestionMessageStorage{
		messages: make(map[int64]QuestionMessage),
	}
}

func (s *QuestionMessageStorage) Get(chatID int64) (QuestionMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[chatID]
	return msg, ok
}

func (s *QuestionMessageStorage) Delete(chatID int64) (QuestionMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[chatID]
	delete(s.messages, chatID)
	return msg, ok
}

// UpsertAndGetPrev stores the new question message and returns the one it
// replaces.
func (s *QuestionMessageStorage) UpsertAndGetPrev(chatID int64, messageID int, questionID int64) (prev QuestionMessage, hadPrev bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev = s.messages[chatID]

	s.messages[chatID] = QuestionMessage{
		MessageID:  messageID,
		QuestionID: questionID,
		SentAt:     time.Now(),
	}

	return prev, hadPrev
}
