package telegram

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
	"github.com/aliskhannn/pathway-quiz-bot/internal/service"
)

var (
	errStudentsOnly = errors.New("only students take quizzes")
	errNoAttempt    = errors.New("no attempt in this chat")
	errNoQuestion   = errors.New("no question awaiting an answer")
	errUseButtons   = errors.New("question is answered with buttons")
)

type HandlerFunc func(ctx context.Context, chatID int64) error

func (h *Handler) withErrorHandling(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		err := fn(ctx, chatID)
		if err == nil {
			return nil
		}

		text, expected := errorText(err)
		if expected {
			h.logger.Debug("request refused",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		} else {
			h.logger.Error("handle error",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		}

		if errors.Is(err, auth.ErrSessionExpired) {
			h.dropChatState(chatID)
		}

		h.sendError(chatID, text)
		return nil
	}
}

// errorText maps an error to the text shown to the user and reports
// whether the error is an expected outcome rather than a fault.
func errorText(err error) (string, bool) {
	var (
		expired *auth.ExpiredError
		invalid *answer.ValidationError
		apiErr  *gateway.APIError
	)

	switch {
	case errors.As(err, &expired):
		if expired.Family == entities.FamilyStaff {
			return msgStaffExpired, true
		}
		return msgStudentExpired, true
	case errors.Is(err, auth.ErrSessionExpired):
		return msgStudentExpired, true
	case errors.Is(err, auth.ErrNotAuthenticated):
		return msgLoginRequired, true
	case errors.Is(err, auth.ErrFamilyMismatch):
		return msgWrongLoginFamily, true
	case errors.Is(err, errStudentsOnly):
		return msgStudentsOnly, true
	case errors.Is(err, errNoAttempt):
		return msgNoAttempt, true
	case errors.Is(err, errNoQuestion):
		return msgNoQuestion, true
	case errors.Is(err, errUseButtons):
		return msgUseButtons, true
	case errors.As(err, &invalid):
		return msgIncompleteAnswer + ": " + invalid.Reason + ".", true
	case errors.Is(err, service.ErrBusy):
		return msgBusy, true
	case errors.Is(err, service.ErrQuestionMismatch), errors.Is(err, service.ErrSessionClosed),
		errors.Is(err, errBadCallback):
		return msgStaleQuestion, true
	case errors.Is(err, service.ErrInvalidState):
		return msgInvalidState, true
	case errors.As(err, &apiErr) && errors.Is(err, gateway.ErrRejected):
		return apiErr.Message, true
	case gateway.IsRetryable(err):
		return msgServerUnavailable, true
	default:
		return msgInternalError, false
	}
}

// dropChatState forgets the attempt and pathway of a chat whose session
// ended.
func (h *Handler) dropChatState(chatID int64) {
	c, ok := h.chats.Get(chatID)
	if !ok {
		return
	}
	c.reset()
	h.clearQuestionKeyboard(chatID)
}
