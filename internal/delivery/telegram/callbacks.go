package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/service"
)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Remove the user's "clock".
	defer h.request(tgbotapi.NewCallback(cb.ID, ""))

	if cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	data := decodeCallback(cb.Data)

	var fn HandlerFunc
	switch data.Action {
	case actionSelect:
		fn = h.handleSelectCallback(data)
	case actionToggle:
		fn = h.handleToggleCallback(data, messageID)
	case actionSubmit:
		fn = h.handleSubmitCallback(data)
	case actionTF:
		fn = h.handleTrueFalseCallback(data)
	case actionFinalize:
		fn = h.handleFinalizeCallback(data, messageID)
	case actionResult:
		fn = h.handleResultCallback(data)
	case actionNextQuiz:
		fn = h.handleNextQuizCallback(data, messageID)
	default:
		h.logger.Debug("unknown callback", zap.String("data", cb.Data))
		return
	}

	_ = h.withErrorHandling(fn)(ctx, chatID)
}

// questionDraft returns the attempt and draft of the question a button
// belongs to. Buttons of any other question are stale.
func (h *Handler) questionDraft(ctx context.Context, chatID, questionID int64) (*chat, *service.AttemptSession, *answer.Draft, error) {
	c, err := h.chat(ctx, chatID)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := c.currentAttempt()
	if err != nil {
		return nil, nil, nil, err
	}

	d := a.Draft()
	if d == nil || d.Question().ID != questionID {
		return nil, nil, nil, fmt.Errorf("%w: question %d", service.ErrQuestionMismatch, questionID)
	}
	return c, a, d, nil
}

func (h *Handler) handleSelectCallback(data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		questionID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		optionID, err := data.int64Param(1)
		if err != nil {
			return err
		}

		c, a, d, err := h.questionDraft(ctx, chatID, questionID)
		if err != nil {
			return err
		}
		if err := d.Select(optionID); err != nil {
			return err
		}
		return h.submit(ctx, chatID, c, a)
	}
}

func (h *Handler) handleToggleCallback(data callbackData, messageID int) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		questionID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		optionID, err := data.int64Param(1)
		if err != nil {
			return err
		}

		_, _, d, err := h.questionDraft(ctx, chatID, questionID)
		if err != nil {
			return err
		}
		if _, err := d.Toggle(optionID); err != nil {
			return err
		}

		if kb := buildQuestionKeyboard(d); kb != nil {
			h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, *kb))
		}
		return nil
	}
}

func (h *Handler) handleSubmitCallback(data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		questionID, err := data.int64Param(0)
		if err != nil {
			return err
		}

		c, a, _, err := h.questionDraft(ctx, chatID, questionID)
		if err != nil {
			return err
		}
		return h.submit(ctx, chatID, c, a)
	}
}

func (h *Handler) handleTrueFalseCallback(data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		questionID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		if len(data.Params) < 2 {
			return errBadCallback
		}

		c, a, d, err := h.questionDraft(ctx, chatID, questionID)
		if err != nil {
			return err
		}
		if err := d.SetTrueFalse(data.Params[1] == "1"); err != nil {
			return err
		}
		return h.submit(ctx, chatID, c, a)
	}
}

func (h *Handler) handleFinalizeCallback(data callbackData, messageID int) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		attemptID, err := data.int64Param(0)
		if err != nil {
			return err
		}

		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}
		a, err := c.currentAttempt()
		if err != nil {
			return err
		}
		if cur := a.Attempt(); cur == nil || cur.ID != attemptID {
			return fmt.Errorf("%w: attempt %d", service.ErrSessionClosed, attemptID)
		}

		if err := h.finalize(ctx, chatID, c, a); err != nil {
			return err
		}
		h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, emptyKeyboard()))
		return nil
	}
}

func (h *Handler) handleResultCallback(data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		attemptID, err := data.int64Param(0)
		if err != nil {
			return err
		}

		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}
		return h.showResult(ctx, chatID, c, attemptID)
	}
}

func (h *Handler) handleNextQuizCallback(data callbackData, messageID int) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		pathwayID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		quizID, err := data.int64Param(1)
		if err != nil {
			return err
		}

		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}
		if _, err := c.student(); err != nil {
			return err
		}
		if c.pathway == nil || c.pathway.Pathway().ID != pathwayID {
			if _, err := h.loadPathway(ctx, c, pathwayID); err != nil {
				return err
			}
		}

		h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, emptyKeyboard()))
		return h.startQuiz(ctx, chatID, quizID)
	}
}
