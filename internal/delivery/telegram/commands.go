package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/service"
)

func (h *Handler) handleStart() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}

		s, err := c.session()
		if err != nil && !errors.Is(err, auth.ErrNotAuthenticated) && !errors.Is(err, auth.ErrSessionExpired) {
			return err
		}

		h.send(newMessage(chatID, buildWelcomeMessage(s)))
		return nil
	}
}

func (h *Handler) handleLogin(family entities.Family, args string, messageID int) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		// The message carries a password.
		h.request(tgbotapi.NewDeleteMessage(chatID, messageID))

		username, password, ok := parseCredentials(args)
		if !ok {
			if family == entities.FamilyStaff {
				h.send(newPlainMessage(chatID, msgUseStaffLogin))
			} else {
				h.send(newPlainMessage(chatID, msgUseLogin))
			}
			return nil
		}

		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}

		s, err := h.backend.Login(ctx, family, username, password)
		if err != nil {
			return err
		}
		if err := c.auth.Authenticate(ctx, *s); err != nil {
			return err
		}

		c.reset()
		h.clearQuestionKeyboard(chatID)

		current, err := c.session()
		if err != nil {
			return err
		}
		h.send(newMessage(chatID, buildLoggedInMessage(current)))
		return nil
	}
}

func (h *Handler) handleLogout() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}

		if _, ok := c.auth.Session(); !ok {
			h.send(newPlainMessage(chatID, msgNotLoggedIn))
			return nil
		}

		c.reset()
		h.clearQuestionKeyboard(chatID)

		if err := c.auth.Logout(ctx); err != nil {
			return err
		}

		h.send(newPlainMessage(chatID, msgLoggedOut))
		return nil
	}
}

func (h *Handler) handleWhoAmI() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}

		s, err := c.session()
		if err != nil {
			return err
		}

		h.send(newMessage(chatID, buildWhoAmIMessage(s)))
		return nil
	}
}

func (h *Handler) handleQuiz(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		quizID, ok := parseID(args)
		if !ok {
			h.send(newPlainMessage(chatID, msgUseQuiz))
			return nil
		}
		return h.startQuiz(ctx, chatID, quizID)
	}
}

func (h *Handler) startQuiz(ctx context.Context, chatID, quizID int64) error {
	c, err := h.chat(ctx, chatID)
	if err != nil {
		return err
	}
	if _, err := c.student(); err != nil {
		return err
	}

	a := c.attemptFor(quizID)
	if _, err := a.StartOrResume(ctx); err != nil {
		return err
	}

	return h.showAttempt(ctx, chatID, c, a)
}

// handleQuestion shows the current question again, fetching it when the
// previous fetch failed.
func (h *Handler) handleQuestion() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}
		a, err := c.currentAttempt()
		if err != nil {
			return err
		}

		switch a.State() {
		case service.AttemptAwaitingNext:
			if _, err := a.FetchCurrentQuestion(ctx); err != nil {
				return err
			}
		case service.AttemptUnstarted:
			if _, err := a.StartOrResume(ctx); err != nil {
				return err
			}
		}

		return h.showAttempt(ctx, chatID, c, a)
	}
}

func (h *Handler) handlePathway(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		pathwayID, ok := parseID(args)
		if !ok {
			h.send(newPlainMessage(chatID, msgUsePathway))
			return nil
		}

		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}
		if _, err := c.student(); err != nil {
			return err
		}

		t, err := h.loadPathway(ctx, c, pathwayID)
		if err != nil {
			return err
		}

		msg := newMessage(chatID, formatPathway(t))
		if kb := buildPathwayKeyboard(pathwayID, t.NextQuiz()); kb != nil {
			msg.ReplyMarkup = kb
		}
		h.send(msg)
		return nil
	}
}

// loadPathway returns the tracker of pathwayID, merging fresh server
// progress into the one already held by the chat.
func (h *Handler) loadPathway(ctx context.Context, c *chat, pathwayID int64) (*entities.PathwayTracker, error) {
	if c.pathway != nil && c.pathway.Pathway().ID == pathwayID {
		if err := c.pathways.Refresh(ctx, c.pathway); err != nil {
			return nil, err
		}
		return c.pathway, nil
	}

	t, err := c.pathways.Start(ctx, pathwayID)
	if err != nil {
		return nil, err
	}
	c.pathway = t
	return t, nil
}

func (h *Handler) handleResult(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}

		if strings.TrimSpace(args) == "" {
			a, err := c.currentAttempt()
			if err != nil {
				h.send(newPlainMessage(chatID, msgUseResult))
				return nil
			}
			details, err := a.Result(ctx)
			if err != nil {
				return err
			}
			h.send(newMessage(chatID, formatAttemptDetails(details)))
			return nil
		}

		attemptID, ok := parseID(args)
		if !ok {
			h.send(newPlainMessage(chatID, msgUseResult))
			return nil
		}
		return h.showResult(ctx, chatID, c, attemptID)
	}
}

func (h *Handler) showResult(ctx context.Context, chatID int64, c *chat, attemptID int64) error {
	if _, err := c.session(); err != nil {
		return err
	}

	if a := c.attempt; a != nil {
		if cur := a.Attempt(); cur != nil && cur.ID == attemptID {
			details, err := a.Result(ctx)
			if err != nil {
				return err
			}
			h.send(newMessage(chatID, formatAttemptDetails(details)))
			return nil
		}
	}

	details, err := c.api.AttemptDetails(ctx, attemptID)
	if err != nil {
		return err
	}
	h.send(newMessage(chatID, formatAttemptDetails(details)))
	return nil
}

// handleTextAnswer answers the current FILL_BLANK or OPEN_MANUAL question.
func (h *Handler) handleTextAnswer(text string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		c, err := h.chat(ctx, chatID)
		if err != nil {
			return err
		}
		a, err := c.currentAttempt()
		if err != nil {
			return err
		}

		d := a.Draft()
		if d == nil {
			return errNoQuestion
		}

		switch d.Question().Type {
		case entities.QuestionFillBlank:
			err = d.SetBlanks(splitLines(text))
		case entities.QuestionOpenManual:
			err = d.SetText(text)
		default:
			return errUseButtons
		}
		if err != nil {
			return err
		}

		return h.submit(ctx, chatID, c, a)
	}
}

// submit sends the draft of the current question and moves the chat on.
func (h *Handler) submit(ctx context.Context, chatID int64, c *chat, a *service.AttemptSession) error {
	res, err := a.SubmitDraft(ctx)
	if res == nil {
		return err
	}

	h.clearQuestionKeyboard(chatID)
	h.send(newMessage(chatID, formatSubmitFeedback(res)))

	if err != nil {
		h.logger.Warn("next question not loaded",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		if errors.Is(err, auth.ErrSessionExpired) {
			return err
		}
		h.send(newPlainMessage(chatID, msgNextQuestionFailed))
		return nil
	}

	return h.showAttempt(ctx, chatID, c, a)
}

func (h *Handler) finalize(ctx context.Context, chatID int64, c *chat, a *service.AttemptSession) error {
	details, err := a.Finalize(ctx)
	if err != nil {
		return err
	}
	h.clearQuestionKeyboard(chatID)
	return h.showCompletion(ctx, chatID, c, a, details)
}

// showAttempt renders whatever the attempt is waiting for.
func (h *Handler) showAttempt(ctx context.Context, chatID int64, c *chat, a *service.AttemptSession) error {
	switch a.State() {
	case service.AttemptActive:
		h.showQuestion(chatID, a)
		return nil

	case service.AttemptExhausted:
		h.clearQuestionKeyboard(chatID)
		msg := newPlainMessage(chatID, msgAllAnswered)
		msg.ReplyMarkup = buildFinalizeKeyboard(a.Attempt().ID)
		h.send(msg)
		return nil

	case service.AttemptCompleted, service.AttemptPendingGrading, service.AttemptFailed:
		h.clearQuestionKeyboard(chatID)
		details, err := a.Result(ctx)
		if err != nil {
			return err
		}
		return h.showCompletion(ctx, chatID, c, a, details)

	default:
		return service.ErrInvalidState
	}
}

// showQuestion sends the current question and strips the keyboard from the
// previous one so stale buttons cannot be pressed.
func (h *Handler) showQuestion(chatID int64, a *service.AttemptSession) {
	q, d := a.Question(), a.Draft()
	if q == nil || d == nil {
		return
	}

	msg := newMessage(chatID, formatQuestion(a.Attempt(), q))
	if kb := buildQuestionKeyboard(d); kb != nil {
		msg.ReplyMarkup = kb
	}

	sent := h.send(msg)
	if sent.MessageID == 0 {
		return
	}

	prev, hadPrev := h.questionMessages.UpsertAndGetPrev(chatID, sent.MessageID, q.ID)
	if hadPrev && prev.MessageID != sent.MessageID {
		h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, prev.MessageID, emptyKeyboard()))
	}
}

// showCompletion shows a finished attempt and advances its pathway.
func (h *Handler) showCompletion(_ context.Context, chatID int64, c *chat, a *service.AttemptSession, details *entities.AttemptDetails) error {
	text := formatAttemptSummary(details)

	var (
		pathwayID int64
		next      *entities.PathwayQuiz
	)

	if completion, ok := a.Completion(); ok && c.pathway != nil {
		if _, inPathway := c.pathway.QuizByID(completion.QuizID); inPathway {
			next = c.pathways.Complete(c.pathway, completion)
			pathwayID = c.pathway.Pathway().ID
			text += "\n\n" + formatPathway(c.pathway)
		}
	}

	msg := newMessage(chatID, text)
	msg.ReplyMarkup = buildResultKeyboard(details.ID, pathwayID, next)
	h.send(msg)
	return nil
}

func (h *Handler) clearQuestionKeyboard(chatID int64) {
	if prev, ok := h.questionMessages.Delete(chatID); ok {
		h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, prev.MessageID, emptyKeyboard()))
	}
}

func parseCredentials(args string) (username, password string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func parseID(args string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// splitLines splits a multi-line reply into one value per line.
func splitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}
