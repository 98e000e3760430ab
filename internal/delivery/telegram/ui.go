package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// buildQuestionKeyboard builds the answer keyboard for a question. Text
// answered types get no keyboard.
func buildQuestionKeyboard(d *answer.Draft) *tgbotapi.InlineKeyboardMarkup {
	q := d.Question()

	var rows [][]tgbotapi.InlineKeyboardButton
	switch q.Type {
	case entities.QuestionMCSingle:
		for _, o := range q.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(o.Text, buildSelectCallback(q.ID, o.ID)),
			))
		}

	case entities.QuestionMCMulti:
		for _, o := range q.Options {
			mark := "☐ "
			if d.Selected(o.ID) {
				mark = "☑️ "
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(mark+o.Text, buildToggleCallback(q.ID, o.ID)),
			))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Submit", buildSubmitCallback(q.ID)),
		))

	case entities.QuestionTrueFalse:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("True", buildTrueFalseCallback(q.ID, true)),
			tgbotapi.NewInlineKeyboardButtonData("False", buildTrueFalseCallback(q.ID, false)),
		))

	default:
		return nil
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// buildFinalizeKeyboard builds keyboard shown once every question is answered.
func buildFinalizeKeyboard(attemptID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏁 Finish attempt", buildFinalizeCallback(attemptID)),
		),
	)
}

// buildResultKeyboard builds keyboard for a finished attempt, with the next
// pathway quiz when there is one.
func buildResultKeyboard(attemptID int64, pathwayID int64, next *entities.PathwayQuiz) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Show answers", buildResultCallback(attemptID)),
		),
	}
	if next != nil {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Next: "+next.Title, buildNextQuizCallback(pathwayID, next.QuizID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildPathwayKeyboard builds keyboard for the pathway overview.
func buildPathwayKeyboard(pathwayID int64, next *entities.PathwayQuiz) *tgbotapi.InlineKeyboardMarkup {
	if next == nil {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Start: "+next.Title, buildNextQuizCallback(pathwayID, next.QuizID)),
		),
	)
	return &kb
}

func emptyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}
