// messages.go contains message templates and formatting functions for Telegram.

package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// Error messages.
const (
	msgInternalError      = "Что‑то пошло не так. Попробуйте позже."
	msgServerUnavailable  = "Сервер недоступен. Попробуйте ещё раз через минуту."
	msgLoginRequired      = "Сначала войдите: /login логин пароль"
	msgStudentExpired     = "Сессия истекла. Войдите снова: /login логин пароль"
	msgStaffExpired       = "Сессия истекла. Войдите снова: /stafflogin логин пароль"
	msgStudentsOnly       = "Прохождение квизов доступно только студентам."
	msgBusy               = "Подождите, предыдущий ответ ещё обрабатывается."
	msgStaleQuestion      = "Этот вопрос уже неактуален."
	msgInvalidState       = "Сейчас это действие недоступно. Текущий вопрос: /question"
	msgNoAttempt          = "Нет активного квиза. Начните его командой /quiz N"
	msgNoQuestion         = "Сейчас нет вопроса, ожидающего ответа."
	msgUseButtons         = "Ответьте с помощью кнопок под вопросом."
	msgIncompleteAnswer   = "Ответ не заполнен"
	msgUseLogin           = "Используйте: /login логин пароль"
	msgUseStaffLogin      = "Используйте: /stafflogin логин пароль"
	msgUseQuiz            = "Используйте: /quiz N, где N — номер квиза."
	msgUsePathway         = "Используйте: /pathway N, где N — номер траектории."
	msgUseResult          = "Используйте: /result N, где N — номер попытки."
	msgWrongLoginFamily   = "Этот аккаунт не подходит для выбранного входа. Студентам — /login, преподавателям — /stafflogin."
	msgUnknownCommand     = "Неизвестная команда. Список команд: /help"
	msgLoggedOut          = "Вы вышли из аккаунта."
	msgNotLoggedIn        = "Вы не вошли в аккаунт."
	msgAllAnswered        = "Все вопросы отвечены. Завершите попытку, чтобы получить результат."
	msgNextQuestionFailed = "Ответ принят, но следующий вопрос не загрузился. Повторите: /question"
	msgPathwayFinished    = "🎉 Траектория пройдена!"
)

const msgHelp = `Команды:

/login логин пароль — вход для студентов
/stafflogin логин пароль — вход для преподавателей
/logout — выход
/whoami — текущий пользователь
/quiz N — начать или продолжить квиз N
/question — показать текущий вопрос
/pathway N — начать или продолжить траекторию N
/result N — результат попытки N

Вопросы с пропусками: отправьте ответы сообщением, по одному на строке.
Открытые вопросы: отправьте ответ сообщением.`

// md escapes plain text for MarkdownV2.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func bold(s string) string {
	return "*" + md(s) + "*"
}

func italic(s string) string {
	return "_" + md(s) + "_"
}

// newMessage creates a message with MarkdownV2 parse mode.
func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}

// newPlainMessage creates a plain message without MarkdownV2 parse mode.
func newPlainMessage(chatID int64, text string) tgbotapi.MessageConfig {
	return tgbotapi.NewMessage(chatID, text)
}

func buildWelcomeMessage(s *entities.AuthSession) string {
	if s == nil {
		return md("👋 Добро пожаловать! Здесь можно проходить квизы и учебные траектории.\n\n" + msgLoginRequired + "\nВсе команды: /help")
	}
	return fmt.Sprintf("%s %s\n\n%s",
		md("👋 С возвращением,"),
		bold(displayName(s)),
		md("Все команды: /help"),
	)
}

func buildWhoAmIMessage(s *entities.AuthSession) string {
	return fmt.Sprintf("%s %s\n%s %s",
		md("Пользователь:"), bold(displayName(s)),
		md("Роль:"), md(formatRole(s.Role)),
	)
}

func buildLoggedInMessage(s *entities.AuthSession) string {
	return fmt.Sprintf("%s %s %s", md("✅ Вы вошли как"), bold(displayName(s)), md("("+formatRole(s.Role)+")."))
}

func displayName(s *entities.AuthSession) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return fmt.Sprintf("#%d", s.UserID)
}

func formatRole(r entities.Role) string {
	switch r {
	case entities.RoleStudent:
		return "студент"
	case entities.RoleTeacher:
		return "преподаватель"
	case entities.RoleAdmin:
		return "администратор"
	default:
		return string(r)
	}
}

// questionHint tells the student how to answer a question of type t.
func questionHint(q *entities.Question) string {
	switch q.Type {
	case entities.QuestionMCSingle:
		return "Выберите один вариант."
	case entities.QuestionMCMulti:
		return "Отметьте все верные варианты и нажмите «Отправить»."
	case entities.QuestionTrueFalse:
		return "Верно или неверно?"
	case entities.QuestionFillBlank:
		if len(q.Blanks) == 1 {
			return "Отправьте ответ на пропуск сообщением."
		}
		return fmt.Sprintf("Пропусков: %d. Отправьте ответы одним сообщением, по одному на строке, в порядке пропусков.", len(q.Blanks))
	case entities.QuestionOpenManual:
		return "Отправьте развёрнутый ответ сообщением. Его проверит преподаватель."
	default:
		return ""
	}
}

// formatQuestion formats the current question of an attempt.
func formatQuestion(attempt *entities.QuizAttempt, q *entities.Question) string {
	var b strings.Builder

	if attempt != nil && attempt.Quiz.Title != "" {
		b.WriteString(italic(attempt.Quiz.Title))
		b.WriteString("\n\n")
	}

	header := "Вопрос"
	if q.Order > 0 {
		header = fmt.Sprintf("Вопрос %d", q.Order)
	}
	b.WriteString(md(header))
	b.WriteString("\n\n")
	b.WriteString(bold(q.Text))
	b.WriteString("\n\n")
	b.WriteString(md(questionHint(q)))

	return b.String()
}

// formatSubmitFeedback formats the server verdict for a submitted answer.
func formatSubmitFeedback(res *entities.SubmitResult) string {
	var text string
	switch {
	case res.IsCorrect == nil:
		text = md("📝 Ответ сохранён.")
	case *res.IsCorrect:
		text = md("✅ Правильно!")
	default:
		text = md("❌ Неправильно.")
	}

	if res.Message != "" {
		text += "\n" + md(res.Message)
	}
	return text
}

func formatStatus(s entities.AttemptStatus) string {
	switch s {
	case entities.AttemptInProgress:
		return "в процессе"
	case entities.AttemptPendingGrading:
		return "ожидает проверки"
	case entities.AttemptCompleted:
		return "завершена"
	case entities.AttemptFailed:
		return "не засчитана"
	default:
		return string(s)
	}
}

func formatScore(score *float64) string {
	if score == nil {
		return "—"
	}
	return fmt.Sprintf("%.0f%%", *score)
}

// formatAttemptSummary formats a finished attempt.
func formatAttemptSummary(d *entities.AttemptDetails) string {
	emoji := "🏁"
	switch d.Status {
	case entities.AttemptCompleted:
		emoji = "🌟"
	case entities.AttemptPendingGrading:
		emoji = "⏳"
	case entities.AttemptFailed:
		emoji = "📚"
	}

	text := fmt.Sprintf(
		"%s %s\n\n%s %s\n%s %s\n%s %s",
		md(emoji), bold(quizTitle(d.Quiz)),
		md("Статус:"), md(formatStatus(d.Status)),
		md("Результат:"), bold(formatScore(d.Score)),
		md("Баллы:"), bold(fmt.Sprintf("%d", d.PointsEarned)),
	)

	if d.Status == entities.AttemptPendingGrading {
		text += "\n\n" + md("Открытые ответы проверит преподаватель, итоговый результат появится позже.")
	}
	return text
}

func quizTitle(q entities.QuizRef) string {
	if q.Title != "" {
		return q.Title
	}
	return fmt.Sprintf("Квиз #%d", q.ID)
}

// formatAttemptDetails formats the graded answers of a finished attempt.
func formatAttemptDetails(d *entities.AttemptDetails) string {
	var b strings.Builder
	b.WriteString(formatAttemptSummary(d))

	for i, q := range d.Questions {
		b.WriteString("\n\n")
		b.WriteString(bold(fmt.Sprintf("%d. ", i+1)))
		b.WriteString(md(q.Text))
		b.WriteString("\n")
		b.WriteString(md(formatResultAnswer(&q)))
	}

	return b.String()
}

func formatResultAnswer(q *entities.ResultQuestion) string {
	if q.Answer == nil {
		return "— нет ответа"
	}

	var lines []string

	mark := "⏳ на проверке"
	if q.Answer.IsCorrect != nil {
		mark = "❌ неверно"
		if *q.Answer.IsCorrect {
			mark = "✅ верно"
		}
	}
	if q.Answer.Score != nil {
		mark += fmt.Sprintf(" (%.2g)", *q.Answer.Score)
	}
	lines = append(lines, mark)

	if given := formatGiven(q); given != "" {
		lines = append(lines, "Ваш ответ: "+given)
	}
	if correct := formatCorrect(q); correct != "" {
		lines = append(lines, "Правильный ответ: "+correct)
	}
	if q.Answer.Message != "" {
		lines = append(lines, q.Answer.Message)
	}

	return strings.Join(lines, "\n")
}

// formatGiven renders the student's answer for the types that read well
// as text. Choice answers only carry option ids after completion.
func formatGiven(q *entities.ResultQuestion) string {
	payload, err := answer.Unmarshal(q.Type, q.Answer.Payload)
	if err != nil {
		return ""
	}
	a, err := answer.Decode(payload)
	if err != nil {
		return ""
	}

	switch v := a.(type) {
	case answer.TrueFalse:
		if !v.Chosen {
			return ""
		}
		return formatBool(v.Value)
	case answer.FillBlank:
		return strings.Join(v.Values, ", ")
	case answer.OpenText:
		return v.Text
	default:
		return ""
	}
}

func formatCorrect(q *entities.ResultQuestion) string {
	switch q.Type {
	case entities.QuestionTrueFalse:
		if q.CorrectIsTrue == nil {
			return ""
		}
		return formatBool(*q.CorrectIsTrue)
	case entities.QuestionFillBlank:
		return strings.Join(q.CorrectBlanks, ", ")
	default:
		return ""
	}
}

func formatBool(v bool) string {
	if v {
		return "верно"
	}
	return "неверно"
}

// buildProgressBar creates an ASCII progress bar.
func buildProgressBar(current, total, length int) string {
	if total == 0 {
		return strings.Repeat("░", length)
	}

	filled := int(float64(current) / float64(total) * float64(length))
	if filled > length {
		filled = length
	}

	empty := length - filled
	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("[%s]", bar)
}

// formatPathway formats a pathway with the student's progress.
func formatPathway(t *entities.PathwayTracker) string {
	p := t.Pathway()
	progress := t.Progress()
	percent := t.CompletionPercentage()

	var b strings.Builder
	b.WriteString(bold("🧭 " + p.Title))
	b.WriteString("\n\n")
	b.WriteString(md(fmt.Sprintf("%s %d%%", buildProgressBar(percent, 100, 10), percent)))
	b.WriteString("\n")

	for _, q := range p.Quizzes {
		mark := "▫️"
		if progress.IsCompleted(q.Order) {
			mark = "✅"
		}
		b.WriteString("\n")
		b.WriteString(md(fmt.Sprintf("%s %d. %s", mark, q.Order, q.Title)))
	}

	b.WriteString("\n\n")
	b.WriteString(md(fmt.Sprintf("Баллы: %d", progress.PointsEarned)))

	if progress.Status == entities.PathwayCompleted {
		b.WriteString("\n\n")
		b.WriteString(md(msgPathwayFinished))
	}

	return b.String()
}
