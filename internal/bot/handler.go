package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lectureflow/internal/attendance"
	"lectureflow/internal/metrics"
)

// Sender is the part of *tgbotapi.BotAPI the handler uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Service is the attendance application the bot drives.
type Service interface {
	Register(ctx context.Context, userID int64, handle string) error
	Schedule(ctx context.Context, date time.Time) ([]attendance.Lesson, error)
	DaySheet(ctx context.Context, userID int64, date time.Time) ([]attendance.LessonStatus, error)
	Mark(ctx context.Context, userID, lessonID int64, status attendance.Status) (attendance.Lesson, error)
	Categories(ctx context.Context) ([]attendance.Category, error)
	SelectCategory(ctx context.Context, userID int64, c attendance.Category) ([]attendance.Subject, error)
	AllowanceByRef(ctx context.Context, userID int64, c attendance.Category, refLessonID int64, t attendance.SubjectType) (attendance.Allowance, error)
	Profile(ctx context.Context, userID int64, asOf time.Time) ([]attendance.SubjectSummary, error)
}

const (
	textFailure = "⚠️ Something went wrong, please try again in a moment."
	textStale   = "This button is no longer valid."
)

// Handler turns Telegram updates into attendance operations and replies.
type Handler struct {
	svc Service
	out Sender
	loc *time.Location
	now func() time.Time

	evening string
	sweep   string
}

// NewHandler creates a handler. Dates are evaluated in loc; evening and sweep
// are the reminder times quoted in the help text.
func NewHandler(svc Service, out Sender, loc *time.Location, evening, sweep string) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, out: out, loc: loc, now: time.Now, evening: evening, sweep: sweep}
}

func (h *Handler) today() time.Time {
	now := h.now().In(h.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
}

// Handle processes one update. Errors are already reported to the user; the
// returned error is for logging.
func (h *Handler) Handle(ctx context.Context, u tgbotapi.Update) error {
	var (
		kind string
		err  error
	)
	switch {
	case u.CallbackQuery != nil:
		kind = "callback"
		err = h.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		kind = "message"
		err = h.handleMessage(ctx, u.Message)
	default:
		kind = "other"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.UpdatesHandled.WithLabelValues(kind, result).Inc()
	return err
}

var labelCommands = map[string]string{
	LabelToday:     "today",
	LabelTomorrow:  "tomorrow",
	LabelMarkToday: "mark_today",
	LabelPickDate:  "mark_date",
	LabelProfile:   "profile",
	LabelAllowance: "allowance",
	LabelHelp:      "help",
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	user := msg.From

	var cmd, args string
	if msg.IsCommand() {
		cmd, args = msg.Command(), msg.CommandArguments()
	} else if c, ok := labelCommands[msg.Text]; ok {
		cmd = c
	} else {
		return nil
	}

	if err := h.svc.Register(ctx, user.ID, user.UserName); err != nil {
		h.send(chatID, textFailure, nil)
		return fmt.Errorf("register user %d: %w", user.ID, err)
	}

	var err error
	switch cmd {
	case "start":
		err = h.send(chatID, welcomeText(user.FirstName), mainMenu())
	case "today":
		err = h.schedule(ctx, chatID, h.today(), "TODAY'S SCHEDULE")
	case "tomorrow":
		err = h.schedule(ctx, chatID, h.today().AddDate(0, 0, 1), "TOMORROW'S SCHEDULE")
	case "mark_today":
		err = h.markSheet(ctx, chatID, user.ID, h.today())
	case "mark_date":
		if args == "" {
			err = h.send(chatID, "📅 <b>Pick the day you want to fill in:</b>\nOr send /mark_date YYYY-MM-DD.", dayKeyboard(h.today()))
			break
		}
		day, perr := attendance.ParseDate(args, h.loc)
		if perr != nil {
			err = h.send(chatID, "Use the format /mark_date YYYY-MM-DD.", nil)
			break
		}
		err = h.markSheet(ctx, chatID, user.ID, day)
	case "allowance":
		err = h.categories(ctx, chatID)
	case "profile":
		err = h.profile(ctx, chatID, user.ID)
	case "help":
		err = h.send(chatID, helpText(h.evening, h.sweep), nil)
	default:
		err = h.send(chatID, "Unknown command. Try /help.", nil)
	}
	if err != nil {
		h.send(chatID, textFailure, nil)
		return fmt.Errorf("command %s from user %d: %w", cmd, user.ID, err)
	}
	return nil
}

func (h *Handler) schedule(ctx context.Context, chatID int64, day time.Time, label string) error {
	lessons, err := h.svc.Schedule(ctx, day)
	if err != nil {
		return err
	}
	return h.send(chatID, scheduleText(label, day, lessons), nil)
}

// markSheet sends one message per lesson of day, each with mark buttons.
func (h *Handler) markSheet(ctx context.Context, chatID, userID int64, day time.Time) error {
	sheet, err := h.svc.DaySheet(ctx, userID, day)
	if err != nil {
		return err
	}
	date := day.Format(attendance.DateLayout)
	if len(sheet) == 0 {
		return h.send(chatID, fmt.Sprintf("ℹ️ No lessons found on <code>%s</code>. Enjoy the break! ☕", date), nil)
	}
	if err := h.send(chatID, fmt.Sprintf("🗓 Lessons of <code>%s</code>. Mark each one:", date), nil); err != nil {
		return err
	}
	for _, ls := range sheet {
		text := lessonLine(ls.Lesson) + markSuffix(ls.Mark)
		if err := h.send(chatID, text, markKeyboard(ls.Lesson.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) categories(ctx context.Context, chatID int64) error {
	cats, err := h.svc.Categories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return h.send(chatID, "ℹ️ The schedule is empty.", nil)
	}
	return h.send(chatID, "Which group do you want to check?", categoryKeyboard(cats))
}

func (h *Handler) profile(ctx context.Context, chatID, userID int64) error {
	asOf := h.today()
	rows, err := h.svc.Profile(ctx, userID, asOf)
	if err != nil {
		return err
	}
	return h.send(chatID, profileText(asOf, rows), nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil {
		return nil
	}
	userID := cb.From.ID
	chatID := userID
	var messageID int
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
		messageID = cb.Message.MessageID
	}

	p, err := DecodePayload(cb.Data)
	if err != nil {
		log.Printf("callback from user %d: %v", userID, err)
		h.answer(cb.ID, textStale)
		return nil
	}

	switch p.Action {
	case ActionMark:
		lesson, err := h.svc.Mark(ctx, userID, p.LessonID, p.Status)
		if errors.Is(err, attendance.ErrLessonNotFound) {
			h.answer(cb.ID, "That lesson is no longer on the schedule.")
			return nil
		}
		if err != nil {
			h.answer(cb.ID, textFailure)
			return err
		}
		metrics.AttendanceMarks.WithLabelValues(markLabel(p.Status)).Inc()
		mark := attendance.MarkedAbsent
		if p.Status == attendance.Present {
			mark = attendance.MarkedPresent
		}
		text := lessonLine(lesson) + markSuffix(mark)
		if err := h.edit(chatID, messageID, text, markKeyboard(lesson.ID)); err != nil {
			log.Printf("edit mark message for user %d: %v", userID, err)
		}
		h.answer(cb.ID, "Attendance saved.")
		return nil

	case ActionCategory:
		subjects, err := h.svc.SelectCategory(ctx, userID, p.Category)
		if err != nil {
			h.answer(cb.ID, textFailure)
			return err
		}
		if len(subjects) == 0 {
			h.answer(cb.ID, "No active subjects in this group.")
			return nil
		}
		if err := h.edit(chatID, messageID, subjectsText(p.Category), subjectKeyboard(p.Category, subjects)); err != nil {
			h.answer(cb.ID, textFailure)
			return err
		}
		h.answer(cb.ID, "")
		return nil

	case ActionCalc:
		a, err := h.svc.AllowanceByRef(ctx, userID, p.Category, p.RefLessonID, p.Type)
		if errors.Is(err, attendance.ErrSubjectNotFound) {
			h.answer(cb.ID, "That subject is no longer on the schedule.")
			return nil
		}
		if err != nil {
			h.answer(cb.ID, textFailure)
			return err
		}
		h.answer(cb.ID, "")
		return h.send(chatID, allowanceText(a), nil)

	case ActionDay:
		day, err := attendance.ParseDate(p.Day, h.loc)
		if err != nil {
			h.answer(cb.ID, textStale)
			return nil
		}
		h.answer(cb.ID, "")
		return h.markSheet(ctx, chatID, userID, day)
	}
	h.answer(cb.ID, textStale)
	return nil
}

func markLabel(s attendance.Status) string {
	if s == attendance.Present {
		return "present"
	}
	return "absent"
}

// send delivers an HTML message; markup may be nil.
func (h *Handler) send(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := h.out.Send(msg)
	return err
}

func (h *Handler) edit(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	if messageID == 0 {
		return h.send(chatID, text, markup)
	}
	cfg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	cfg.ParseMode = tgbotapi.ModeHTML
	_, err := h.out.Send(cfg)
	return err
}

func (h *Handler) answer(callbackID, text string) {
	if _, err := h.out.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("answer callback %s: %v", callbackID, err)
	}
}
