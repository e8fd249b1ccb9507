package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lectureflow/internal/attendance"
)

// Reply keyboard labels. Pressing one behaves like the matching command.
const (
	LabelToday     = "📅 Today's Schedule"
	LabelTomorrow  = "🔮 Tomorrow's Schedule"
	LabelMarkToday = "📝 Mark Today"
	LabelPickDate  = "📅 Pick a Date"
	LabelProfile   = "📊 My Profile"
	LabelAllowance = "📉 Remaining Allowance"
	LabelHelp      = "ℹ️ Help"
)

const rule = "━━━━━━━━━━━━━━"

// pickerDays is how many past days the date picker offers.
const pickerDays = 7

func esc(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeHTML, s) }

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(LabelToday), tgbotapi.NewKeyboardButton(LabelTomorrow)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(LabelMarkToday), tgbotapi.NewKeyboardButton(LabelPickDate)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(LabelProfile), tgbotapi.NewKeyboardButton(LabelAllowance)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(LabelHelp)),
	)
}

func welcomeText(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 <b>Hello %s!</b>\n\n"+
		"Welcome to <b>LectureFlow</b>, your academic assistant. 🚀\n"+
		"I keep track of your lessons and watch your absence limits.\n\n"+
		rule+"\n"+
		"👇 <b>What you can do</b>\n"+
		"• check your schedule at any time\n"+
		"• see how many absences you have left\n"+
		"• fill in attendance for past days\n"+
		rule+"\n"+
		"<i>Have a great term!</i> ✨", esc(name))
}

func helpText(evening, sweep string) string {
	return fmt.Sprintf("💡 <b>A small tip:</b>\n\n"+
		"Every evening at <b>%s</b> I will remind you to mark the day's attendance.\n\n"+
		"If anything is still missing at <b>%s</b>, I will nudge you once more. 😉\n\n"+
		"Commands: /today /tomorrow /mark_today /mark_date /allowance /profile",
		esc(evening), esc(sweep))
}

func lessonIcon(l attendance.Lesson) string {
	if l.Type == attendance.Practical {
		return "🧪"
	}
	return "📖"
}

func scheduleText(label string, date time.Time, lessons []attendance.Lesson) string {
	var b strings.Builder
	if len(lessons) == 0 {
		fmt.Fprintf(&b, "☕ <b>%s</b>\n%s\nNothing is scheduled for %s. Time to rest! 🎉",
			label, rule, date.Format(attendance.DateLayout))
		return b.String()
	}
	fmt.Fprintf(&b, "📅 <b>%s</b>\n(%s)\n%s\n", label, date.Format(attendance.DateLayout), rule)
	for _, l := range lessons {
		fmt.Fprintf(&b, "⏰ %s | %s <b>%s</b>\n", esc(l.Time), lessonIcon(l), esc(l.Subject))
	}
	b.WriteString(rule + "\n📍 <i>Enjoy your classes!</i>")
	return b.String()
}

func lessonLine(l attendance.Lesson) string {
	return fmt.Sprintf("📍 %s - %s", esc(l.Time), esc(l.Subject))
}

func markSuffix(m attendance.Mark) string {
	switch m {
	case attendance.MarkedPresent:
		return "\n\nRecorded: ✅ ATTENDED"
	case attendance.MarkedAbsent:
		return "\n\nRecorded: ❌ MISSED"
	}
	return ""
}

func markKeyboard(lessonID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Attended", MarkPayload(lessonID, attendance.Present)),
		tgbotapi.NewInlineKeyboardButtonData("❌ Missed", MarkPayload(lessonID, attendance.Absent)),
	))
}

func dayKeyboard(today time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (pickerDays+1)/2)
	var row []tgbotapi.InlineKeyboardButton
	for i := 0; i < pickerDays; i++ {
		d := today.AddDate(0, 0, -i)
		text := d.Format("Mon 02 Jan")
		if i == 0 {
			text = "Today"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(text, DayPayload(d)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func categoryKeyboard(cats []attendance.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Label(), CategoryPayload(c))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func subjectKeyboard(c attendance.Category, subjects []attendance.Subject) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, CalcPayload(c, s))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func subjectsText(c attendance.Category) string {
	return fmt.Sprintf("📂 <b>Category:</b> <code>%s</code>\n%s\nPick the subject to analyse:", esc(c.Label()), rule)
}

func allowanceText(a attendance.Allowance) string {
	bar := a.UsageBar().Render("🟥", "🟩")
	if a.MaxAbsent == 0 {
		bar = strings.Repeat("⬜", attendance.BarSegments)
	}
	status := "🎯 <b>Remaining:</b> %d hour(s)\n"
	if a.Exceeded() {
		status = "🚫 <b>Limit exceeded by</b> %d hour(s)\n"
	}
	remaining := a.Remaining
	if remaining < 0 {
		remaining = -remaining
	}
	return fmt.Sprintf("📖 <b>%s</b>\n%s\n"+status+
		"📉 <b>Missed:</b> %d of %d allowed (%d total, %s%% limit)\n"+
		"<code>%s</code>\n%s",
		esc(strings.ToUpper(a.Subject.Name)), rule, remaining,
		a.Missed, a.MaxAbsent, a.Total, a.Limit.Shift(2).String(), bar, rule)
}

func profileText(asOf time.Time, rows []attendance.SubjectSummary) string {
	if len(rows) == 0 {
		return "ℹ️ No past lessons or attendance records yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👤 <b>STUDENT ATTENDANCE PROFILE</b>\n📅 Date: %s\n%s\n\n", asOf.Format(attendance.DateLayout), rule)
	for _, r := range rows {
		icon := "✅"
		if r.Low() {
			icon = "⚠️"
		}
		fmt.Fprintf(&b, "%s <b>%s</b>\n<code>%s</code>  %s%%\n└ <b>Attended:</b> %d/%d hours\n\n",
			icon, esc(r.Subject), r.RateBar().Render("🟩", "🟥"), r.Percent().StringFixed(1), r.Attended, r.Occurred)
	}
	b.WriteString(rule + "\n<i>Only lessons up to today are counted.</i>")
	return b.String()
}
