package controllers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"telegram-library/bot"
	"telegram-library/models"
	"telegram-library/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgWelcome         = "📚 *Course Library*\n\nType a course name to search.\nExample: React, Python"
	msgJoinReceived    = "📝 Join request received. Wait for manual approval."
	msgInvalidToken    = "❌ File link expired or invalid."
	msgDeliveryFailed  = "⚠️ Could not deliver the file right now. Please try again later."
	msgGenericFailure  = "⚠️ Something went wrong. Please try again later."
	msgNoResults       = "❌ No courses found."
	msgNothingToFinish = "Nothing to finish."
	msgStaleButton     = "This button has expired."
	msgCourseGone      = "This course is no longer available."
)

func deniedText(reason services.DenyReason) string {
	switch reason {
	case services.DenyNotMember:
		return "🔒 Access denied. Your join request has not been approved yet."
	case services.DenyQueryError:
		return "🔒 Could not verify your membership right now. Please try again shortly."
	default:
		return "🔒 Access denied. Request to join our channel first."
	}
}

func courseOpenedText(title string) string {
	return fmt.Sprintf("📂 Opened '%s'. Post files to the vault channel, then send /finish.", title)
}

func finishText(res *services.FinishResult) string {
	if res.Discarded {
		return fmt.Sprintf("🗑 '%s' had no files and was discarded.", res.Title)
	}
	return fmt.Sprintf("✅ '%s' is live with %d files.", res.Title, res.Files)
}

func lockSetText(channelID int64) string {
	return fmt.Sprintf("🔒 Lock channel set to %d.", channelID)
}

func logsText(entries []models.LogEntry) string {
	if len(entries) == 0 {
		return "📜 No logs yet."
	}
	var b strings.Builder
	b.WriteString("📜 Recent logs\n")
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(e.Time.UTC().Format("2006-01-02 15:04:05"))
		b.WriteString(" | ")
		b.WriteString(e.Event)
		if e.UserID != 0 {
			b.WriteString(" | ")
			b.WriteString(strconv.FormatInt(e.UserID, 10))
		}
		if len(e.Detail) > 0 {
			keys := make([]string, 0, len(e.Detail))
			for k := range e.Detail {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%s", k, e.Detail[k])
			}
		}
	}
	return b.String()
}

func searchResultsMessage(chatID int64, results []services.SearchResult) bot.Message {
	kb := make(bot.Keyboard, 0, len(results))
	for _, r := range results {
		kb = append(kb, []bot.Button{{
			Text: "📚 " + r.Course.Title,
			Data: "view|" + r.Course.ID.Hex(),
		}})
	}
	return bot.Message{
		ChatID:   chatID,
		Text:     fmt.Sprintf("Found %d courses:", len(results)),
		Keyboard: kb,
	}
}

func deepLink(botUsername, token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, token)
}

func coursePageMessage(chatID int64, course *models.Course, page int, botUsername string) bot.Message {
	p := services.Paginate(len(course.Files), page)

	var b strings.Builder
	fmt.Fprintf(&b, "💿 *%s*\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, course.Title))
	fmt.Fprintf(&b, "Page %d/%d · %d files\n\n", p.Index+1, p.Pages, p.Total)
	if p.Total == 0 {
		b.WriteString("No files yet.")
	}
	for _, f := range course.Files[p.Start:p.End] {
		fmt.Fprintf(&b, "📄 [%s](%s)\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, f.DisplayName), deepLink(botUsername, f.Token))
	}

	return bot.Message{
		ChatID:   chatID,
		Text:     strings.TrimRight(b.String(), "\n"),
		Markdown: true,
		Keyboard: bot.Keyboard{navigationRow(course.ID.Hex(), p)},
	}
}

// navigationRow always offers Home; Prev and Next appear only when useful.
func navigationRow(courseID string, p services.Page) []bot.Button {
	pageData := func(n int) string { return "page|" + courseID + "|" + strconv.Itoa(n) }

	var row []bot.Button
	if p.HasPrev {
		row = append(row, bot.Button{Text: "« Prev", Data: pageData(p.Index - 1)})
	}
	row = append(row, bot.Button{Text: "🏠 Home", Data: pageData(0)})
	if p.HasNext {
		row = append(row, bot.Button{Text: "Next »", Data: pageData(p.Index + 1)})
	}
	return row
}
