package board

import (
	"fmt"

	"jobdesk/internal/domain"
	"jobdesk/pkg/tgui"
)

// Scope is the callback scope of the board's pager buttons.
const Scope = "board"

const titleMaxRunes = 80

// Format renders a page as the board message with its pager row.
func Format(p Page) tgui.Message {
	b := tgui.New().Title("📋", "Job Board").Blank()
	if len(p.Jobs) == 0 {
		b.Line("No open jobs right now.")
	}
	for _, j := range p.Jobs {
		b.HTML(tgui.B(fmt.Sprintf("#%d", j.ID)) + " " + tgui.Esc(tgui.TruncRunes(j.Title, titleMaxRunes)))
		b.HTML(tgui.Esc("   " + categoryLabel(j) + " • " + accessLabel(j)))
	}
	b.Blank().HTML(tgui.I(fmt.Sprintf("%s • %d open job(s)", tgui.PageLabel(p.Page, p.TotalPages), p.Total)))
	return b.Inline(tgui.NewInline().Row(tgui.PagerRow(Scope)...)).Build()
}

func categoryLabel(j domain.Job) string {
	if j.Category == "" {
		return "🏷️ uncategorized"
	}
	return "🏷️ " + j.Category
}

func accessLabel(j domain.Job) string {
	if j.OpenToAll {
		return "✅ Open to all"
	}
	return "🔒 Min role required"
}
