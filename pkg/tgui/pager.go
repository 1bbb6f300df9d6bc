package tgui

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// PageLabel renders "Page p/total". page is 1-based and already clamped.
func PageLabel(page, totalPages int) string {
	if totalPages < 1 {
		totalPages = 1
	}
	return fmt.Sprintf("Page %d/%d", page, totalPages)
}

// PagerRow builds a Prev / Refresh / Next row for callback scope.
// The actions are "prev", "refresh" and "next"; no payload.
func PagerRow(scope string) []tele.Btn {
	return []tele.Btn{
		Btn("◀ Prev", Data(scope, "prev", "")),
		Btn("🔄 Refresh", Data(scope, "refresh", "")),
		Btn("Next ▶", Data(scope, "next", "")),
	}
}
