package board

import (
	"strings"
	"testing"

	"jobdesk/internal/domain"
	"jobdesk/pkg/tgui"

	tele "gopkg.in/telebot.v4"
)

func TestFormatCard(t *testing.T) {
	t.Parallel()
	j := domain.Job{ID: 7, Title: "Write <feature>", Category: "promo codes", OpenToAll: true, Status: domain.StatusOpen}

	msg := FormatCard(j, "")
	if !strings.Contains(msg.Text, "Job #7: Write &lt;feature&gt;") {
		t.Fatalf("title not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "No description") || !strings.Contains(msg.Text, "Open to all") {
		t.Fatalf("unexpected card: %q", msg.Text)
	}
	rm, ok := msg.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	if !ok || len(rm.InlineKeyboard) != 1 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("expected claim/unclaim row, got %#v", msg.Opt.ReplyMarkupAdapter)
	}
	scope, action, payload, ok := tgui.ParseData(rm.InlineKeyboard[0][0].Data)
	if !ok || scope != CardScope || action != "claim" || payload != "7" {
		t.Fatalf("claim button data = %q", rm.InlineKeyboard[0][0].Data)
	}
}

func TestFormatCardClaimedAndClosed(t *testing.T) {
	t.Parallel()
	j := domain.Job{ID: 3, Title: "t", Status: domain.StatusClaimed, ClaimedBy: domain.Int64Ptr(99)}
	if msg := FormatCard(j, "Ann"); !strings.Contains(msg.Text, "Claimed by") || !strings.Contains(msg.Text, "tg://user?id=99") {
		t.Fatalf("claimer missing: %q", msg.Text)
	}

	j.Status = domain.StatusClosed
	msg := FormatCard(j, "Ann")
	if !strings.Contains(msg.Text, "Closed") {
		t.Fatalf("closed marker missing: %q", msg.Text)
	}
	if msg.Opt.ReplyMarkupAdapter != nil {
		t.Fatalf("closed card must not carry buttons")
	}
}
