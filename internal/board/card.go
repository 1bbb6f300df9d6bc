package board

import (
	"fmt"
	"strconv"

	"jobdesk/internal/domain"
	"jobdesk/pkg/tgui"
)

// CardScope is the callback scope of job card buttons. The payload is the job id.
const CardScope = "job"

// FormatCard renders the standalone message of one job. claimer is the
// display name of the claimer, if any. Closed jobs have no buttons.
func FormatCard(j domain.Job, claimer string) tgui.Message {
	b := tgui.New().Title("🆕", fmt.Sprintf("Job #%d: %s", j.ID, tgui.TruncRunes(j.Title, titleMaxRunes)))
	if j.Description != "" {
		b.Line(j.Description)
	} else {
		b.HTML(tgui.I("No description"))
	}
	if j.Category != "" {
		b.KV("Category", j.Category)
	}
	b.Blank().Line(accessLabel(j))

	switch j.Status {
	case domain.StatusClaimed:
		b.HTML("👤 Claimed by " + tgui.Mention(claimer, j.ClaimedByID()))
	case domain.StatusClosed:
		b.Line("🔒 Closed")
	}

	if j.Status == domain.StatusClosed {
		return b.Build()
	}
	id := strconv.FormatInt(j.ID, 10)
	kb := tgui.NewInline().Row(
		tgui.Btn("✅ Claim", tgui.Data(CardScope, "claim", id)),
		tgui.Btn("↩️ Unclaim", tgui.Data(CardScope, "unclaim", id)),
	)
	return b.Inline(kb).Build()
}
