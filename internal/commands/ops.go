package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"jobdesk/internal/transport/telegram/router"
	"jobdesk/pkg/tgui"
)

const (
	auditDefault = 10
	auditMax     = 50
)

func (s *Set) audit(ctx context.Context, r *router.Request) error {
	if s.Audit == nil {
		return r.Reply(ctx, "Audit is not available.")
	}
	n := auditDefault
	if len(r.Args) > 0 {
		v, err := strconv.Atoi(r.Args[0])
		if err != nil || v <= 0 {
			return fail(ctx, r, usage("/audit [n]"), "")
		}
		n = min(v, auditMax)
	}
	entries, err := s.Audit.RecentAudit(ctx, r.Workspace(), n)
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if len(entries) == 0 {
		return r.Reply(ctx, "No audit entries yet.")
	}
	b := tgui.New().Title("🧾", "Audit")
	for _, e := range entries {
		line := fmt.Sprintf("%s %s %s", tgui.Code(e.At.Format("01-02 15:04")), tgui.B(e.Action), tgui.Esc(e.Target))
		if e.ActorID != 0 {
			line += " by " + tgui.Mention("", e.ActorID).String()
		}
		if e.Error != "" {
			line += " ❗ " + tgui.Esc(tgui.TruncRunes(e.Error, 80)).String()
		}
		b.HTML(tgui.H(line))
	}
	return r.Reply(ctx, b.Build().Text)
}

func (s *Set) status(ctx context.Context, r *router.Request) error {
	b := tgui.New().Title("📊", "Status")
	if s.Schedules != nil {
		snap := s.Schedules.Snapshot()
		b.KV("Scheduler", fmt.Sprintf("running=%v tz=%s", snap.Running, snap.Timezone))
		for _, it := range snap.Schedules {
			next := "-"
			if !it.Next.IsZero() {
				next = it.Next.Format(time.RFC3339)
			}
			b.Line(fmt.Sprintf("   %s (%s) next %s", it.Name, it.Spec, next))
		}
	}
	if s.History != nil {
		var (
			sent int
			last time.Time
		)
		for _, h := range s.History.Snapshot() {
			if h.Workspace != r.Workspace() {
				continue
			}
			sent++
			if h.At.After(last) {
				last = h.At
			}
		}
		val := strconv.Itoa(sent)
		if !last.IsZero() {
			val += ", last " + last.Format(time.RFC3339)
		}
		b.KV("Notifications here", val)
	}
	return r.Reply(ctx, b.Build().Text)
}
