package commands

import (
	"context"
	"strings"

	"jobdesk/internal/transport/telegram/router"
	"jobdesk/pkg/tgui"
)

func (s *Set) boardInit(ctx context.Context, r *router.Request) error {
	pin := s.pin.Load() && !r.BoolFlags["nopin"]
	if _, err := s.Desk.InitBoard(ctx, deskRequest(r), pin); err != nil {
		return fail(ctx, r, err, "Only chat admins can set up the job board.")
	}
	return nil
}

func (s *Set) boardRefresh(ctx context.Context, r *router.Request) error {
	if _, err := s.Desk.PageBoard(ctx, deskRequest(r), 0); err != nil {
		return fail(ctx, r, err, "")
	}
	return r.Reply(ctx, "🔄 Job board refreshed.")
}

func (s *Set) pageBoard(delta int) router.CallbackHandlerFunc {
	return func(ctx context.Context, r *router.Request, _ string) error {
		p, err := s.Desk.PageBoard(ctx, deskRequest(r), delta)
		if err != nil {
			return toast(ctx, r, "", err, "")
		}
		return toast(ctx, r, tgui.PageLabel(p.Page, p.TotalPages), nil, "")
	}
}

func (s *Set) openAllAdd(ctx context.Context, r *router.Request) error {
	name, added, err := s.Desk.AddOpenCategory(ctx, deskRequest(r), strings.Join(r.Args, " "))
	if err != nil {
		return fail(ctx, r, err, onlyManagers)
	}
	if !added {
		return r.Reply(ctx, "Category already exists.")
	}
	return replyf(ctx, r, "Added open-to-all category: %s", tgui.B(name))
}

func (s *Set) openAllRemove(ctx context.Context, r *router.Request) error {
	name, removed, err := s.Desk.RemoveOpenCategory(ctx, deskRequest(r), strings.Join(r.Args, " "))
	if err != nil {
		return fail(ctx, r, err, onlyManagers)
	}
	if !removed {
		return replyf(ctx, r, "%s is not an open-to-all category.", tgui.B(name))
	}
	return replyf(ctx, r, "Removed open-to-all category: %s", tgui.B(name))
}

func (s *Set) openAllList(ctx context.Context, r *router.Request) error {
	names, err := s.Desk.OpenCategories(ctx, deskRequest(r))
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if len(names) == 0 {
		return r.Reply(ctx, "No open-to-all categories.")
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, tgui.B(n).String())
	}
	return r.Reply(ctx, "Open-to-all categories: "+strings.Join(out, ", "))
}
