package desk

import (
	"context"
	"strconv"

	"jobdesk/internal/board"
	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/pkg/tgui"
)

// InitBoard replaces the workspace board with a fresh one in the requesting chat.
func (s *Service) InitBoard(ctx context.Context, r Request, pin bool) (domain.BoardView, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return domain.BoardView{}, err
	}
	view, err := s.Board.Init(ctx, r.Workspace, r.Chat, pin)
	if err != nil {
		return view, err
	}
	s.emit(eventbus.BoardInitialized, r, "board", strconv.Itoa(view.Ref.MessageID))
	return view, nil
}

// PageBoard moves the live board by delta pages. Anyone may page.
func (s *Service) PageBoard(ctx context.Context, r Request, delta int) (board.Page, error) {
	page, err := s.Board.Sync(ctx, r.Workspace, delta)
	if err != nil {
		return page, err
	}
	s.emit(eventbus.BoardSynced, r, "board", tgui.PageLabel(page.Page, page.TotalPages))
	return page, nil
}

func (s *Service) AddOpenCategory(ctx context.Context, r Request, name string) (string, bool, error) {
	if err := s.require(ctx, r, s.Perms.IsManagerOrAdmin); err != nil {
		return "", false, err
	}
	n, added, err := s.Gate.Add(ctx, r.Workspace, name)
	if err != nil || !added {
		return n, added, err
	}
	s.emit(eventbus.CategoryAdded, r, "category:"+n, "")
	return n, true, nil
}

func (s *Service) RemoveOpenCategory(ctx context.Context, r Request, name string) (string, bool, error) {
	if err := s.require(ctx, r, s.Perms.IsManagerOrAdmin); err != nil {
		return "", false, err
	}
	n, removed, err := s.Gate.Remove(ctx, r.Workspace, name)
	if err != nil || !removed {
		return n, removed, err
	}
	s.emit(eventbus.CategoryRemoved, r, "category:"+n, "")
	return n, true, nil
}

func (s *Service) OpenCategories(ctx context.Context, r Request) ([]string, error) {
	return s.Gate.List(ctx, r.Workspace)
}
