package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"jobdesk/internal/domain"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

type Store interface {
	OpenJobsPage(ctx context.Context, workspace int64, page, size int) ([]domain.Job, domain.Window, error)
	GetBoardView(ctx context.Context, workspace int64) (domain.BoardView, error)
	SaveBoardView(ctx context.Context, v domain.BoardView) error
	SetBoardPage(ctx context.Context, workspace int64, ref transport.MessageRef, page int) (bool, error)
}

// Publisher is the part of the notifier that owns board messages.
type Publisher interface {
	PublishBoard(ctx context.Context, to transport.ChatTarget, msg tgui.Message) (transport.MessageRef, error)
	ReplaceBoard(ctx context.Context, ref transport.MessageRef, msg tgui.Message) error
	DeleteMessage(ctx context.Context, ref transport.MessageRef) error
	PinMessage(ctx context.Context, ref transport.MessageRef) error
}

// Page is one rendered board page.
type Page struct {
	domain.Window
	WorkspaceID int64
	Jobs        []domain.Job
}

type Paginator struct {
	store    Store
	pub      Publisher
	log      logx.Logger
	pageSize atomic.Int64

	mu    sync.Mutex
	inits map[int64]*sync.Mutex
}

func NewPaginator(store Store, pub Publisher, pageSize int, log logx.Logger) *Paginator {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Paginator{
		store: store,
		pub:   pub,
		log:   log.With(logx.Component("board")),
		inits: make(map[int64]*sync.Mutex),
	}
	p.SetPageSize(pageSize)
	return p
}

// SetPageSize applies a new page size; values < 1 mean the default.
func (p *Paginator) SetPageSize(n int) {
	if n < 1 {
		n = domain.DefaultPageSize
	}
	p.pageSize.Store(int64(n))
}

func (p *Paginator) PageSize() int { return int(p.pageSize.Load()) }

// Render reads the open jobs of page, clamped into [1, total pages], newest
// first. It never writes.
func (p *Paginator) Render(ctx context.Context, workspace int64, page int) (Page, error) {
	jobs, win, err := p.store.OpenJobsPage(ctx, workspace, page, p.PageSize())
	if err != nil {
		return Page{}, err
	}
	return Page{Window: win, WorkspaceID: workspace, Jobs: jobs}, nil
}

// Sync moves the live board by delta pages (0 re-renders in place), persists
// the clamped page and republishes. A workspace without a board returns
// domain.ErrNoBoard; boards are never created implicitly.
func (p *Paginator) Sync(ctx context.Context, workspace int64, delta int) (Page, error) {
	view, err := p.store.GetBoardView(ctx, workspace)
	if err != nil {
		return Page{}, err
	}
	page, err := p.Render(ctx, workspace, view.Page+delta)
	if err != nil {
		return Page{}, err
	}
	ok, err := p.store.SetBoardPage(ctx, workspace, view.Ref, page.Page)
	if err != nil {
		return page, err
	}
	if !ok {
		// Init replaced the board between our read and write; the new board
		// is already current.
		p.log.Debug("board superseded during sync", logx.Workspace(workspace))
		return page, nil
	}
	if err := p.pub.ReplaceBoard(ctx, view.Ref, Format(page)); err != nil {
		return page, err
	}
	return page, nil
}

// Init supersedes any existing board: the old message is deleted best-effort,
// page 1 is published at target and recorded as the live view.
func (p *Paginator) Init(ctx context.Context, workspace int64, target transport.ChatTarget, pin bool) (domain.BoardView, error) {
	lock := p.initLock(workspace)
	lock.Lock()
	defer lock.Unlock()

	old, err := p.store.GetBoardView(ctx, workspace)
	switch {
	case err == nil:
		if derr := p.pub.DeleteMessage(ctx, old.Ref); derr != nil {
			p.log.Warn("delete previous board failed", logx.Workspace(workspace), logx.Err(derr))
		}
	case errors.Is(err, domain.ErrNoBoard):
	default:
		return domain.BoardView{}, err
	}

	page, err := p.Render(ctx, workspace, 1)
	if err != nil {
		return domain.BoardView{}, err
	}
	ref, err := p.pub.PublishBoard(ctx, target, Format(page))
	if err != nil {
		return domain.BoardView{}, err
	}
	view := domain.BoardView{WorkspaceID: workspace, Ref: ref, Page: page.Page}
	if err := p.store.SaveBoardView(ctx, view); err != nil {
		return domain.BoardView{}, err
	}
	if pin {
		if perr := p.pub.PinMessage(ctx, ref); perr != nil {
			p.log.Warn("pin board failed", logx.Workspace(workspace), logx.Err(perr))
		}
	}
	p.log.Info("board initialized", logx.Workspace(workspace), logx.Int64("chat", ref.ChatID), logx.Int("message", ref.MessageID))
	return view, nil
}

func (p *Paginator) initLock(workspace int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.inits[workspace]
	if !ok {
		l = &sync.Mutex{}
		p.inits[workspace] = l
	}
	return l
}
