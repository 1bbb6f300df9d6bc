package jobs

import (
	"context"
	"strings"

	"jobdesk/internal/domain"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

// Store is the persistence the engine needs.
type Store interface {
	CreateJob(ctx context.Context, workspace int64, in domain.NewJob) (domain.Job, error)
	GetJob(ctx context.Context, workspace, id int64) (domain.Job, error)
	CompareAndSwapJob(ctx context.Context, workspace, id int64, expect, next domain.State) (bool, error)
	DeleteJob(ctx context.Context, workspace, id int64) (domain.Job, error)
	ListJobs(ctx context.Context, workspace int64, status domain.Status, limit int) ([]domain.Job, error)
}

// CategoryGate decides whether a category is claimable by anyone and owns
// the canonical spelling of category names.
type CategoryGate interface {
	IsOpenToAll(ctx context.Context, workspace int64, category string) (bool, error)
	Normalize(category string) string
}

// maxSwapAttempts bounds re-reads after lost swaps.
const maxSwapAttempts = 8

type Engine struct {
	store Store
	gate  CategoryGate
	log   logx.Logger
}

func NewEngine(store Store, gate CategoryGate, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{store: store, gate: gate, log: log.With(logx.Component("jobs"))}
}

type CreateInput struct {
	Title       string
	Description string
	Category    string
	CreatedBy   int64
}

// Create posts a new open job. OpenToAll is snapshotted from the category
// gate now and never changes afterwards.
func (e *Engine) Create(ctx context.Context, workspace int64, in CreateInput) (domain.Job, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Job{}, domain.ErrEmptyTitle
	}
	var (
		category  string
		openToAll bool
	)
	if e.gate == nil {
		category = strings.Join(strings.Fields(strings.ToLower(in.Category)), " ")
	} else if category = e.gate.Normalize(in.Category); category != "" {
		var err error
		if openToAll, err = e.gate.IsOpenToAll(ctx, workspace, category); err != nil {
			return domain.Job{}, err
		}
	}
	job, err := e.store.CreateJob(ctx, workspace, domain.NewJob{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		OpenToAll:   openToAll,
		CreatedBy:   in.CreatedBy,
	})
	if err != nil {
		return domain.Job{}, err
	}
	e.log.Debug("job created", logx.Workspace(workspace), logx.Int64("job", job.ID), logx.Bool("open_to_all", openToAll))
	return job, nil
}

func (e *Engine) Get(ctx context.Context, workspace, id int64) (domain.Job, error) {
	return e.store.GetJob(ctx, workspace, id)
}

// List returns up to limit jobs, newest first. status "" means any.
func (e *Engine) List(ctx context.Context, workspace int64, status domain.Status, limit int) ([]domain.Job, error) {
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalid
	}
	return e.store.ListJobs(ctx, workspace, status, limit)
}

// Claim gives an open job to subject. hasMinRole is the subject's capability
// for jobs whose category is not open to all.
func (e *Engine) Claim(ctx context.Context, workspace, id, subject int64, hasMinRole bool) (domain.Job, error) {
	return e.transition(ctx, workspace, id, func(j domain.Job) (domain.State, error) {
		switch j.Status {
		case domain.StatusClosed:
			return domain.State{}, domain.ErrClosed
		case domain.StatusClaimed:
			return domain.State{}, domain.ErrAlreadyClaimed
		}
		if !j.OpenToAll && !hasMinRole {
			return domain.State{}, domain.ErrNotAllowed
		}
		return domain.State{Status: domain.StatusClaimed, ClaimedBy: domain.Int64Ptr(subject)}, nil
	})
}

// Unclaim returns a claimed job to the pool. Only the claimer or a privileged
// subject may do it. A closed job keeps its claimer and reports ErrClosed.
func (e *Engine) Unclaim(ctx context.Context, workspace, id, subject int64, privileged bool) (domain.Job, error) {
	return e.transition(ctx, workspace, id, func(j domain.Job) (domain.State, error) {
		switch j.Status {
		case domain.StatusClosed:
			return domain.State{}, domain.ErrClosed
		case domain.StatusOpen:
			return domain.State{}, domain.ErrNotClaimed
		}
		if j.ClaimedByID() != subject && !privileged {
			return domain.State{}, domain.ErrNotAllowed
		}
		return domain.State{Status: domain.StatusOpen}, nil
	})
}

// Close finishes a job from any state. The claimer stays recorded.
func (e *Engine) Close(ctx context.Context, workspace, id, subject int64, privileged bool) (domain.Job, error) {
	return e.transition(ctx, workspace, id, func(j domain.Job) (domain.State, error) {
		if !privileged && (j.ClaimedBy == nil || *j.ClaimedBy != subject) {
			return domain.State{}, domain.ErrNotAllowed
		}
		return domain.State{Status: domain.StatusClosed, ClaimedBy: j.ClaimedBy}, nil
	})
}

// Reopen puts a closed job back on the board, unclaimed.
func (e *Engine) Reopen(ctx context.Context, workspace, id int64, privileged bool) (domain.Job, error) {
	return e.transition(ctx, workspace, id, func(j domain.Job) (domain.State, error) {
		if !privileged {
			return domain.State{}, domain.ErrNotAllowed
		}
		if j.Status != domain.StatusClosed {
			return domain.State{}, domain.ErrNotClosed
		}
		return domain.State{Status: domain.StatusOpen}, nil
	})
}

// Delete removes the job and returns where its card was posted, if anywhere.
func (e *Engine) Delete(ctx context.Context, workspace, id int64, privileged bool) (domain.Job, *transport.MessageRef, error) {
	if !privileged {
		if _, err := e.store.GetJob(ctx, workspace, id); err != nil {
			return domain.Job{}, nil, err
		}
		return domain.Job{}, nil, domain.ErrNotAllowed
	}
	job, err := e.store.DeleteJob(ctx, workspace, id)
	if err != nil {
		return domain.Job{}, nil, err
	}
	return job, job.BoardRef, nil
}

type planFunc func(domain.Job) (domain.State, error)

func (e *Engine) transition(ctx context.Context, workspace, id int64, plan planFunc) (domain.Job, error) {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		job, err := e.store.GetJob(ctx, workspace, id)
		if err != nil {
			return domain.Job{}, err
		}
		next, err := plan(job)
		if err != nil {
			return job, err
		}
		if sameState(job.State(), next) {
			return job, nil
		}
		ok, err := e.store.CompareAndSwapJob(ctx, workspace, id, job.State(), next)
		if err != nil {
			return job, err
		}
		if ok {
			job.Status, job.ClaimedBy = next.Status, next.ClaimedBy
			return job, nil
		}
		e.log.Debug("lost swap, re-reading", logx.Workspace(workspace), logx.Int64("job", id), logx.Int("attempt", attempt+1))
	}
	return domain.Job{}, domain.ErrContended
}

func sameState(a, b domain.State) bool {
	if a.Status != b.Status {
		return false
	}
	if a.ClaimedBy == nil || b.ClaimedBy == nil {
		return a.ClaimedBy == nil && b.ClaimedBy == nil
	}
	return *a.ClaimedBy == *b.ClaimedBy
}
