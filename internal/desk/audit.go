package desk

import (
	"context"
	"encoding/json"
	"time"

	"jobdesk/internal/eventbus"
	"jobdesk/internal/storage"
	logx "jobdesk/pkg/logx"
)

const auditWriteTimeout = 2 * time.Second

type AuditStore interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Auditor persists bus events to the audit table. Workspace events are kept
// in full; task results only when they failed.
type Auditor struct {
	store AuditStore
	bus   eventbus.Bus
	log   logx.Logger
}

func NewAuditor(store AuditStore, bus eventbus.Bus, log logx.Logger) *Auditor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Auditor{store: store, bus: bus, log: log.With(logx.Component("audit"))}
}

// Run consumes events until ctx is done.
func (a *Auditor) Run(ctx context.Context) error {
	ch, unsub := a.bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			a.record(ctx, e)
		}
	}
}

func (a *Auditor) record(ctx context.Context, e eventbus.Event) {
	entry, ok := auditEntry(e)
	if !ok {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := a.store.AppendAudit(wctx, entry); err != nil {
		a.log.Warn("audit write failed", logx.String("action", e.Type), logx.Err(err))
	}
}

func auditEntry(e eventbus.Event) (storage.AuditEntry, bool) {
	switch d := e.Data.(type) {
	case eventbus.Change:
		entry := storage.AuditEntry{
			At:          e.Time,
			RequestID:   d.RequestID,
			ActorID:     d.ActorID,
			WorkspaceID: d.WorkspaceID,
			Action:      e.Type,
			Target:      d.Target,
		}
		if d.Detail != "" {
			b, _ := json.Marshal(map[string]string{"detail": d.Detail})
			entry.MetaJSON = string(b)
		}
		return entry, true
	case eventbus.TaskResult:
		if d.Err == "" {
			return storage.AuditEntry{}, false
		}
		b, _ := json.Marshal(map[string]int64{"took_ms": d.TookMS})
		return storage.AuditEntry{At: e.Time, Action: e.Type, Target: d.Name, Error: d.Err, MetaJSON: string(b)}, true
	}
	return storage.AuditEntry{}, false
}
