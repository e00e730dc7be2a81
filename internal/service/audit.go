package service

import (
	"context"
	"log/slog"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/store"
)

// Actor is the administrator performing an audited action.
type Actor struct {
	ID        string
	IPAddress string
	UserAgent string
}

// ActorFrom builds an Actor from an authenticated principal and its client.
// The audit log references admins rows, so family members act anonymously.
func ActorFrom(p *model.Principal, meta model.ClientMeta) Actor {
	a := Actor{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent}
	if p != nil && p.Kind == model.KindAdmin {
		a.ID = p.ID
	}
	return a
}

// Auditor appends entries to the admin audit log. Failures are logged and
// never fail the audited operation.
type Auditor struct {
	store  *store.Store
	logger *slog.Logger
}

func NewAuditor(store *store.Store, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{store: store, logger: logger}
}

// Record writes one audit entry.
func (a *Auditor) Record(ctx context.Context, actor Actor, action, targetType, targetID string, details model.JSONDoc) {
	err := a.store.LogAdminAction(ctx, store.AuditRecord{
		AdminID:    actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	})
	if err != nil {
		a.logger.Error("write audit log", "action", action, "target_id", targetID, "error", err)
	}
}
