package desk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/rotation"
	"jobdesk/pkg/tgui"
)

// ---- rotation ----

func (s *Service) AddToRotation(ctx context.Context, r Request, u Subject) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsManagerOrAdmin); err != nil {
		return false, err
	}
	return s.Rotation.Add(ctx, r.Workspace, u.ID)
}

func (s *Service) RemoveFromRotation(ctx context.Context, r Request, u Subject) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsManagerOrAdmin); err != nil {
		return false, err
	}
	return s.Rotation.Remove(ctx, r.Workspace, u.ID)
}

type Roster struct {
	Members    []Subject
	Current    rotation.Candidate
	HasCurrent bool
}

func (s *Service) Roster(ctx context.Context, r Request) (Roster, error) {
	entries, err := s.Rotation.Roster(ctx, r.Workspace)
	if err != nil {
		return Roster{}, err
	}
	out := Roster{}
	for _, e := range entries {
		out.Members = append(out.Members, Subject{ID: e.UserID, Name: s.name(ctx, r.Workspace, e.UserID)})
	}
	out.Current, out.HasCurrent, err = s.Rotation.Current(ctx, r.Workspace)
	return out, err
}

// AnnounceInterview posts the current candidate to the announcement target.
func (s *Service) AnnounceInterview(ctx context.Context, r Request) (rotation.Candidate, bool, error) {
	return s.Rotation.AnnounceNow(ctx, r.Workspace)
}

// ---- settings ----

// SetAnnounceTarget makes the requesting chat the announcement target.
func (s *Service) SetAnnounceTarget(ctx context.Context, r Request) error {
	return s.setTarget(ctx, r, domain.SettingAnnounceChat, domain.SettingAnnounceThread)
}

func (s *Service) SetLogTarget(ctx context.Context, r Request) error {
	return s.setTarget(ctx, r, domain.SettingLogChat, domain.SettingLogThread)
}

func (s *Service) setTarget(ctx context.Context, r Request, chatKey, threadKey string) error {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return err
	}
	if err := s.Store.SetSetting(ctx, r.Workspace, chatKey, strconv.FormatInt(r.Chat.ChatID, 10)); err != nil {
		return err
	}
	return s.Store.SetSetting(ctx, r.Workspace, threadKey, strconv.Itoa(r.Chat.ThreadID))
}

func (s *Service) SetMinClaimRole(ctx context.Context, r Request, role string) (domain.Role, error) {
	return s.setRoleSetting(ctx, r, domain.SettingMinClaimRole, role)
}

func (s *Service) SetManagerRole(ctx context.Context, r Request, role string) (domain.Role, error) {
	return s.setRoleSetting(ctx, r, domain.SettingManagerRole, role)
}

func (s *Service) setRoleSetting(ctx context.Context, r Request, key, name string) (domain.Role, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return domain.Role{}, err
	}
	role, err := s.lookupRole(ctx, r.Workspace, name)
	if err != nil {
		return role, err
	}
	return role, s.Store.SetSetting(ctx, r.Workspace, key, role.Name)
}

// ---- managers ----

func (s *Service) AddManager(ctx context.Context, r Request, u Subject) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return false, err
	}
	return s.Store.AddManager(ctx, r.Workspace, u.ID, r.ActorID)
}

func (s *Service) RemoveManager(ctx context.Context, r Request, u Subject) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return false, err
	}
	return s.Store.RemoveManager(ctx, r.Workspace, u.ID)
}

func (s *Service) Managers(ctx context.Context, r Request) ([]Subject, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return nil, err
	}
	ids, err := s.Store.ListManagers(ctx, r.Workspace)
	if err != nil {
		return nil, err
	}
	out := make([]Subject, 0, len(ids))
	for _, id := range ids {
		out = append(out, Subject{ID: id, Name: s.name(ctx, r.Workspace, id)})
	}
	return out, nil
}

// ---- roles ----

// RoleName normalizes a role name the way it is stored.
func RoleName(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }

func (s *Service) lookupRole(ctx context.Context, workspace int64, name string) (domain.Role, error) {
	n := RoleName(name)
	if n == "" {
		return domain.Role{}, domain.ErrEmptyName
	}
	role, ok, err := s.Store.GetRole(ctx, workspace, n)
	if err != nil {
		return role, err
	}
	if !ok {
		return role, domain.ErrRoleNotFound
	}
	return role, nil
}

func (s *Service) PutRole(ctx context.Context, r Request, name string, rank int) (domain.Role, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return domain.Role{}, err
	}
	role := domain.Role{WorkspaceID: r.Workspace, Name: RoleName(name), Rank: rank}
	if role.Name == "" {
		return role, domain.ErrEmptyName
	}
	return role, s.Store.PutRole(ctx, role)
}

func (s *Service) DeleteRole(ctx context.Context, r Request, name string) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return false, err
	}
	n := RoleName(name)
	if n == "" {
		return false, domain.ErrEmptyName
	}
	return s.Store.DeleteRole(ctx, r.Workspace, n)
}

func (s *Service) Roles(ctx context.Context, r Request) ([]domain.Role, error) {
	return s.Store.ListRoles(ctx, r.Workspace)
}

func (s *Service) GrantRole(ctx context.Context, r Request, name string, u Subject) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return false, err
	}
	role, err := s.lookupRole(ctx, r.Workspace, name)
	if err != nil {
		return false, err
	}
	return s.Store.GrantRole(ctx, r.Workspace, u.ID, role.Name)
}

func (s *Service) RevokeRole(ctx context.Context, r Request, name string, u Subject) (bool, error) {
	if err := s.require(ctx, r, s.Perms.IsAdmin); err != nil {
		return false, err
	}
	return s.Store.RevokeRole(ctx, r.Workspace, u.ID, RoleName(name))
}

// ---- warnings ----

func (s *Service) Warn(ctx context.Context, r Request, u Subject, reason string) (domain.Warning, error) {
	if err := s.require(ctx, r, s.Perms.IsModerator); err != nil {
		return domain.Warning{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Warning{}, domain.ErrEmptyReason
	}
	w, err := s.Store.AddWarning(ctx, domain.Warning{WorkspaceID: r.Workspace, UserID: u.ID, ModeratorID: r.ActorID, Reason: reason})
	if err != nil {
		return w, err
	}
	s.logLine(ctx, r.Workspace, tgui.H(fmt.Sprintf("⚠️ %s warned by %s: %s", u.mention(), r.actor(), tgui.Esc(reason))))
	s.emit(eventbus.WarningAdded, r, userTarget(u.ID), reason)
	return w, nil
}

// Unwarn removes the most recent warning of u.
func (s *Service) Unwarn(ctx context.Context, r Request, u Subject) (domain.Warning, bool, error) {
	if err := s.require(ctx, r, s.Perms.IsModerator); err != nil {
		return domain.Warning{}, false, err
	}
	w, ok, err := s.Store.RemoveLatestWarning(ctx, r.Workspace, u.ID)
	if err != nil || !ok {
		return w, ok, err
	}
	s.logLine(ctx, r.Workspace, tgui.H(fmt.Sprintf("🧹 Removed a warning for %s (by %s).", u.mention(), r.actor())))
	s.emit(eventbus.WarningRemoved, r, userTarget(u.ID), strconv.FormatInt(w.ID, 10))
	return w, true, nil
}

func (s *Service) Warnings(ctx context.Context, r Request, u Subject) ([]domain.Warning, error) {
	return s.Store.ListWarnings(ctx, r.Workspace, u.ID, listLimit)
}
