package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"jobdesk/internal/desk"
	"jobdesk/internal/transport/telegram/router"
	"jobdesk/pkg/tgui"
)

const onlyAdmins = "Only chat admins can use this command."

// ---- rotation ----

func (s *Set) rotationAdd(ctx context.Context, r *router.Request) error {
	u, _, err := subject(r, 0, "/rotation add (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	added, err := s.Desk.AddToRotation(ctx, deskRequest(r), u)
	if err != nil {
		return fail(ctx, r, err, onlyManagers)
	}
	if !added {
		return replyf(ctx, r, "%s is already in the rotation.", mention(u))
	}
	return replyf(ctx, r, "Added %s to rotation.", mention(u))
}

func (s *Set) rotationRemove(ctx context.Context, r *router.Request) error {
	u, _, err := subject(r, 0, "/rotation remove (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	removed, err := s.Desk.RemoveFromRotation(ctx, deskRequest(r), u)
	if err != nil {
		return fail(ctx, r, err, onlyManagers)
	}
	if !removed {
		return replyf(ctx, r, "%s is not in the rotation.", mention(u))
	}
	return replyf(ctx, r, "Removed %s from rotation.", mention(u))
}

func (s *Set) rotationList(ctx context.Context, r *router.Request) error {
	roster, err := s.Desk.Roster(ctx, deskRequest(r))
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if len(roster.Members) == 0 {
		return r.Reply(ctx, "Rotation is empty.")
	}
	names := make([]string, 0, len(roster.Members))
	for _, m := range roster.Members {
		names = append(names, mention(m))
	}
	text := "Rotation: " + strings.Join(names, ", ")
	if roster.HasCurrent {
		for _, m := range roster.Members {
			if m.ID == roster.Current.UserID {
				text += "\nThis week: " + mention(m)
				break
			}
		}
	}
	return r.Reply(ctx, text)
}

func (s *Set) interview(ctx context.Context, r *router.Request) error {
	_, ok, err := s.Desk.AnnounceInterview(ctx, deskRequest(r))
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if !ok {
		return r.Reply(ctx, "No candidates in rotation.")
	}
	return r.Reply(ctx, "Announced.")
}

// ---- managers ----

func (s *Set) adminAdd(ctx context.Context, r *router.Request) error {
	u, _, err := subject(r, 0, "/admin add (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	added, err := s.Desk.AddManager(ctx, deskRequest(r), u)
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	if !added {
		return replyf(ctx, r, "%s is already a manager.", mention(u))
	}
	return replyf(ctx, r, "Added %s as a manager.", mention(u))
}

func (s *Set) adminRemove(ctx context.Context, r *router.Request) error {
	u, _, err := subject(r, 0, "/admin remove (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	removed, err := s.Desk.RemoveManager(ctx, deskRequest(r), u)
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	if !removed {
		return replyf(ctx, r, "%s is not a manager.", mention(u))
	}
	return replyf(ctx, r, "Removed %s from managers.", mention(u))
}

func (s *Set) adminList(ctx context.Context, r *router.Request) error {
	list, err := s.Desk.Managers(ctx, deskRequest(r))
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	if len(list) == 0 {
		return r.Reply(ctx, "No managers yet.")
	}
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, mention(m))
	}
	return r.Reply(ctx, "Managers: "+strings.Join(names, ", "))
}

// ---- roles ----

func (s *Set) roleAdd(ctx context.Context, r *router.Request) error {
	const u = "/role add <name> <rank>"
	if len(r.Args) < 2 {
		return fail(ctx, r, usage(u), "")
	}
	rank, err := strconv.Atoi(r.Args[len(r.Args)-1])
	if err != nil {
		return fail(ctx, r, usage(u), "")
	}
	role, err := s.Desk.PutRole(ctx, deskRequest(r), strings.Join(r.Args[:len(r.Args)-1], " "), rank)
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	return replyf(ctx, r, "Role %s set to rank %d.", tgui.B(role.Name), role.Rank)
}

func (s *Set) roleRemove(ctx context.Context, r *router.Request) error {
	name := strings.Join(r.Args, " ")
	removed, err := s.Desk.DeleteRole(ctx, deskRequest(r), name)
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	if !removed {
		return r.Reply(ctx, "Role not found.")
	}
	return replyf(ctx, r, "Removed role %s.", tgui.B(desk.RoleName(name)))
}

func (s *Set) roleGrant(ctx context.Context, r *router.Request) error {
	name, u, err := roleAndSubject(r, "/role grant <name> (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	granted, err := s.Desk.GrantRole(ctx, deskRequest(r), name, u)
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	if !granted {
		return replyf(ctx, r, "%s already has %s.", mention(u), tgui.B(desk.RoleName(name)))
	}
	return replyf(ctx, r, "Granted %s to %s.", tgui.B(desk.RoleName(name)), mention(u))
}

func (s *Set) roleRevoke(ctx context.Context, r *router.Request) error {
	name, u, err := roleAndSubject(r, "/role revoke <name> (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	revoked, err := s.Desk.RevokeRole(ctx, deskRequest(r), name, u)
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	if !revoked {
		return replyf(ctx, r, "%s does not have %s.", mention(u), tgui.B(desk.RoleName(name)))
	}
	return replyf(ctx, r, "Revoked %s from %s.", tgui.B(desk.RoleName(name)), mention(u))
}

// roleAndSubject reads "<name...> <user_id>", or "<name...>" when replying.
func roleAndSubject(r *router.Request, u string) (string, desk.Subject, error) {
	if len(r.Args) == 0 {
		return "", desk.Subject{}, usage(u)
	}
	if r.ReplyToID != 0 {
		return strings.Join(r.Args, " "), desk.Subject{ID: r.ReplyToID, Name: r.ReplyToName}, nil
	}
	last := len(r.Args) - 1
	sub, ok, err := subject(r, last, u)
	if err != nil || !ok || last == 0 {
		return "", desk.Subject{}, usage(u)
	}
	return strings.Join(r.Args[:last], " "), sub, nil
}

func (s *Set) roleList(ctx context.Context, r *router.Request) error {
	roles, err := s.Desk.Roles(ctx, deskRequest(r))
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if len(roles) == 0 {
		return r.Reply(ctx, "No roles yet. Create one with /role add &lt;name&gt; &lt;rank&gt;.")
	}
	b := tgui.New().Title("🎖️", "Roles")
	for _, role := range roles {
		b.HTML(tgui.H(fmt.Sprintf("• %s (rank %d)", tgui.B(role.Name), role.Rank)))
	}
	return r.Reply(ctx, b.Build().Text)
}

// ---- settings ----

func (s *Set) setMinClaimRole(ctx context.Context, r *router.Request) error {
	role, err := s.Desk.SetMinClaimRole(ctx, deskRequest(r), strings.Join(r.Args, " "))
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	return replyf(ctx, r, "Minimum claim role set to %s.", tgui.B(role.Name))
}

func (s *Set) setManagerRole(ctx context.Context, r *router.Request) error {
	role, err := s.Desk.SetManagerRole(ctx, deskRequest(r), strings.Join(r.Args, " "))
	if err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	return replyf(ctx, r, "Manager role set to %s.", tgui.B(role.Name))
}

func (s *Set) setGeneral(ctx context.Context, r *router.Request) error {
	if err := s.Desk.SetAnnounceTarget(ctx, deskRequest(r)); err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	return r.Reply(ctx, "✅ Announcements will be posted here.")
}

func (s *Set) setLog(ctx context.Context, r *router.Request) error {
	if err := s.Desk.SetLogTarget(ctx, deskRequest(r)); err != nil {
		return fail(ctx, r, err, onlyAdmins)
	}
	return r.Reply(ctx, "✅ Log lines will be posted here.")
}

// ---- warnings ----

func (s *Set) warnAdd(ctx context.Context, r *router.Request) error {
	u, consumed, err := subject(r, 0, "/warn add (reply | <user_id>) <reason...>")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	rest := r.Args
	if consumed {
		rest = rest[1:]
	}
	reason := strings.Join(rest, " ")
	if _, err := s.Desk.Warn(ctx, deskRequest(r), u, reason); err != nil {
		return fail(ctx, r, err, "You don't have permission to warn.")
	}
	return replyf(ctx, r, "⚠️ Warned %s: %s", mention(u), tgui.Esc(reason))
}

func (s *Set) warnRemove(ctx context.Context, r *router.Request) error {
	u, _, err := subject(r, 0, "/warn remove (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	_, ok, err := s.Desk.Unwarn(ctx, deskRequest(r), u)
	if err != nil {
		return fail(ctx, r, err, "You don't have permission to remove warnings.")
	}
	if !ok {
		return r.Reply(ctx, "No warnings to remove.")
	}
	return replyf(ctx, r, "🧹 Removed latest warning for %s.", mention(u))
}

func (s *Set) warnList(ctx context.Context, r *router.Request) error {
	u, _, err := subject(r, 0, "/warn list (reply | <user_id>)")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	dr := deskRequest(r)
	list, err := s.Desk.Warnings(ctx, dr, u)
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if len(list) == 0 {
		return replyf(ctx, r, "%s has no warnings.", mention(u))
	}
	b := tgui.New().HTML(tgui.H("⚠️ Warnings for " + mention(u)))
	for _, w := range list {
		mod := tgui.Mention(s.Desk.Perms.DisplayName(ctx, dr.Workspace, w.ModeratorID), w.ModeratorID)
		b.HTML(tgui.H(fmt.Sprintf("• %s %s (by %s)", tgui.Code(w.CreatedAt.Format("2006-01-02")), tgui.Esc(w.Reason), mod)))
	}
	return r.Reply(ctx, b.Build().Text)
}
