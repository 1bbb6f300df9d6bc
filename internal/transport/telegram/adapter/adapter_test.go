package adapter

import (
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "jobdesk/internal/transport"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10, false); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text split: %q", got)
	}

	long := strings.Repeat("line of text\n", 20)
	chunks := splitText(long, 50, false)
	for _, c := range chunks {
		if n := len([]rune(c)); n > 50 {
			t.Fatalf("chunk too long (%d): %q", n, c)
		}
		if strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk keeps trailing newline: %q", c)
		}
	}
	if strings.Join(chunks, "\n") != strings.TrimRight(long, "\n") {
		t.Fatalf("chunks lost text")
	}

	html := strings.Repeat("a", 18) + "<b>bold</b>"
	for _, c := range splitText(html, 20, true) {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("split inside tag: %q", c)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		u    *tele.User
		want string
	}{
		{nil, ""},
		{&tele.User{FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{&tele.User{FirstName: "Ann"}, "Ann"},
		{&tele.User{Username: "ann"}, "@ann"},
	}
	for _, c := range cases {
		if got := displayName(c.u); got != c.want {
			t.Fatalf("displayName(%+v)=%q want %q", c.u, got, c.want)
		}
	}
}

func TestMessageOfSkipsTopicRootReply(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:       10,
		ThreadID: 5,
		Chat:     &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:   &tele.User{ID: 1, FirstName: "Mod"},
		Text:     "/warn add late",
		ReplyTo:  &tele.Message{ID: 5, Sender: &tele.User{ID: 2}},
	}
	got := messageOf(m)
	if !got.IsGroup || got.ReplyToFromID != 0 || got.FromName != "Mod" {
		t.Fatalf("message = %+v", got)
	}

	m.ReplyTo = &tele.Message{ID: 8, Sender: &tele.User{ID: 2, FirstName: "Wri"}}
	if got = messageOf(m); got.ReplyToFromID != 2 || got.ReplyToFromName != "Wri" {
		t.Fatalf("reply target = %+v", got)
	}
}

func TestMemberOf(t *testing.T) {
	t.Parallel()
	creator := memberOf(1, &tele.ChatMember{Role: tele.Creator, User: &tele.User{FirstName: "Own"}})
	if creator.Status != kit.StatusCreator || !creator.CanDeleteMessages || creator.DisplayName != "Own" {
		t.Fatalf("creator = %+v", creator)
	}
	admin := memberOf(2, &tele.ChatMember{Role: tele.Administrator, Rights: tele.Rights{CanDeleteMessages: true}})
	if admin.Status != kit.StatusAdministrator || !admin.CanDeleteMessages || admin.CanChangeInfo {
		t.Fatalf("admin = %+v", admin)
	}
	member := memberOf(3, &tele.ChatMember{Role: tele.Member, Rights: tele.Rights{CanDeleteMessages: true}})
	if member.CanDeleteMessages {
		t.Fatalf("plain member must not inherit rights: %+v", member)
	}
}

func TestIsNotModified(t *testing.T) {
	t.Parallel()
	if !isNotModified(errors.New("telegram: Bad Request: message is not modified: specified new message content")) {
		t.Fatalf("not-modified error not recognized")
	}
	if isNotModified(errors.New("telegram: message to edit not found")) || isNotModified(nil) {
		t.Fatalf("false positive")
	}
}
