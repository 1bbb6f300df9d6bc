package tgui

import (
	"strings"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		scope, action, payload string
		want                   string
	}{
		{"job", "claim", "12", "job:claim:12"},
		{"board", "next", "", "board:next"},
		{" board ", "prev", "", "board:prev"},
	}
	for _, tc := range cases {
		got := Data(tc.scope, tc.action, tc.payload)
		if got != tc.want {
			t.Fatalf("Data() = %q, want %q", got, tc.want)
		}
		scope, action, payload, ok := ParseData("\f" + got)
		if !ok || scope != strings.TrimSpace(tc.scope) || action != tc.action || payload != tc.payload {
			t.Fatalf("ParseData(%q) = %q %q %q %v", got, scope, action, payload, ok)
		}
	}
	if _, _, _, ok := ParseData("garbage"); ok {
		t.Fatalf("ParseData(garbage) should fail")
	}
}

func TestBuilderEscapes(t *testing.T) {
	t.Parallel()

	m := New().Title("📋", "Jobs <open>").KV("Category", "a&b").Line("x < y").Build()
	want := "📋 <b>Jobs &lt;open&gt;</b>\n• <b>Category</b>: a&amp;b\nx &lt; y"
	if m.Text != want {
		t.Fatalf("Build().Text = %q, want %q", m.Text, want)
	}
	if m.Opt == nil || m.Opt.ParseMode != "HTML" || m.Opt.ReplyMarkupAdapter != nil {
		t.Fatalf("Build().Opt = %+v", m.Opt)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	if got := TruncRunes("héllo wörld", 5); got != "héll…" {
		t.Fatalf("TruncRunes() = %q", got)
	}
	if got := TruncRunes("short", 10); got != "short" {
		t.Fatalf("TruncRunes() = %q", got)
	}
}

func TestMentionFallback(t *testing.T) {
	t.Parallel()

	if got := Mention("", 42); got != `<a href="tg://user?id=42">user 42</a>` {
		t.Fatalf("Mention() = %q", got)
	}
}
