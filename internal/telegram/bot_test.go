package telegram

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mwadsworth/palaver/internal/history"
)

func TestMessageRecord(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 17,
		From:      &tgbotapi.User{UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: 99, Type: "group"},
		Text:      "hello all",
		Date:      1700000000,
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 12,
			From:      &tgbotapi.User{FirstName: "Bob", LastName: "Tables"},
		},
	}

	rec := messageRecord(history.ChatConversation(99), msg)
	if rec.ID != 17 || rec.Sender != "alice" || rec.Text != "hello all" {
		t.Errorf("record = %+v", rec)
	}
	if rec.ReplyToID != 12 || rec.ReplyToSender != "Bob Tables" {
		t.Errorf("reply fields = %d %q", rec.ReplyToID, rec.ReplyToSender)
	}
	if rec.Timestamp.IsZero() {
		t.Error("timestamp not populated")
	}
}

func TestMessageRecordNoReply(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 3,
		From:      &tgbotapi.User{FirstName: "Carol"},
		Chat:      &tgbotapi.Chat{ID: 1, Type: "private"},
		Text:      "hi",
	}

	rec := messageRecord(history.ChatConversation(1), msg)
	if rec.Sender != "Carol" {
		t.Errorf("sender = %q", rec.Sender)
	}
	if rec.IsReply() {
		t.Error("non-reply message recorded as reply")
	}
}

func TestDetailsFor(t *testing.T) {
	private := detailsFor(&tgbotapi.Chat{
		Type: "private", UserName: "alice", FirstName: "Alice", Bio: "gopher",
	})
	if private.Type != "private" || private.Username != "alice" || private.Bio != "gopher" {
		t.Errorf("private details = %+v", private)
	}

	group := detailsFor(&tgbotapi.Chat{
		Type: "supergroup", Title: "gophers", Description: "a go chat",
	})
	if group.Type != "supergroup" || group.Title != "gophers" {
		t.Errorf("group details = %+v", group)
	}
}

func TestShouldRespond(t *testing.T) {
	bot := &Bot{api: &tgbotapi.BotAPI{Self: tgbotapi.User{UserName: "palaver_bot"}}}

	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want bool
	}{
		{
			name: "private chat",
			msg:  &tgbotapi.Message{Chat: &tgbotapi.Chat{Type: "private"}, Text: "hi"},
			want: true,
		},
		{
			name: "group without mention",
			msg:  &tgbotapi.Message{Chat: &tgbotapi.Chat{Type: "group"}, Text: "morning everyone"},
			want: false,
		},
		{
			name: "group with mention",
			msg:  &tgbotapi.Message{Chat: &tgbotapi.Chat{Type: "group"}, Text: "@palaver_bot what time is it?"},
			want: true,
		},
		{
			name: "group reply to bot",
			msg: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{Type: "group"},
				Text: "tell me more",
				ReplyToMessage: &tgbotapi.Message{
					From: &tgbotapi.User{UserName: "palaver_bot"},
				},
			},
			want: true,
		},
		{
			name: "group reply to someone else",
			msg: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{Type: "group"},
				Text: "agreed",
				ReplyToMessage: &tgbotapi.Message{
					From: &tgbotapi.User{UserName: "alice"},
				},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bot.shouldRespond(tt.msg); got != tt.want {
				t.Errorf("shouldRespond = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		forbidden []string
	}{
		{
			name: "emphasis",
			in:   "this is **important** and *subtle*",
			want: []string{"<strong>important</strong>", "<em>subtle</em>"},
		},
		{
			name: "code block keeps language",
			in:   "```go\nx := 1\n```",
			want: []string{`<pre><code class="language-go">`, "x := 1"},
		},
		{
			name:      "heading becomes bold",
			in:        "# Title\n\nbody",
			want:      []string{"<b>Title</b>", "body"},
			forbidden: []string{"<h1>"},
		},
		{
			name:      "list becomes bullets",
			in:        "- first\n- second",
			want:      []string{"\u2022 first", "\u2022 second"},
			forbidden: []string{"<li>", "<ul>"},
		},
		{
			name:      "paragraphs drop p tags",
			in:        "one\n\ntwo",
			want:      []string{"one", "two"},
			forbidden: []string{"<p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderHTML(tt.in)
			if err != nil {
				t.Fatalf("RenderHTML: %v", err)
			}
			for _, fragment := range tt.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("output missing %q:\n%s", fragment, got)
				}
			}
			for _, fragment := range tt.forbidden {
				if strings.Contains(got, fragment) {
					t.Errorf("output still contains %q:\n%s", fragment, got)
				}
			}
		})
	}
}
