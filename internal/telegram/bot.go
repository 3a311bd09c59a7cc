// Package telegram connects the relay to Telegram.
//
// Uses long polling -- no public URL or webhook needed. Every message in a
// chat the bot can see is recorded; the bot answers private chats always and
// group chats only when mentioned or replied to.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mwadsworth/palaver/internal/buildinfo"
	"github.com/mwadsworth/palaver/internal/chatml"
	"github.com/mwadsworth/palaver/internal/history"
	"github.com/mwadsworth/palaver/internal/llm"
	"github.com/mwadsworth/palaver/internal/prompt"
	"github.com/mwadsworth/palaver/internal/respond"
)

const placeholderText = "\U0001F914 thinking..."

const helpText = `I'm a conversational assistant backed by a language model.

Talk to me directly, or mention me in a group. I remember the recent conversation and can look things up when asked.

Commands:
/help - this message
/clear - forget this conversation's history
/version - show my build version
/qr <text> - render text as a QR code`

// Bot runs the Telegram side of the relay.
type Bot struct {
	api      *tgbotapi.BotAPI
	store    history.Store
	sessions *llm.Sessions
	orch     *respond.Orchestrator
	persona  string

	pollTimeout int
	logger      *slog.Logger
}

// NewBot authorizes against the Bot API and wires the relay behind it.
func NewBot(token string, pollTimeout int, persona string, store history.Store, sessions *llm.Sessions, orch *respond.Orchestrator, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	if persona == "" {
		persona = api.Self.UserName
	}

	return &Bot{
		api:         api,
		store:       store,
		sessions:    sessions,
		orch:        orch,
		persona:     persona,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// Run starts the long-polling loop. Blocks until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot listening")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				go b.handleMessage(ctx, update.Message)
			case update.EditedMessage != nil:
				b.handleEdited(update.EditedMessage)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	conv := conversationFor(msg)

	if msg.IsCommand() {
		b.handleCommand(conv, msg)
		return
	}

	if err := b.store.Append(messageRecord(conv, msg)); err != nil {
		b.logger.Error("recording message failed", "conversation", string(conv), "error", err)
	}

	if !b.shouldRespond(msg) {
		return
	}

	placeholder, err := b.sendReply(msg.Chat.ID, msg.MessageID, placeholderText)
	if err != nil {
		b.logger.Error("sending placeholder failed", "conversation", string(conv), "error", err)
		return
	}

	details := detailsFor(msg.Chat)
	b.orch.Respond(ctx, conv, details, func(e respond.Event) {
		switch e.Kind {
		case respond.EventUpdate:
			b.editMessage(msg.Chat.ID, placeholder.MessageID, e.Text, false)
		case respond.EventError:
			// Apologies go into history too.
			b.editMessage(msg.Chat.ID, placeholder.MessageID, e.Text, false)
			b.recordReply(conv, msg, placeholder, e.Text)
		case respond.EventSuccess:
			b.editMessage(msg.Chat.ID, placeholder.MessageID, e.Text, true)
			b.recordReply(conv, msg, placeholder, e.Text)
		}
	})
}

// recordReply appends the bot's final reply to history.
func (b *Bot) recordReply(conv history.ConversationID, msg *tgbotapi.Message, placeholder tgbotapi.Message, text string) {
	if err := b.store.Append(history.Message{
		ID:            placeholder.MessageID,
		Conversation:  conv,
		Sender:        b.persona,
		ReplyToID:     msg.MessageID,
		ReplyToSender: chatml.SenderLabel(userParts(msg.From)),
		Text:          text,
		Timestamp:     placeholder.Time(),
	}); err != nil {
		b.logger.Error("recording response failed", "conversation", string(conv), "error", err)
	}
}

func (b *Bot) handleEdited(msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	conv := conversationFor(msg)
	if err := b.store.UpdateText(conv, msg.MessageID, msg.Text); err != nil {
		b.logger.Error("recording edit failed", "conversation", string(conv), "error", err)
	}
}

func (b *Bot) handleCommand(conv history.ConversationID, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.sendReply(msg.Chat.ID, msg.MessageID, helpText)

	case "clear":
		if err := b.store.Clear(conv); err != nil {
			b.logger.Error("clearing history failed", "conversation", string(conv), "error", err)
			b.sendReply(msg.Chat.ID, msg.MessageID, "I couldn't clear the history, sorry.")
			return
		}
		b.sessions.Drop(conv)
		b.sendReply(msg.Chat.ID, msg.MessageID, "History cleared. We're starting fresh.")

	case "version":
		b.sendReply(msg.Chat.ID, msg.MessageID, buildinfo.String())

	case "qr":
		b.handleQR(msg)
	}
}

func (b *Bot) handleQR(msg *tgbotapi.Message) {
	payload := strings.TrimSpace(msg.CommandArguments())
	if payload == "" {
		b.sendReply(msg.Chat.ID, msg.MessageID, "Usage: /qr <text>")
		return
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 512)
	if err != nil {
		b.logger.Error("qr encoding failed", "error", err)
		b.sendReply(msg.Chat.ID, msg.MessageID, "I couldn't encode that as a QR code.")
		return
	}

	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "qr.png",
		Bytes: png,
	})
	photo.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("sending qr failed", "error", err)
	}
}

// shouldRespond gates responses: private chats always, groups only when the
// bot is mentioned or the message replies to it.
func (b *Bot) shouldRespond(msg *tgbotapi.Message) bool {
	if msg.Chat.IsPrivate() {
		return true
	}
	if strings.Contains(msg.Text, "@"+b.api.Self.UserName) {
		return true
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.UserName == b.api.Self.UserName {
		return true
	}
	return false
}

// sendReply sends a plain-text reply and returns the sent message.
func (b *Bot) sendReply(chatID int64, replyTo int, text string) (tgbotapi.Message, error) {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyToMessageID = replyTo
	sent, err := b.api.Send(reply)
	if err != nil {
		b.logger.Error("sending message failed", "chat", chatID, "error", err)
	}
	return sent, err
}

// editMessage replaces a sent message's text. Final responses are rendered
// as HTML; if Telegram rejects the markup the plain text goes out instead.
func (b *Bot) editMessage(chatID int64, messageID int, text string, rendered bool) {
	if rendered {
		if html, err := RenderHTML(text); err == nil {
			edit := tgbotapi.NewEditMessageText(chatID, messageID, html)
			edit.ParseMode = tgbotapi.ModeHTML
			if _, err := b.api.Send(edit); err == nil {
				return
			}
		}
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("editing message failed", "chat", chatID, "error", err)
	}
}

// conversationFor maps a platform message to its conversation key.
func conversationFor(msg *tgbotapi.Message) history.ConversationID {
	return history.ChatConversation(msg.Chat.ID)
}

// messageRecord converts an incoming platform message to a history record.
func messageRecord(conv history.ConversationID, msg *tgbotapi.Message) history.Message {
	rec := history.Message{
		ID:           msg.MessageID,
		Conversation: conv,
		Sender:       chatml.SenderLabel(userParts(msg.From)),
		Text:         msg.Text,
		Timestamp:    msg.Time(),
	}
	if msg.ReplyToMessage != nil {
		rec.ReplyToID = msg.ReplyToMessage.MessageID
		rec.ReplyToSender = chatml.SenderLabel(userParts(msg.ReplyToMessage.From))
	}
	return rec
}

// userParts splats a Telegram user into label components, tolerating nil.
func userParts(u *tgbotapi.User) (username, firstName, lastName string) {
	if u == nil {
		return "", "", ""
	}
	return u.UserName, u.FirstName, u.LastName
}

// detailsFor extracts the chat facts the prompt preamble describes.
func detailsFor(chat *tgbotapi.Chat) prompt.ChatDetails {
	return prompt.ChatDetails{
		Type:        chat.Type,
		Username:    chat.UserName,
		FirstName:   chat.FirstName,
		LastName:    chat.LastName,
		Bio:         chat.Bio,
		Title:       chat.Title,
		Description: chat.Description,
	}
}
