// Package telegram is the chat transport: it receives commands over long
// polling, hands them to the dispatch gateway, and delivers replies and
// background notifications. All policy (allow-list, elevation, rate
// limits) lives behind the gateway; this package only moves messages.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/teleops/internal/bus"
	"github.com/nextlevelbuilder/teleops/internal/gateway"
)

// Telegram rejects messages over this many characters.
const maxMessageLen = 4096

// Buffered updates per chat. Overflow drops the update; the user can
// resend.
const chatQueueSize = 16

// Channel connects the Telegram Bot API to the gateway.
type Channel struct {
	bot        *telego.Bot
	dispatcher *gateway.Dispatcher
	bus        *bus.Bus
	allowed    gateway.AllowChecker

	mu     sync.Mutex
	queues map[int64]chan telego.Update
}

// New creates the channel. token must be a valid bot token; the Bot API is
// not contacted until Run.
func New(token string, dispatcher *gateway.Dispatcher, b *bus.Bus, allowed gateway.AllowChecker) (*Channel, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Channel{
		bot:        bot,
		dispatcher: dispatcher,
		bus:        b,
		allowed:    allowed,
		queues:     make(map[int64]chan telego.Update),
	}, nil
}

// Run starts long polling and the notification consumer, then blocks until
// ctx is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("telegram: start long polling: %w", err)
	}

	if err := c.syncMenuCommands(ctx); err != nil {
		slog.Warn("telegram: failed to sync menu commands", "error", err)
	}

	go c.consumeNotifications(ctx)

	slog.Info("telegram channel started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram channel stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.dispatchUpdate(ctx, update)
		}
	}
}

// dispatchUpdate hands the update to its chat's worker goroutine. Each
// chat gets its own queue, so one chat's slow command never delays another
// chat's dispatches, while updates within a chat keep their arrival order.
func (c *Channel) dispatchUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Text[0] != '/' {
		return
	}
	chatID := msg.Chat.ID

	c.mu.Lock()
	q, ok := c.queues[chatID]
	if !ok {
		q = make(chan telego.Update, chatQueueSize)
		c.queues[chatID] = q
		go c.chatWorker(ctx, q)
	}
	c.mu.Unlock()

	select {
	case q <- update:
	default:
		slog.Warn("telegram: chat queue full, dropping update", "chat_id", chatID)
	}
}

func (c *Channel) chatWorker(ctx context.Context, q <-chan telego.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-q:
			c.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate processes one inbound update. Only plain text messages that
// look like commands are considered; everything else is ignored silently.
func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Text[0] != '/' {
		return
	}
	chatID := msg.Chat.ID

	name, rawArgs := splitCommand(msg.Text)
	if name == "" {
		return
	}

	out, known := c.dispatcher.Dispatch(ctx, chatID, name, rawArgs)
	if !known {
		// Unknown commands get a hint, but only for chats that could use
		// the bot at all. Strangers learn nothing.
		if c.allowed(chatID) {
			c.reply(ctx, chatID, fmt.Sprintf("Unknown command /%s. Try /help.", name))
		}
		return
	}
	if out.Reply != "" {
		c.reply(ctx, chatID, out.Reply)
	}
}

// consumeNotifications delivers background notifications from the bus.
func (c *Channel) consumeNotifications(ctx context.Context) {
	for {
		n, ok := c.bus.Consume(ctx)
		if !ok {
			return
		}
		if err := c.send(ctx, n.ChatID, n.Content); err != nil {
			slog.Warn("telegram: notification delivery failed",
				"feed", n.Feed, "chat_id", n.ChatID, "error", err)
		}
	}
}

func (c *Channel) reply(ctx context.Context, chatID int64, text string) {
	if err := c.send(ctx, chatID, text); err != nil {
		slog.Warn("telegram: reply failed", "chat_id", chatID, "error", err)
	}
}

// send delivers text, splitting it into multiple messages when it exceeds
// the Bot API length cap.
func (c *Channel) send(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, maxMessageLen) {
		if err := c.sendOne(ctx, chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) sendOne(ctx context.Context, chatID int64, text string) error {
	msg := tu.Message(tu.ID(chatID), text)
	msg.ParseMode = telego.ModeHTML
	_, err := c.bot.SendMessage(ctx, msg)
	if err == nil {
		return nil
	}
	// HTML from external content can be malformed; fall back to plain text
	// rather than dropping the message.
	plain := tu.Message(tu.ID(chatID), text)
	if _, perr := c.bot.SendMessage(ctx, plain); perr != nil {
		return err
	}
	return nil
}

// syncMenuCommands publishes the registry to Telegram's command menu.
func (c *Channel) syncMenuCommands(ctx context.Context) error {
	var menu []telego.BotCommand
	for _, cmd := range c.dispatcher.Registry().All() {
		menu = append(menu, telego.BotCommand{
			Command:     cmd.Name,
			Description: cmd.Description,
		})
		if len(menu) == 100 {
			break
		}
	}
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: menu})
}

// splitMessage cuts text into chunks of at most limit bytes, breaking at
// newline boundaries where possible. A single line longer than limit is
// hard-cut.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			parts = append(parts, b.String())
			b.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			parts = append(parts, line[:limit])
			line = line[limit:]
		}
		if b.Len() > 0 && b.Len()+1+len(line) > limit {
			flush()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	flush()
	return parts
}

// splitCommand parses "/cmd@bot args..." into the command name (without
// slash or bot mention) and the raw argument string.
func splitCommand(text string) (name, rawArgs string) {
	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}
