package telegram

import (
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"tgbridge/internal/domain"
)

// UpdateKind is the inbound update sum type: what a webhook delivery
// turned out to be, decided once by classification.
type UpdateKind int

const (
	// UpdateText is a replyable text message.
	UpdateText UpdateKind = iota
	// UpdateCallbackQuery is a selection on an inline keyboard.
	UpdateCallbackQuery
	// UpdateInlineQuery is a query typed at the bot from a compose field.
	UpdateInlineQuery
	// UpdateUnsupported is anything the bridge does not forward.
	UpdateUnsupported
)

// ClassifiedUpdate is the result of normalizing one update. Message is
// ready for publishing unless Kind is UpdateUnsupported, in which case
// Ignore explains why.
type ClassifiedUpdate struct {
	Kind    UpdateKind
	Message domain.NormalizedMessage
	Ignore  string
}

// Translator classifies raw updates and normalizes them into bus
// messages addressed to the bot.
type Translator struct {
	transportName string
	botUsername   string
	logger        *slog.Logger
}

func NewTranslator(transportName, botUsername string, logger *slog.Logger) *Translator {
	return &Translator{
		transportName: transportName,
		botUsername:   botUsername,
		logger:        logger,
	}
}

// Classify decides what kind of update this is and translates it.
// First match wins: callback query, inline query, text message.
func (t *Translator) Classify(update tgbotapi.Update) ClassifiedUpdate {
	switch {
	case update.CallbackQuery != nil:
		return t.classifyCallbackQuery(update.CallbackQuery)
	case update.InlineQuery != nil:
		return t.classifyInlineQuery(update.InlineQuery)
	case update.Message == nil:
		return ClassifiedUpdate{Kind: UpdateUnsupported, Ignore: "no message object"}
	case update.Message.Text == "":
		return ClassifiedUpdate{Kind: UpdateUnsupported, Ignore: "non-text message"}
	default:
		return t.classifyTextMessage(update.Message)
	}
}

// classifyTextMessage translates a text message. Messages sent over
// channels do not carry a 'from' field; those fall back to the
// channel's chat identity, which is the only address they have.
func (t *Translator) classifyTextMessage(msg *tgbotapi.Message) ClassifiedUpdate {
	var fromID int64
	var username string
	switch {
	case msg.From != nil:
		fromID = msg.From.ID
		username = msg.From.UserName
	case msg.Chat != nil:
		fromID = msg.Chat.ID
		username = msg.Chat.UserName
	default:
		return ClassifiedUpdate{Kind: UpdateUnsupported, Ignore: "message has no sender identity"}
	}

	t.logInbound("message", fromID, username)

	return ClassifiedUpdate{
		Kind: UpdateText,
		Message: domain.NormalizedMessage{
			MessageID:     uuid.NewString(),
			TransportName: t.transportName,
			TransportType: "telegram",
			Content:       msg.Text,
			FromAddr:      strconv.FormatInt(fromID, 10),
			FromType:      domain.AddrTelegramID,
			ToAddr:        t.botUsername,
			ToType:        domain.AddrTelegramUsername,
			Transport: domain.TransportMeta{
				TelegramMsgID:    int64(msg.MessageID),
				TelegramUsername: username,
			},
			Helper: domain.HelperMeta{
				TelegramUsername: username,
			},
			Timestamp: time.Unix(int64(msg.Date), 0),
		},
	}
}

// classifyCallbackQuery translates a callback query, fired when a user
// makes a selection on an inline keyboard.
func (t *Translator) classifyCallbackQuery(cq *tgbotapi.CallbackQuery) ClassifiedUpdate {
	if cq.From == nil {
		return ClassifiedUpdate{Kind: UpdateUnsupported, Ignore: "callback query has no sender"}
	}

	t.logInbound("callback query", cq.From.ID, cq.From.UserName)

	return ClassifiedUpdate{
		Kind: UpdateCallbackQuery,
		Message: domain.NormalizedMessage{
			MessageID:     uuid.NewString(),
			TransportName: t.transportName,
			TransportType: "telegram",
			FromAddr:      strconv.FormatInt(cq.From.ID, 10),
			FromType:      domain.AddrTelegramID,
			ToAddr:        t.botUsername,
			ToType:        domain.AddrTelegramUsername,
			Transport: domain.TransportMeta{
				Type:             domain.TypeCallbackQuery,
				Reply:            cq.Data,
				TelegramUsername: cq.From.UserName,
				Details:          &domain.QueryDetails{CallbackQueryID: cq.ID},
			},
			Helper: domain.HelperMeta{
				TelegramUsername: cq.From.UserName,
			},
			Timestamp: time.Now(),
		},
	}
}

// classifyInlineQuery translates an inline query. The reply field is the
// query text itself, and the inline query's own id is recorded for the
// eventual answerInlineQuery call.
func (t *Translator) classifyInlineQuery(iq *tgbotapi.InlineQuery) ClassifiedUpdate {
	if iq.From == nil {
		return ClassifiedUpdate{Kind: UpdateUnsupported, Ignore: "inline query has no sender"}
	}

	t.logInbound("inline query", iq.From.ID, iq.From.UserName)

	return ClassifiedUpdate{
		Kind: UpdateInlineQuery,
		Message: domain.NormalizedMessage{
			MessageID:     uuid.NewString(),
			TransportName: t.transportName,
			TransportType: "telegram",
			FromAddr:      strconv.FormatInt(iq.From.ID, 10),
			FromType:      domain.AddrTelegramID,
			ToAddr:        t.botUsername,
			ToType:        domain.AddrTelegramUsername,
			Transport: domain.TransportMeta{
				Type:             domain.TypeInlineQuery,
				Reply:            iq.Query,
				TelegramUsername: iq.From.UserName,
				Details:          &domain.QueryDetails{InlineQueryID: iq.ID},
			},
			Helper: domain.HelperMeta{
				TelegramUsername: iq.From.UserName,
			},
			Timestamp: time.Now(),
		},
	}
}

// logInbound records the receipt of an update, preferring the username
// when the user has one.
func (t *Translator) logInbound(updateType string, id int64, username string) {
	from := strconv.FormatInt(id, 10)
	if username != "" {
		from = username
	}
	t.logger.Info("inbound update",
		"type", updateType,
		"from", from,
		"to", t.botUsername,
	)
}
