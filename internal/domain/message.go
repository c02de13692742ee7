package domain

import (
	"encoding/json"
	"time"
)

// Address type tags. Telegram identifies users two ways: numeric ids
// (what the API wants) and human-readable usernames (what humans want).
const (
	AddrTelegramID       = "telegram_id"
	AddrTelegramUsername = "telegram_username"
)

// Transport metadata type tags for query-style messages. A plain text
// message carries no type.
const (
	TypeCallbackQuery = "callback_query"
	TypeInlineQuery   = "inline_query"
)

// NormalizedMessage is the canonical unit exchanged over the message bus.
// Inbound, it is built from a Telegram update; outbound, it is produced
// by a bus application and mapped onto exactly one Bot API call.
type NormalizedMessage struct {
	MessageID     string        `json:"message_id"`
	TransportName string        `json:"transport_name,omitempty"`
	TransportType string        `json:"transport_type,omitempty"`
	Content       string        `json:"content"`
	FromAddr      string        `json:"from_addr"`
	FromType      string        `json:"from_addr_type,omitempty"`
	ToAddr        string        `json:"to_addr"`
	ToType        string        `json:"to_addr_type,omitempty"`
	InReplyTo     string        `json:"in_reply_to,omitempty"`
	Transport     TransportMeta `json:"transport_metadata"`
	Helper        HelperMeta    `json:"helper_metadata"`
	Timestamp     time.Time     `json:"timestamp,omitzero"`
}

// TransportMeta carries protocol-specific correlation data: the upstream
// message id, the query being replied to, and query ids for answers.
type TransportMeta struct {
	Type             string        `json:"type,omitempty"`
	Reply            string        `json:"reply,omitempty"`
	TelegramMsgID    int64         `json:"telegram_msg_id,omitempty"`
	TelegramUsername string        `json:"telegram_username,omitempty"`
	Details          *QueryDetails `json:"details,omitempty"`
}

// QueryDetails correlates a reply with the query that caused it.
type QueryDetails struct {
	CallbackQueryID string `json:"callback_query_id,omitempty"`
	InlineQueryID   string `json:"inline_query_id,omitempty"`
}

// HelperMeta carries presentation intent from the producing application:
// attachments, inline results, and formatting options. Options and
// Details are passed through to the Bot API without validation.
type HelperMeta struct {
	TelegramUsername string         `json:"telegram_username,omitempty"`
	Attachment       *Attachment    `json:"attachment,omitempty"`
	Results          []any          `json:"results,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	Options          map[string]any `json:"options,omitempty"`
}

// Attachment describes embedded media. Kind selects the Bot API send
// endpoint; Fields are the remaining endpoint parameters, carried
// opaquely. On the wire it is a single flat object with a "type" key.
type Attachment struct {
	Kind   string
	Fields map[string]any
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	kind, _ := m["type"].(string)
	delete(m, "type")
	a.Kind = kind
	a.Fields = m
	return nil
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		m[k] = v
	}
	m["type"] = a.Kind
	return json.Marshal(m)
}
