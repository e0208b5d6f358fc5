package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Ananth-NQI/gastos-backend/internal/services"
)

// MessageProcessor turns one inbound message into replies
type MessageProcessor interface {
	Handle(ctx context.Context, msg services.InboundMessage) ([]string, error)
}

// WhatsAppHandler handles WhatsApp webhook requests for both channels
type WhatsAppHandler struct {
	processor   MessageProcessor
	sender      services.Sender
	verifyToken string
	logger      *slog.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(processor MessageProcessor, sender services.Sender, verifyToken string) *WhatsAppHandler {
	return &WhatsAppHandler{
		processor:   processor,
		sender:      sender,
		verifyToken: verifyToken,
		logger:      slog.With("component", "webhook"),
	}
}

// TwilioWebhookPayload represents the incoming webhook from Twilio
type TwilioWebhookPayload struct {
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	From        string `form:"From"`
	To          string `form:"To"`
	Body        string `form:"Body"`
	ButtonText  string `form:"ButtonText"`
	NumMedia    string `form:"NumMedia"`
	ProfileName string `form:"ProfileName"`
}

// HandleTwilioWebhook processes incoming WhatsApp messages from Twilio.
// Once authenticated the webhook always answers 200 so Twilio does not
// redeliver a message that already failed inside the bot.
func (h *WhatsAppHandler) HandleTwilioWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("failed to parse Twilio webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).SendString("Bad Request")
	}

	text := payload.Body
	if text == "" {
		text = payload.ButtonText
	}

	h.logger.Info("twilio message received",
		"message_id", payload.MessageSid,
		"from", payload.From,
		"profile", payload.ProfileName)

	h.process(c.UserContext(), services.InboundMessage{
		MessageID: payload.MessageSid,
		UserID:    services.UserIDFromAddress(payload.From),
		Text:      text,
	})

	// Twilio expects an empty TwiML document or a 200
	c.Set(fiber.HeaderContentType, fiber.MIMETextXML)
	return c.SendString("<Response></Response>")
}

// VerifyMetaWebhook answers the Cloud API subscription handshake
func (h *WhatsAppHandler) VerifyMetaWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		return c.SendString(c.Query("hub.challenge"))
	}
	h.logger.Warn("meta webhook verification rejected", "mode", mode)
	return c.Status(fiber.StatusForbidden).SendString("Forbidden")
}

// MetaWebhookPayload is the Cloud API notification envelope
type MetaWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []MetaMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// MetaMessage is one inbound Cloud API message
type MetaMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		ButtonReply *metaReply `json:"button_reply"`
		ListReply   *metaReply `json:"list_reply"`
	} `json:"interactive"`
}

type metaReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Content returns the user-visible text of the message
func (m MetaMessage) Content() string {
	switch {
	case m.Text.Body != "":
		return m.Text.Body
	case m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.Title
	case m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.Title
	}
	return ""
}

// HandleMetaWebhook processes Cloud API notifications. Status updates and
// other notifications without messages are acknowledged and ignored.
func (h *WhatsAppHandler) HandleMetaWebhook(c *fiber.Ctx) error {
	var payload MetaWebhookPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		h.logger.Warn("failed to parse Meta webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.logger.Info("meta message received", "message_id", msg.ID, "from", msg.From, "type", msg.Type)
				h.process(c.UserContext(), services.InboundMessage{
					MessageID: msg.ID,
					UserID:    services.UserIDFromAddress(msg.From),
					Text:      msg.Content(),
				})
			}
		}
	}

	return c.JSON(fiber.Map{"ok": true})
}

// process runs one turn and sends its replies in order
func (h *WhatsAppHandler) process(ctx context.Context, msg services.InboundMessage) {
	replies, err := h.processor.Handle(ctx, msg)
	if err != nil {
		h.logger.Error("failed to process message", "message_id", msg.MessageID, "user", msg.UserID, "error", err)
		return
	}

	for _, reply := range replies {
		if err := h.sender.SendText(ctx, msg.UserID, reply); err != nil {
			h.logger.Error("failed to send reply", "user", msg.UserID, "error", err)
			return
		}
	}
}

// TestWebhookPayload for testing without a WhatsApp channel
type TestWebhookPayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Message   string `json:"message"`
}

// HandleTestWebhook runs a turn and returns the replies in the response
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}
	if payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required",
		})
	}
	if payload.MessageID == "" {
		payload.MessageID = "test-" + uuid.NewString()
	}

	replies, err := h.processor.Handle(c.UserContext(), services.InboundMessage{
		MessageID: payload.MessageID,
		UserID:    services.UserIDFromAddress(payload.From),
		Text:      payload.Message,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if replies == nil {
		replies = []string{}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message_id": payload.MessageID,
		"responses":  replies,
	})
}
