package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultGraphBaseURL is the Meta Graph API host
const DefaultGraphBaseURL = "https://graph.facebook.com"

// MetaSender sends WhatsApp messages through the Meta Cloud API
type MetaSender struct {
	baseURL       string
	version       string
	phoneNumberID string
	token         string
	timeout       time.Duration
	logger        *slog.Logger
}

// NewMetaSender creates a Cloud API sender
func NewMetaSender(token, phoneNumberID, version string) (*MetaSender, error) {
	if token == "" || phoneNumberID == "" {
		return nil, fmt.Errorf("missing WhatsApp Cloud API credentials")
	}
	if version == "" {
		version = "v20.0"
	}
	return &MetaSender{
		baseURL:       DefaultGraphBaseURL,
		version:       version,
		phoneNumberID: phoneNumberID,
		token:         token,
		timeout:       10 * time.Second,
		logger:        slog.With("component", "sender", "channel", "meta"),
	}, nil
}

// WithBaseURL points the sender at another Graph host
func (m *MetaSender) WithBaseURL(baseURL string) *MetaSender {
	m.baseURL = baseURL
	return m
}

type metaTextMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             metaTextBody `json:"text"`
}

type metaTextBody struct {
	Body string `json:"body"`
}

func (m *MetaSender) endpoint() string {
	return fmt.Sprintf("%s/%s/%s/messages", m.baseURL, m.version, m.phoneNumberID)
}

func newMetaTextMessage(to, body string) metaTextMessage {
	return metaTextMessage{
		MessagingProduct: "whatsapp",
		To:               UserIDFromAddress(to),
		Type:             "text",
		Text:             metaTextBody{Body: truncate(body, MaxMessageRunes)},
	}
}

// SendText posts a text message to the Graph API
func (m *MetaSender) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(newMetaTextMessage(to, body))
	if err != nil {
		return fmt.Errorf("encode graph message: %w", err)
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(m.endpoint())
	agent.Set(fiber.HeaderAuthorization, "Bearer "+m.token)
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(payload)
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("graph request: %w", err)
	}

	status, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		m.logger.Error("graph request failed", "to", to, "error", errs[0])
		return fmt.Errorf("graph request: %w", errs[0])
	}
	if status >= fiber.StatusBadRequest {
		m.logger.Error("graph request rejected", "to", to, "status", status, "body", preview(string(resp)))
		return fmt.Errorf("graph request: status %d", status)
	}
	return nil
}
