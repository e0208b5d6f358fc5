package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioService sends WhatsApp messages through the Twilio REST API
type TwilioService struct {
	client *twilio.RestClient
	from   string // Twilio WhatsApp number, "whatsapp:+14155238886"
	logger *slog.Logger
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(accountSid, authToken, from string) (*TwilioService, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioService{
		client: client,
		from:   WhatsAppAddress(from),
		logger: slog.With("component", "sender", "channel", "twilio"),
	}, nil
}

// SendText sends a WhatsApp message via Twilio
func (t *TwilioService) SendText(_ context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(WhatsAppAddress(to))
	params.SetBody(truncate(body, MaxMessageRunes))

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		t.logger.Error("failed to send WhatsApp message", "to", to, "error", err)
		return fmt.Errorf("twilio create message: %w", err)
	}

	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	if resp.Sid != nil {
		t.logger.Debug("WhatsApp message sent", "sid", *resp.Sid)
	}
	return nil
}

// WhatsAppAddress prefixes a phone number with the Twilio WhatsApp scheme
func WhatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}

// UserIDFromAddress strips the channel scheme and the leading plus sign so
// both channels key sessions by the bare number
func UserIDFromAddress(address string) string {
	return strings.TrimPrefix(strings.TrimPrefix(address, "whatsapp:"), "+")
}
