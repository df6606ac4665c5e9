package service

import (
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/support-chat/internal/model"
)

// MaxTextLength bounds a message body in bytes.
const MaxTextLength = 10000

func validateSend(req *model.SendMessageRequest) error {
	if !req.SenderRole.Valid() {
		return model.Validationf(`sender role must be either "user" or "agent"`)
	}
	if req.ConversationID == "" || req.SenderID == "" || req.Text == "" {
		return model.Validationf("conversation ID, sender ID, sender role, and text are required")
	}
	if !model.ValidID(req.ConversationID) || !model.ValidID(req.SenderID) {
		return model.Validationf("invalid conversation ID or sender ID")
	}
	return validateText(req.Text)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return model.Validationf("text cannot be blank")
	}
	if len(text) > MaxTextLength {
		return model.Validationf("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return model.Validationf("text must be valid UTF-8")
	}
	return nil
}
