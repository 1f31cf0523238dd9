package validate

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// MessageProvider renders validation messages per locale. Messages may use
// the {field} and {param} placeholders.
type MessageProvider struct {
	mu       sync.RWMutex
	messages map[string]map[string]string // locale -> key -> message
	locale   string
	fallback string
}

// NewMessageProvider creates an empty provider with locale and fallback "en".
func NewMessageProvider() *MessageProvider {
	return &MessageProvider{
		messages: make(map[string]map[string]string),
		locale:   "en",
		fallback: "en",
	}
}

// DefaultMessages returns a provider loaded with the English messages.
func DefaultMessages() *MessageProvider {
	m := NewMessageProvider()
	m.RegisterLocale("en", maps.Clone(defaultEnglishMessages))
	return m
}

// SetLocale sets the current locale.
func (m *MessageProvider) SetLocale(locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locale = locale
}

// RegisterLocale registers messages for a locale.
func (m *MessageProvider) RegisterLocale(locale string, messages map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[locale] = messages
}

// AddMessage adds or replaces one message in a locale.
func (m *MessageProvider) AddMessage(locale, key, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages[locale] == nil {
		m.messages[locale] = make(map[string]string)
	}
	m.messages[locale][key] = message
}

// Get renders the message for key in the current locale, falling back to the
// fallback locale and then to a generic message.
func (m *MessageProvider) Get(key, field, param string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, locale := range []string{m.locale, m.fallback} {
		if msg, ok := m.messages[locale][key]; ok {
			msg = strings.ReplaceAll(msg, "{field}", field)
			return strings.ReplaceAll(msg, "{param}", param)
		}
	}
	return fmt.Sprintf("%s validation failed for %s", key, field)
}

var defaultEnglishMessages = map[string]string{
	"required": "{field} is required",
	"email":    "{field} must be a valid email address",
	"min":      "{field} must be at least {param}",
	"max":      "{field} must be at most {param}",
	"len":      "{field} must be exactly {param}",
	"oneof":    "{field} must be one of [{param}]",
}
