package validation

import (
	"errors"
	"net/url"
	"strings"
)

// ValidateActionType ensures the registry scope is one of the known kinds.
func ValidateActionType(actionType string) error {
	switch actionType {
	case "group", "chat":
		return nil
	}
	return errors.New("type must be group or chat")
}

// ValidateChatID ensures a chat identifier is provided.
func ValidateChatID(chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("chat_id is required")
	}
	return nil
}

// ValidateURL ensures a non-empty valid absolute URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url cannot be empty")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("url must be valid")
	}
	return nil
}

// ValidateProxyTarget restricts image-proxy fetches to http(s) origins.
func ValidateProxyTarget(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.New("url must be valid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must use http or https")
	}
	if u.Host == "" {
		return errors.New("url must be absolute")
	}
	return nil
}
