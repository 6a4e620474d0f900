package schema

import "strings"

// NormalizeTabType validates a tab type, defaulting empty values to chat.
func NormalizeTabType(value string) (TabType, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TabTypeChat, nil
	}
	switch TabType(trimmed) {
	case TabTypeChat, TabTypeSettings, TabTypeAIApplications, TabTypeCodeAgent, TabTypeHTMLPreview:
		return TabType(trimmed), nil
	default:
		return "", ErrInvalidTabType
	}
}

// HasThread reports whether tabs of this type are bound to a thread.
func (t TabType) HasThread() bool {
	return t == TabTypeChat || t == TabTypeCodeAgent
}

// ValidateWindowID rejects ids the runtime never assigns.
func ValidateWindowID(id WindowID) error {
	if id <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// ValidateTabID rejects empty or padded tab ids.
func ValidateTabID(id TabID) error {
	raw := string(id)
	if raw == "" || strings.TrimSpace(raw) != raw {
		return ErrInvalidTab
	}
	return nil
}
