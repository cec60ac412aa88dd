package discord

import (
	"fmt"
	"strings"
)

const customIDPrefix = "fn"

// ButtonRef is what a rendered button carries back to the bot.
type ButtonRef struct {
	FunnelID string
	From     string
	To       string
}

// CustomID encodes the reference as fn|<funnel>|<from>|<to>.
func (b ButtonRef) CustomID() string {
	return strings.Join([]string{customIDPrefix, b.FunnelID, b.From, b.To}, "|")
}

// ParseCustomID decodes a button custom ID. To may be empty for a plain
// continue button.
func ParseCustomID(id string) (ButtonRef, error) {
	parts := strings.Split(id, "|")
	if len(parts) != 4 || parts[0] != customIDPrefix {
		return ButtonRef{}, fmt.Errorf("not a funnel button: %q", id)
	}
	if parts[1] == "" || parts[2] == "" {
		return ButtonRef{}, fmt.Errorf("incomplete funnel button: %q", id)
	}
	return ButtonRef{FunnelID: parts[1], From: parts[2], To: parts[3]}, nil
}
