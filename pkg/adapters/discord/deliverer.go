package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/bwmarrin/discordgo"
)

// Discord allows at most five buttons per action row and five rows per message.
const (
	buttonsPerRow = 5
	maxRows       = 5
)

// ErrUnknownChannel is returned when the visitor never wrote to the bot.
var ErrUnknownChannel = errors.New("no discord channel for visitor")

// Sender is the subset of *discordgo.Session used to post messages.
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Deliverer renders funnel actions as Discord messages.
type Deliverer struct {
	sender   Sender
	registry *Registry
}

func NewDeliverer(sender Sender, registry *Registry) *Deliverer {
	return &Deliverer{sender: sender, registry: registry}
}

// Deliver implements ports.Deliverer.
func (d *Deliverer) Deliver(_ context.Context, visitorID, funnelID string, actions []domain.Action) error {
	channelID, ok := d.registry.Channel(visitorID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, visitorID)
	}
	for _, action := range actions {
		msg := Render(funnelID, action)
		if msg == nil {
			continue
		}
		if _, err := d.sender.ChannelMessageSendComplex(channelID, msg); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		d.registry.SetNode(visitorID, funnelID, action.NodeID)
	}
	return nil
}

// Render converts an action to a Discord message. It returns nil for actions
// with nothing to show.
func Render(funnelID string, action domain.Action) *discordgo.MessageSend {
	switch action.Kind {
	case domain.ActionSendText:
		if action.Text == "" {
			return nil
		}
		return &discordgo.MessageSend{Content: action.Text}

	case domain.ActionSendChoices:
		var buttons []discordgo.MessageComponent
		for _, c := range action.Choices {
			buttons = append(buttons, discordgo.Button{
				Label:    c.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: ButtonRef{FunnelID: funnelID, From: action.NodeID, To: c.Target}.CustomID(),
			})
		}
		return &discordgo.MessageSend{Content: action.Text, Components: rows(buttons)}

	case domain.ActionSendPaymentPrompt:
		msg := &discordgo.MessageSend{Content: action.Text}
		if action.Payment != nil && action.Payment.ConfirmationURL != "" {
			msg.Components = rows([]discordgo.MessageComponent{discordgo.Button{
				Label: "Pay",
				Style: discordgo.LinkButton,
				URL:   action.Payment.ConfirmationURL,
			}})
		}
		return msg
	}
	return nil
}

func rows(buttons []discordgo.MessageComponent) []discordgo.MessageComponent {
	var out []discordgo.MessageComponent
	for len(buttons) > 0 && len(out) < maxRows {
		n := min(buttonsPerRow, len(buttons))
		out = append(out, discordgo.ActionsRow{Components: buttons[:n]})
		buttons = buttons[n:]
	}
	return out
}
