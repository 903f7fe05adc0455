package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"roulette/domain/entities"
	"roulette/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Discord color constants
const (
	ColorRed     = 0xED4245
	ColorBlack   = 0x23272A
	ColorGreen   = 0x57F287
	ColorNeutral = 0x5865F2
	ColorWarning = 0xFEE75C
)

// EmbedSender posts embeds to a channel. *discordgo.Session satisfies it.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordResultsFeed posts settled and voided rounds to a Discord channel
type DiscordResultsFeed struct {
	sender    EmbedSender
	session   *discordgo.Session
	channelID string
}

// NewDiscordResultsFeed opens a bot session for the results channel
func NewDiscordResultsFeed(token, channelID string) (*DiscordResultsFeed, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord token and channel id are required")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening Discord connection: %w", err)
	}

	log.WithField("channelID", channelID).Info("Discord results feed connected")
	return &DiscordResultsFeed{sender: dg, session: dg, channelID: channelID}, nil
}

// newDiscordResultsFeedWithSender builds a feed around any sender
func newDiscordResultsFeedWithSender(sender EmbedSender, channelID string) *DiscordResultsFeed {
	return &DiscordResultsFeed{sender: sender, channelID: channelID}
}

// SubscribeToEvents posts every completed or voided round
func (f *DiscordResultsFeed) SubscribeToEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypeRoundCompleted, f.handleEvent)
	bus.Subscribe(events.EventTypeRoundVoided, f.handleEvent)
}

func (f *DiscordResultsFeed) handleEvent(ctx context.Context, event events.Event) {
	var embed *discordgo.MessageEmbed
	switch e := event.(type) {
	case events.RoundCompletedEvent:
		embed = buildRoundCompletedEmbed(e)
	case events.RoundVoidedEvent:
		embed = buildRoundVoidedEmbed(e)
	default:
		return
	}

	if _, err := f.sender.ChannelMessageSendEmbed(f.channelID, embed); err != nil {
		log.WithFields(log.Fields{
			"channelID": f.channelID,
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to post round result to Discord")
	}
}

// Close closes the Discord session
func (f *DiscordResultsFeed) Close() error {
	if f.session == nil {
		return nil
	}
	return f.session.Close()
}

func buildRoundCompletedEmbed(e events.RoundCompletedEvent) *discordgo.MessageEmbed {
	net := e.TotalStaked - e.TotalPayout
	landed := fmt.Sprintf("%d %s", e.Outcome.Number, strings.ToUpper(string(e.Outcome.Category)))

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Round #%d", e.RoundID),
		Description: fmt.Sprintf("The wheel landed on **%s**", landed),
		Color:       categoryColor(e.Outcome.Category),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Wagers",
				Value:  fmt.Sprintf("%d (%d won)", e.WagerCount, e.WinnerCount),
				Inline: true,
			},
			{
				Name:   "Staked",
				Value:  formatAmount(e.TotalStaked),
				Inline: true,
			},
			{
				Name:   "Paid out",
				Value:  formatAmount(e.TotalPayout),
				Inline: true,
			},
			{
				Name:   "House",
				Value:  formatSigned(net),
				Inline: true,
			},
		},
	}
}

func buildRoundVoidedEmbed(e events.RoundVoidedEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Round #%d voided", e.RoundID),
		Description: fmt.Sprintf("Refunded %d wagers totalling **%s**", e.RefundedCount, formatAmount(e.RefundedTotal)),
		Color:       ColorWarning,
	}
}

func categoryColor(category entities.Category) int {
	switch category {
	case entities.CategoryRed:
		return ColorRed
	case entities.CategoryBlack:
		return ColorBlack
	case entities.CategoryGreen:
		return ColorGreen
	default:
		return ColorNeutral
	}
}

// formatAmount formats an amount with thousand separators
func formatAmount(amount int64) string {
	if amount < 0 {
		return "-" + formatAmount(-amount)
	}

	str := fmt.Sprintf("%d", amount)
	n := len(str)
	if n <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return result.String()
}

func formatSigned(amount int64) string {
	if amount > 0 {
		return "+" + formatAmount(amount)
	}
	return formatAmount(amount)
}
