package infrastructure

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type publishedMessage struct {
	subject string
	data    []byte
}

// recordingPublisher captures messages instead of sending them
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) published() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordNATSMessagePublished(eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[eventType]++
}

func (r *countingRecorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[eventType]
}

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

// recordingSender captures embeds instead of posting them
type recordingSender struct {
	mu     sync.Mutex
	embeds []sentEmbed
}

func (s *recordingSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeds = append(s.embeds, sentEmbed{channelID: channelID, embed: embed})
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (s *recordingSender) sent() []sentEmbed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEmbed(nil), s.embeds...)
}
