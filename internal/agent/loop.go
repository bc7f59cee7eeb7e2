// Package agent implements the question-answering loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/LoreClaw/LoreClaw/internal/bus"
	"github.com/LoreClaw/LoreClaw/internal/knowledge"
	"github.com/LoreClaw/LoreClaw/internal/provider"
	"github.com/LoreClaw/LoreClaw/internal/scheduler"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

// Fixed replies for failure paths.
const (
	replyProviderError = "Sorry, there was an error processing your request."
	replyInternalError = "Sorry, something went wrong. Please try again later."
)

const systemPromptFormat = `You are a helpful assistant. Answer the user's question using the knowledge provided below. If the answer is not found in the knowledge, reply: "I'm not sure about that, please visit our website for more details."

--- BEGIN KNOWLEDGE BASE ---
%s
--- END KNOWLEDGE BASE ---`

// LoopOptions contains configuration for the agent loop.
type LoopOptions struct {
	Bus           *bus.MessageBus
	Provider      provider.LLMProvider
	Store         *knowledge.Store
	History       *timeline.Service
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxConcurrent int
	AllowFrom     []string
}

// Loop consumes inbound questions and replies with knowledge-grounded
// answers. Internal messages (announcements) are forwarded verbatim.
type Loop struct {
	bus         *bus.MessageBus
	provider    provider.LLMProvider
	store       *knowledge.Store
	history     *timeline.Service
	model       string
	maxTokens   int
	temperature float64
	sem         *scheduler.Semaphore
	allow       map[string]struct{}
	running     atomic.Bool
	handlers    sync.WaitGroup
}

// NewLoop creates a new agent loop.
func NewLoop(opts LoopOptions) *Loop {
	maxConc := opts.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 4
	}

	var allow map[string]struct{}
	if len(opts.AllowFrom) > 0 {
		allow = make(map[string]struct{}, len(opts.AllowFrom))
		for _, v := range opts.AllowFrom {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				allow[v] = struct{}{}
			}
		}
	}

	return &Loop{
		bus:         opts.Bus,
		provider:    opts.Provider,
		store:       opts.Store,
		history:     opts.History,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		sem:         scheduler.NewSemaphore(maxConc),
		allow:       allow,
	}
}

// Run starts the agent loop, processing messages from the bus. Handler
// concurrency is bounded by the semaphore; Run waits for in-flight
// handlers before returning.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	slog.Info("Agent loop started")

	for l.running.Load() {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break // Context cancelled, normal shutdown
			}
			slog.Error("Failed to consume message", "error", err)
			continue
		}

		// Announcements bypass the model entirely.
		if msg.MessageType() == bus.MessageTypeInternal {
			l.bus.PublishOutbound(&bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: msg.Content,
			})
			continue
		}

		if !l.allowed(msg) {
			slog.Warn("Dropping message from unauthorized sender",
				"channel", msg.Channel, "sender", msg.SenderID)
			continue
		}

		if !l.sem.Acquire(ctx) {
			break
		}
		l.handlers.Add(1)
		go func(m *bus.InboundMessage) {
			defer l.handlers.Done()
			defer l.sem.Release()
			l.handle(ctx, m)
		}(msg)
	}

	l.handlers.Wait()
	slog.Info("Agent loop stopped")
	return nil
}

// Stop signals the agent loop to stop.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// allowed reports whether the sender may talk to the agent. An empty
// allow list admits everyone.
func (l *Loop) allowed(msg *bus.InboundMessage) bool {
	if l.allow == nil {
		return true
	}
	if _, ok := l.allow[strings.ToLower(strings.TrimSpace(msg.SenderID))]; ok {
		return true
	}
	if _, ok := l.allow[strings.ToLower(strings.TrimSpace(msg.Sender))]; ok {
		return true
	}
	return false
}

func (l *Loop) handle(ctx context.Context, msg *bus.InboundMessage) {
	if strings.TrimSpace(msg.Content) == "" {
		return
	}

	reply, err := l.answer(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Failed to answer question", "channel", msg.Channel, "chat", msg.ChatID, "error", err)
		l.record(timeline.EventQueryFailed, msg, err.Error())
		reply = replyProviderError
	} else {
		l.record(timeline.EventQueryAnswered, msg, "")
	}

	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	})
}

// answer builds the knowledge-grounded prompt and asks the model.
func (l *Loop) answer(ctx context.Context, msg *bus.InboundMessage) (string, error) {
	system := fmt.Sprintf(systemPromptFormat, l.store.Read(ctx))

	resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: msg.Content},
		},
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return replyInternalError, nil
	}
	return reply, nil
}

func (l *Loop) record(kind string, msg *bus.InboundMessage, detail string) {
	if l.history == nil {
		return
	}
	if err := l.history.LogEvent(kind, msg.Channel, msg.ChatID, detail); err != nil {
		slog.Debug("Query event not recorded", "error", err)
	}
}
