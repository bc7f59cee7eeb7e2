package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LoreClaw/LoreClaw/internal/bus"
	"github.com/LoreClaw/LoreClaw/internal/knowledge"
	"github.com/LoreClaw/LoreClaw/internal/provider"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

type staticSource struct{ content string }

func (s staticSource) Fetch(ctx context.Context) (string, error) { return s.content, nil }

type memMirror struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memMirror) GetSetting(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", errors.New("no such setting")
}

func (m *memMirror) SetSetting(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	gate     chan struct{}
	lastReq  *provider.ChatRequest
	calls    int
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (p *fakeProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	cur := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		max := p.maxSeen.Load()
		if cur <= max || p.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	p.mu.Lock()
	p.calls++
	p.lastReq = req
	p.mu.Unlock()

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &provider.ChatResponse{Content: p.reply}, nil
}

func (p *fakeProvider) DefaultModel() string { return "fake-model" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) request() *provider.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

type loopFixture struct {
	bus *bus.MessageBus
	out chan *bus.OutboundMessage
}

func startLoop(t *testing.T, fp *fakeProvider, opts LoopOptions) *loopFixture {
	t.Helper()
	b := bus.NewMessageBus()
	opts.Bus = b
	opts.Provider = fp
	if opts.Store == nil {
		opts.Store = knowledge.NewStore(staticSource{content: "Acme Capital opening hours: 9 to 5."}, &memMirror{})
	}
	loop := NewLoop(opts)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *bus.OutboundMessage, 16)
	b.Subscribe("telegram", func(m *bus.OutboundMessage) { out <- m })
	go b.DispatchOutbound(ctx)

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("agent loop did not stop")
		}
	})
	return &loopFixture{bus: b, out: out}
}

func question(content string) *bus.InboundMessage {
	return &bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "1001",
		Sender:   "alice",
		ChatID:   "1001",
		Content:  content,
	}
}

func waitOutbound(t *testing.T, out chan *bus.OutboundMessage) *bus.OutboundMessage {
	t.Helper()
	select {
	case m := <-out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for outbound message")
		return nil
	}
}

func TestLoopAnswersWithKnowledgePrompt(t *testing.T) {
	fp := &fakeProvider{reply: "We open at 9."}
	f := startLoop(t, fp, LoopOptions{Model: "gpt-3.5-turbo", MaxTokens: 512, Temperature: 0.2})

	f.bus.PublishInbound(question("When do you open?"))

	msg := waitOutbound(t, f.out)
	if msg.Content != "We open at 9." {
		t.Fatalf("unexpected reply: %q", msg.Content)
	}
	if msg.ChatID != "1001" {
		t.Fatalf("reply routed to wrong chat: %q", msg.ChatID)
	}

	req := fp.request()
	if req == nil || len(req.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %+v", req)
	}
	system := req.Messages[0]
	if system.Role != "system" {
		t.Fatalf("expected system role first, got %q", system.Role)
	}
	if !strings.Contains(system.Content, "--- BEGIN KNOWLEDGE BASE ---") ||
		!strings.Contains(system.Content, "--- END KNOWLEDGE BASE ---") {
		t.Fatalf("system prompt missing knowledge delimiters: %q", system.Content)
	}
	if !strings.Contains(system.Content, "Acme Capital opening hours") {
		t.Fatalf("system prompt missing knowledge text: %q", system.Content)
	}
	if req.Messages[1].Role != "user" || req.Messages[1].Content != "When do you open?" {
		t.Fatalf("unexpected user message: %+v", req.Messages[1])
	}
	if req.Model != "gpt-3.5-turbo" || req.MaxTokens != 512 || req.Temperature != 0.2 {
		t.Fatalf("model parameters not forwarded: %+v", req)
	}
}

func TestLoopApologizesOnProviderFailure(t *testing.T) {
	fp := &fakeProvider{err: errors.New("rate limited")}
	f := startLoop(t, fp, LoopOptions{})

	f.bus.PublishInbound(question("hi"))

	msg := waitOutbound(t, f.out)
	if msg.Content != replyProviderError {
		t.Fatalf("expected provider apology, got %q", msg.Content)
	}
}

func TestLoopApologizesOnEmptyModelReply(t *testing.T) {
	fp := &fakeProvider{reply: "   "}
	f := startLoop(t, fp, LoopOptions{})

	f.bus.PublishInbound(question("hi"))

	msg := waitOutbound(t, f.out)
	if msg.Content != replyInternalError {
		t.Fatalf("expected generic apology, got %q", msg.Content)
	}
}

func TestLoopForwardsAnnouncementsWithoutModel(t *testing.T) {
	fp := &fakeProvider{reply: "should not be used"}
	f := startLoop(t, fp, LoopOptions{AllowFrom: []string{"nobody"}})

	f.bus.PublishInbound(&bus.InboundMessage{
		Channel:  "telegram",
		ChatID:   "-100500",
		Content:  "Scheduled maintenance tonight.",
		Metadata: map[string]any{bus.MetaKeyMessageType: bus.MessageTypeInternal},
	})

	msg := waitOutbound(t, f.out)
	if msg.Content != "Scheduled maintenance tonight." {
		t.Fatalf("announcement altered: %q", msg.Content)
	}
	if msg.ChatID != "-100500" {
		t.Fatalf("announcement routed to wrong chat: %q", msg.ChatID)
	}
	if fp.callCount() != 0 {
		t.Fatalf("expected no model calls for announcements, got %d", fp.callCount())
	}
}

func TestLoopDropsUnauthorizedSenders(t *testing.T) {
	fp := &fakeProvider{reply: "ok"}
	f := startLoop(t, fp, LoopOptions{AllowFrom: []string{"alice", "2002"}})

	stranger := question("let me in")
	stranger.SenderID = "9999"
	stranger.Sender = "mallory"
	f.bus.PublishInbound(stranger)

	f.bus.PublishInbound(question("hello"))

	msg := waitOutbound(t, f.out)
	if msg.Content != "ok" {
		t.Fatalf("unexpected reply: %q", msg.Content)
	}
	if fp.callCount() != 1 {
		t.Fatalf("expected exactly one model call, got %d", fp.callCount())
	}

	select {
	case m := <-f.out:
		t.Fatalf("unexpected extra reply: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLoopIgnoresBlankMessages(t *testing.T) {
	fp := &fakeProvider{reply: "ok"}
	f := startLoop(t, fp, LoopOptions{})

	f.bus.PublishInbound(question("   "))

	select {
	case m := <-f.out:
		t.Fatalf("unexpected reply to blank message: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}
	if fp.callCount() != 0 {
		t.Fatalf("expected no model calls, got %d", fp.callCount())
	}
}

func TestLoopBoundsHandlerConcurrency(t *testing.T) {
	gate := make(chan struct{})
	fp := &fakeProvider{reply: "ok", gate: gate}
	f := startLoop(t, fp, LoopOptions{MaxConcurrent: 2})

	for i := 0; i < 4; i++ {
		f.bus.PublishInbound(question(fmt.Sprintf("question %d", i)))
	}

	deadline := time.After(2 * time.Second)
	for fp.inflight.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("handlers never reached the concurrency bound")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// Give the consume loop room to overshoot if it were unbounded.
	time.Sleep(50 * time.Millisecond)
	if got := fp.maxSeen.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent handlers, saw %d", got)
	}

	close(gate)
	for i := 0; i < 4; i++ {
		waitOutbound(t, f.out)
	}
	if got := fp.maxSeen.Load(); got > 2 {
		t.Fatalf("concurrency bound exceeded: %d", got)
	}
}

func TestLoopRecordsQueryEvents(t *testing.T) {
	history, err := timeline.NewService(filepath.Join(t.TempDir(), "timeline.db"))
	if err != nil {
		t.Fatalf("timeline service: %v", err)
	}
	defer history.Close()

	fp := &fakeProvider{reply: "answered"}
	f := startLoop(t, fp, LoopOptions{History: history})

	f.bus.PublishInbound(question("what time do you open"))
	waitOutbound(t, f.out)

	events, err := history.Events(timeline.FilterArgs{Kind: timeline.EventQueryAnswered})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one answered event, got %d", len(events))
	}
	if events[0].Channel != "telegram" || events[0].ChatID != "1001" {
		t.Fatalf("unexpected event routing: %+v", events[0])
	}
}
