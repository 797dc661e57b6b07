package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
)

type StreamerConfig struct {
	ChunkChars         int
	ContextWindowTurns int
	DefaultLanguage    string
}

// Streamer delivers answers token by token over a persistent connection.
// Every conversation gets exactly one terminal event, "end" or "error",
// unless the sink itself broke first.
type Streamer struct {
	retrieval Retriever
	generator ports.Generator
	agent     ports.AgentRunner
	cfg       StreamerConfig
	logger    *slog.Logger
}

func NewStreamer(retrieval Retriever, generator ports.Generator, agent ports.AgentRunner, cfg StreamerConfig, logger *slog.Logger) *Streamer {
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = 120
	}
	if cfg.ContextWindowTurns <= 0 {
		cfg.ContextWindowTurns = 10
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "english"
	}
	return &Streamer{retrieval: retrieval, generator: generator, agent: agent, cfg: cfg, logger: logger}
}

func (s *Streamer) Respond(ctx context.Context, req domain.StreamRequest, sink ports.StreamSink) error {
	em := &emitter{sink: sink}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		em.fail("question must not be empty")
		return nil
	}

	if req.AgentMode {
		s.respondAgent(ctx, req, question, em)
	} else {
		s.respondDirect(ctx, req, question, em)
	}

	if em.sinkErr != nil {
		return em.sinkErr
	}
	return nil
}

// respondAgent runs the full fallback loop, then replays the finished answer
// as a sequence of fixed-size chunks.
func (s *Streamer) respondAgent(ctx context.Context, req domain.StreamRequest, question string, em *emitter) {
	answer, err := s.agent.Run(ctx, domain.AgentQuery{
		Question:  question,
		Language:  req.Language,
		Namespace: req.Namespace,
		Context:   req.Context,
	})
	if err != nil {
		s.logger.Warn("stream_agent_failed", "error", err)
		em.fail("agent run failed")
		return
	}

	for _, part := range splitByRunes(answer.Annotated(), s.cfg.ChunkChars) {
		if ctx.Err() != nil {
			em.fail("request cancelled")
			return
		}
		if !em.chunk(part) {
			return
		}
	}
	em.end()
}

// respondDirect skips the fallback loop: retrieve, build the prompt, and
// forward model tokens to the sink as they arrive.
func (s *Streamer) respondDirect(ctx context.Context, req domain.StreamRequest, question string, em *emitter) {
	language := normalizeLanguage(req.Language, s.cfg.DefaultLanguage)
	history := boundedHistory(req.Context, s.cfg.ContextWindowTurns)
	results := s.retrieval.Retrieve(ctx, question, req.Namespace, nil)

	prompt := buildDatabaseAnswerPrompt(question, results, history, language)
	err := s.generator.Stream(ctx, prompt, func(ctx context.Context, token string) error {
		if !em.chunk(token) {
			return em.sinkErr
		}
		return nil
	})
	if err != nil {
		if em.sinkErr == nil {
			s.logger.Warn("stream_generation_failed", "error", err)
			em.fail("generation failed")
		}
		return
	}
	em.end()
}

// splitByRunes cuts text into windows of at most chunkChars runes so
// multi-byte characters are never split mid-sequence.
func splitByRunes(text string, chunkChars int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{""}
	}
	runes := []rune(trimmed)
	if len(runes) <= chunkChars {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); start += chunkChars {
		end := start + chunkChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// emitter tracks sink health and terminal-event delivery. After the sink
// reports an error no further events are attempted. Delivered chunks are
// accumulated so the end event can replay the full answer text.
type emitter struct {
	sink         ports.StreamSink
	text         strings.Builder
	terminalSent bool
	sinkErr      error
}

func (e *emitter) chunk(message string) bool {
	if e.sinkErr != nil || e.terminalSent {
		return false
	}
	if err := e.sink.Send(domain.StreamEvent{Type: domain.StreamEventChunk, Message: message}); err != nil {
		e.sinkErr = err
		return false
	}
	e.text.WriteString(message)
	return true
}

func (e *emitter) end() {
	e.terminal(domain.StreamEvent{Type: domain.StreamEventEnd, Message: e.text.String()})
}

func (e *emitter) fail(message string) {
	e.terminal(domain.StreamEvent{Type: domain.StreamEventError, Message: message})
}

func (e *emitter) terminal(event domain.StreamEvent) {
	if e.sinkErr != nil || e.terminalSent {
		return
	}
	if err := e.sink.Send(event); err != nil {
		e.sinkErr = err
		return
	}
	e.terminalSent = true
}
