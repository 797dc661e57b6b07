package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
)

const (
	toolVectorSearch = "vector_search"
	toolWebSearch    = "web_search"
	toolSummarize    = "summarize"

	outcomeHit     = "hit"
	outcomeInvoked = "invoked"
)

type OrchestratorConfig struct {
	// SummaryWordThreshold triggers summarization of long search digests
	// before they reach the answer prompt.
	SummaryWordThreshold int
	ContextWindowTurns   int
	DefaultLanguage      string
}

// Orchestrator answers a question by trying the vector store first and
// falling back to web search when nothing relevant is found. The decision
// order is fixed: database, then search, then optional summarization.
type Orchestrator struct {
	retrieval  Retriever
	generator  ports.Generator
	searcher   ports.WebSearcher
	summarizer ports.Summarizer
	cfg        OrchestratorConfig
	logger     *slog.Logger
}

// Retriever is the slice of RetrievalService the orchestrator needs.
type Retriever interface {
	Retrieve(ctx context.Context, question, namespace string, filter *domain.MetadataFilter) []domain.RetrievalResult
}

func NewOrchestrator(
	retrieval Retriever,
	generator ports.Generator,
	searcher ports.WebSearcher,
	summarizer ports.Summarizer,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.SummaryWordThreshold <= 0 {
		cfg.SummaryWordThreshold = 250
	}
	if cfg.ContextWindowTurns <= 0 {
		cfg.ContextWindowTurns = 10
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "english"
	}
	return &Orchestrator{
		retrieval:  retrieval,
		generator:  generator,
		searcher:   searcher,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

func (o *Orchestrator) Run(ctx context.Context, query domain.AgentQuery) (domain.AgentAnswer, error) {
	question := strings.TrimSpace(query.Question)
	if question == "" {
		return domain.AgentAnswer{}, domain.WrapError(domain.ErrInvalidInput, "usecase.Run", errors.New("query must not be empty"))
	}

	language := normalizeLanguage(query.Language, o.cfg.DefaultLanguage)
	detected := detectLanguage(question)
	history := boundedHistory(query.Context, o.cfg.ContextWindowTurns)

	results := o.retrieval.Retrieve(ctx, question, query.Namespace, nil)
	if err := ctx.Err(); err != nil {
		return domain.AgentAnswer{}, err
	}

	var answer domain.AgentAnswer
	var err error
	if len(results) > 0 {
		answer, err = o.answerFromDatabase(ctx, question, results, history, language)
	} else {
		answer, err = o.answerFromWeb(ctx, question, history, language)
	}
	if err != nil {
		return domain.AgentAnswer{}, err
	}

	if detected != language {
		answer.TranslationNotice = fmt.Sprintf("%s → %s", detected, language)
	}
	o.logger.Info("agent_run_completed",
		"thread_id", query.ThreadID,
		"source", answer.Source,
		"tool_calls", len(answer.Tools),
	)
	return answer, nil
}

func (o *Orchestrator) answerFromDatabase(ctx context.Context, question string, results []domain.RetrievalResult, history []domain.ConversationTurn, language string) (domain.AgentAnswer, error) {
	tools := []domain.ToolInvocationRecord{{Tool: toolVectorSearch, Outcome: outcomeHit}}

	prompt := buildDatabaseAnswerPrompt(question, results, history, language)
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.AgentAnswer{}, domain.WrapError(domain.ErrOrchestrator, "usecase.Run", err)
	}
	return domain.AgentAnswer{Text: text, Source: domain.SourceDatabase, Tools: tools}, nil
}

// answerFromWeb records only the tools that produced the answer; the empty
// database attempt that routed here is not part of the audit trail.
func (o *Orchestrator) answerFromWeb(ctx context.Context, question string, history []domain.ConversationTurn, language string) (domain.AgentAnswer, error) {
	var tools []domain.ToolInvocationRecord

	if err := ctx.Err(); err != nil {
		return domain.AgentAnswer{}, err
	}
	digest, err := o.searcher.Search(ctx, question)
	if err != nil {
		return domain.AgentAnswer{}, domain.WrapError(domain.ErrOrchestrator, "usecase.Run", err)
	}
	tools = append(tools, domain.ToolInvocationRecord{Tool: toolWebSearch, Outcome: outcomeInvoked})

	if len(strings.Fields(digest)) > o.cfg.SummaryWordThreshold {
		if err := ctx.Err(); err != nil {
			return domain.AgentAnswer{}, err
		}
		summary, err := o.summarizer.Summarize(ctx, digest)
		if err != nil {
			return domain.AgentAnswer{}, domain.WrapError(domain.ErrOrchestrator, "usecase.Run", err)
		}
		digest = summary
		tools = append(tools, domain.ToolInvocationRecord{Tool: toolSummarize, Outcome: outcomeInvoked})
	}

	if err := ctx.Err(); err != nil {
		return domain.AgentAnswer{}, err
	}
	prompt := buildWebAnswerPrompt(question, digest, history, language)
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.AgentAnswer{}, domain.WrapError(domain.ErrOrchestrator, "usecase.Run", err)
	}
	return domain.AgentAnswer{Text: text, Source: domain.SourceExternal, Tools: tools}, nil
}
