package usecase

import (
	"strings"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// Answer prompts are source-pure: the database prompt carries only retrieved
// chunks and the web prompt carries only the search digest, never both.

func buildDatabaseAnswerPrompt(question string, results []domain.RetrievalResult, history []domain.ConversationTurn, language string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant answering strictly from the provided document excerpts.\n")
	sb.WriteString("Answer in ")
	sb.WriteString(language)
	sb.WriteString(". If the excerpts do not contain the answer, say so.\n\n")

	writeHistory(&sb, history)

	sb.WriteString("Document excerpts:\n")
	for i, r := range results {
		sb.WriteString(strings.TrimSpace(r.Chunk.Text))
		if i < len(results)-1 {
			sb.WriteString("\n---\n")
		}
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}

func buildWebAnswerPrompt(question, digest string, history []domain.ConversationTurn, language string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant answering from web search results.\n")
	sb.WriteString("Answer in ")
	sb.WriteString(language)
	sb.WriteString(". Base the answer only on the search results below.\n\n")

	writeHistory(&sb, history)

	sb.WriteString("Search results:\n")
	sb.WriteString(strings.TrimSpace(digest))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}

func writeHistory(sb *strings.Builder, history []domain.ConversationTurn) {
	if len(history) == 0 {
		return
	}
	sb.WriteString("Conversation so far:\n")
	for _, turn := range history {
		switch turn.Role {
		case domain.RoleHuman:
			sb.WriteString("User: ")
		case domain.RoleAI:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString(turn.Role)
			sb.WriteString(": ")
		}
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// boundedHistory keeps only the most recent turns so prompts stay inside the
// model's context window.
func boundedHistory(history []domain.ConversationTurn, maxTurns int) []domain.ConversationTurn {
	if maxTurns <= 0 || len(history) <= maxTurns {
		return history
	}
	return history[len(history)-maxTurns:]
}
