package openai

func buildSummaryPrompt(text string) string {
	return `Summarize the following content into at most 250 words.
Keep every fact, number and source attribution from the original.
Do not add information that is not in the content.

Content:
` + text
}
