package agent

import (
	"fmt"
	"strings"
)

// SystemPrompt defines the model's role
const SystemPrompt = `You are an expert SQL developer. Generate SQL queries based on business logic and database schemas provided.

Always follow these rules:
- Generate valid SQL queries that fulfill the business logic
- Use proper SQL syntax and best practices
- Include appropriate SQL logical constructs (JOINs, WHERE clauses, GROUP BY, etc.) as needed
- Be explicit about the type of join
- Do not include markdown code blocks or formatting
- Follow the output format instructions exactly`

// TaskInstructions guide the current request
const TaskInstructions = `## Instructions:
1. Analyze the database schema provided
2. Understand the business logic requirement
3. Generate the appropriate SQL query
4. Ensure the query is optimized and follows best practices`

// ExplanationInstructions are added when an explanation is requested
const ExplanationInstructions = `
After the SQL query, provide a brief explanation of:
1. What tables are being used
2. What the query does
3. Any important joins or conditions`

const (
	outputSQLOnly     = "Return ONLY the SQL query. Do not include any explanation, description, or additional text."
	outputExplanation = "Return the SQL query followed by the explanation."
)

// FormatSchemas joins retrieved schema texts into the prompt's schema section
func FormatSchemas(schemas []string) string {
	blocks := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if s = strings.TrimSpace(s); s != "" {
			blocks = append(blocks, s)
		}
	}

	return strings.Join(blocks, "\n\n")
}

// BuildPrompt assembles the single-message prompt sent to the model.
// history is sent as given; trimming is the caller's job.
func BuildPrompt(request, schemaContext string, explain bool, history []Turn) string {
	explanation := ""
	output := outputSQLOnly

	if explain {
		explanation = ExplanationInstructions
		output = outputExplanation
	}

	var historySection strings.Builder

	if len(history) > 0 {
		historySection.WriteString("\n## Previous Conversation:\n")

		for i, turn := range history {
			fmt.Fprintf(&historySection, "\nTurn %d:\n", i+1)
			fmt.Fprintf(&historySection, "User: %s\n", turn.User)
			fmt.Fprintf(&historySection, "Assistant: %s\n", turn.Assistant)
		}

		historySection.WriteString("\n## Current Request:\n")
	}

	return fmt.Sprintf(`%s

## Database Schema (Relevant Tables Only):
%s
%s
## Business Logic:
%s

%s
%s

## Output Format:
%s

SQL Query:`, SystemPrompt, schemaContext, historySection.String(), request, TaskInstructions, explanation, output)
}

// CleanResponse strips markdown code fences and surrounding whitespace
// that models add despite being told not to
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)

	body, ok := strings.CutPrefix(text, "```")
	if !ok {
		return text
	}

	// a language tag is a single word on the opening fence line
	if tag, rest, found := strings.Cut(body, "\n"); found && !strings.ContainsAny(strings.TrimSpace(tag), " \t`") {
		body = rest
	}

	code, after, _ := strings.Cut(body, "```")
	code = strings.TrimSpace(code)

	if after = strings.TrimSpace(after); after != "" {
		return code + "\n" + after
	}

	return code
}
