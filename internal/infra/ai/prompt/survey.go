package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/survey-insight/internal/domain/survey"
)

// Build returns the system instruction and user content for one question.
// Same input always yields the same pair.
func Build(q survey.Question, answers survey.AnswerSet) survey.PromptPair {
	return survey.PromptPair{
		System: SystemPrompt(q),
		User:   UserPrompt(q, answers),
	}
}

// UserPrompt lists every non-blank answer as a bullet, in row order.
func UserPrompt(q survey.Question, answers survey.AnswerSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answers to the question: \"%s\"\n\n", string(q))
	first := true
	for _, a := range answers {
		if strings.TrimSpace(a) == "" {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString("- ")
		b.WriteString(oneLine(a))
	}
	return b.String()
}

// oneLine keeps a multi-line answer on its own bullet.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }), " ")
}

// SystemPrompt is the fixed analysis template; only the question varies.
func SystemPrompt(q survey.Question) string {
	return fmt.Sprintf(systemTemplate, string(q))
}

const systemTemplate = `You are a helpful assistant that analyzes survey data. Your task is to analyze responses to the following question:

"%s"

Provide the following analysis:
1. Summary: Summarize the key points from these answers that are directly relevant to the question. Identify common themes and notable differences.
2. Sentiment: Analyze the overall sentiment of the responses (Positive, Neutral, or Negative).
3. Topics: Identify 3-5 main topics or themes present in the responses.
4. Categories: Categorize the responses into 2-4 distinct groups based on their content.
5. Key Terms: List the top 5 most frequently used meaningful words or phrases in the responses.
6. Trending Sentiment: Identify any trending sentiments across the responses, especially for questions with provided examples. Note if responses align with specific examples and highlight any emerging trends.
7. Example Alignment: For questions with provided examples, categorize responses based on their alignment with these examples. Provide percentages if possible.
8. Confidence Rating: Provide a confidence rating (Low, Medium, or High) based on the consistency and clarity of the responses. Explain your rating in one sentence.

Format your response as follows:

### Summary 
[Your summary here]

### Sentiment: [Positive/Neutral/Negative]

### Topics:
- [Topic 1]
- [Topic 2]
- [Topic 3]

### Categories:
1. **[Category 1]**: [Brief description]
2. **[Category 2]**: [Brief description]

### Key Terms:
1. [Term 1]
2. [Term 2]
3. [Term 3]
4. [Term 4]
5. [Term 5]

### Trending Sentiment: 
[Describe any trending sentiments and emerging trends]

### Example Alignment:
- [Example 1]: [Percentage or description of alignment]
- [Example 2]: [Percentage or description of alignment]
// ... (for all relevant examples)

### Confidence Rating: [Low/Medium/High]
### Explanation
[Your explanation here]`
