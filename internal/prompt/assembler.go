// Package prompt assembles a single token-budgeted prompt string from
// conversation history, retrieved context, and a user query.
package prompt

import (
	"log/slog"
	"strings"

	"github.com/ataraxai/indexd/internal/completion"
)

// Turn is one exchange in the conversation history, oldest-first as
// supplied by the caller; Assemble walks it newest-to-oldest internally.
type Turn struct {
	Role    string
	Content string
}

// NoRelevantDocumentsSentinel is substituted for an empty RAG context so
// the downstream model always sees a well-formed prompt.
const NoRelevantDocumentsSentinel = "No relevant documents found."

// minTailTokens is the smallest remaining history budget worth filling
// with a truncated tail of one more turn rather than stopping.
const minTailTokens = 50

// Assembler builds prompts under an explicit token budget, using the same
// tokenizer the downstream model will use to consume the result.
type Assembler struct {
	engine completion.Engine
	logger *slog.Logger
}

// NewAssembler builds an Assembler over engine's tokenizer.
func NewAssembler(engine completion.Engine, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{engine: engine, logger: logger}
}

// Assemble builds the final prompt per §4.10: template carries {history},
// {context} and {query} placeholders; contextLimit is the model's total
// context window; nPredict is the reserved generation budget;
// contextAllocationRatio splits the remaining content budget between RAG
// context and history (0 gives it all to history, 1 all to context).
func (a *Assembler) Assemble(history []Turn, ragContext, query, template string, contextLimit, nPredict int, contextAllocationRatio float64) string {
	promptBudget := contextLimit - nPredict

	templateTokens := a.engine.Tokenize(stripPlaceholders(template))
	queryTokens := a.engine.Tokenize(query)

	contentBudget := promptBudget - len(templateTokens) - len(queryTokens)
	if contentBudget <= 0 {
		a.logger.Warn("prompt content budget exhausted by template and query alone",
			slog.Int("prompt_budget", promptBudget),
			slog.Int("template_tokens", len(templateTokens)),
			slog.Int("query_tokens", len(queryTokens)))
		return render(template, "", NoRelevantDocumentsSentinel, query)
	}

	ragBudget := int(float64(contentBudget)*contextAllocationRatio + 0.5)
	historyBudget := contentBudget - ragBudget

	truncatedContext := a.truncateTail(ragContext, ragBudget)
	historyText := a.buildHistory(history, historyBudget)

	if truncatedContext == "" && historyText == "" {
		truncatedContext = NoRelevantDocumentsSentinel
	}

	return render(template, historyText, truncatedContext, query)
}

// truncateTail keeps at most budget tokens of text, dropping from the
// front (tail-truncate) by re-decoding the retained token suffix.
func (a *Assembler) truncateTail(text string, budget int) string {
	if budget <= 0 || text == "" {
		return ""
	}
	tokens := a.engine.Tokenize(text)
	if len(tokens) <= budget {
		return text
	}
	return a.engine.Decode(tokens[len(tokens)-budget:])
}

// buildHistory walks turns newest-to-oldest, prepending whole turns while
// the running total stays within budget. The turn that would overflow is
// either tail-truncated with an ellipsis (if enough budget remains) or
// dropped, and walking stops there.
func (a *Assembler) buildHistory(turns []Turn, budget int) string {
	if budget <= 0 || len(turns) == 0 {
		return ""
	}

	var included []string
	remaining := budget

	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		rendered := turn.Role + ": " + turn.Content
		tokens := a.engine.Tokenize(rendered)

		if len(tokens) <= remaining {
			included = append([]string{rendered}, included...)
			remaining -= len(tokens)
			continue
		}

		if remaining >= minTailTokens {
			prefix := turn.Role + ": ..."
			prefixTokens := len(a.engine.Tokenize(prefix))
			tailBudget := remaining - prefixTokens
			if tailBudget > 0 {
				tail := a.engine.Decode(tokens[len(tokens)-tailBudget:])
				included = append([]string{prefix + tail}, included...)
			}
		}
		break
	}

	return strings.Join(included, "\n")
}

func stripPlaceholders(template string) string {
	r := strings.NewReplacer("{history}", "", "{context}", "", "{query}", "")
	return r.Replace(template)
}

func render(template, history, context, query string) string {
	r := strings.NewReplacer("{history}", history, "{context}", context, "{query}", query)
	return r.Replace(template)
}
