package llm

import "strings"

// Mode selects the instructions the model receives.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeAsk      Mode = "ask"
	ModeSummary  Mode = "summary"
	ModeOptimize Mode = "optimize"
	ModeWeather  Mode = "weather"
	ModeCrypto   Mode = "crypto"
)

const baseSystemPrompt = `You are the commlink assistant inside a terse messaging client.
Answer in the same language as the user. Keep replies short: a few sentences or a short list.
Markdown is rendered, so lists and emphasis are fine. Never invent delivery receipts or reminders.`

var modeInstructions = map[Mode]string{
	ModeChat: `Mode: chat. Reply conversationally to the latest message, using the history for context.`,
	ModeAsk:  `Mode: ask. Answer the question directly. If you are unsure, say so in one sentence.`,
	ModeSummary: `Mode: summary. Summarize the conversation history in at most five bullet points.
Mention open questions and anything the user asked to be reminded about.`,
	ModeOptimize: `Mode: optimize. Rewrite the given text to be clearer and shorter without changing its meaning.
Return only the rewritten text.`,
	ModeWeather: `Mode: weather. Give a plausible short weather briefing for the requested location
and state clearly that it is not live data.`,
	ModeCrypto: `Mode: crypto. Give a short general overview of the requested asset.
State clearly that you have no live prices and this is not financial advice.`,
}

// BuildSystemPrompt returns the system instructions for mode.
func BuildSystemPrompt(mode Mode) string {
	instr, ok := modeInstructions[mode]
	if !ok {
		instr = modeInstructions[ModeChat]
	}
	return baseSystemPrompt + "\n\n" + instr
}

// BuildPrompt flattens a request into one text prompt for endpoints that
// take a single user turn.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(BuildSystemPrompt(req.Mode))
	b.WriteString("\n\n")

	if len(req.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range req.History {
			switch t.Role {
			case RoleModel:
				b.WriteString("Assistant: ")
			default:
				b.WriteString("User: ")
			}
			b.WriteString(t.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if req.Prompt != "" {
		b.WriteString("User: ")
		b.WriteString(req.Prompt)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}
