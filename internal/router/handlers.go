package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"commlink/internal/codec"
	"commlink/internal/llm"
	"commlink/internal/logging"
	"commlink/internal/types"
)

var (
	remindRe   = regexp.MustCompile(`^(\d+)([mh])\s+"(.+)"$`)
	locationRe = regexp.MustCompile(`(?i)\bweather\s+(?:in|for|at)\s+(.+)$`)
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrValidation, fmt.Sprintf(format, args...))
}

// =============================================================================
// FOLLOW-UP
// =============================================================================

// handleFollowup consumes the pending confirmation. The pending value is
// cleared whatever the answer is; an unrecognized answer only re-prompts.
func (r *Router) handleFollowup(ctx context.Context, c *call) (result, error) {
	p := r.takePending()
	if p == nil {
		return r.handleChat(ctx, c)
	}

	switch strings.ToLower(c.input) {
	case "yes", "y":
		logging.Routing("confirmed %s", p.Action)
		return r.confirm(ctx, c, p)
	case "no", "n":
		logging.Routing("rejected %s", p.Action)
		return textResult(rejectMessage(p)), nil
	default:
		logging.RoutingDebug("unrecognized follow-up for %s, pending cleared", p.Action)
		return textResult(fmt.Sprintf("Please answer yes or no. The request was dismissed; send %s to start again.", retryHint(p))), nil
	}
}

func (r *Router) confirm(ctx context.Context, c *call, p *PendingConfirmation) (result, error) {
	switch p.Action {
	case ActionArchiveConfirm:
		n, err := r.countBefore(ctx, c.seq)
		if err != nil {
			return result{}, err
		}
		return textResult(fmt.Sprintf("🔒 Archive sealed: %d messages saved.", n)), nil
	default:
		return result{}, fmt.Errorf("no confirmation handler for action %s", p.Action)
	}
}

func rejectMessage(p *PendingConfirmation) string {
	if p.Action == ActionArchiveConfirm {
		return "🗑️ Archive cancelled. Nothing was saved."
	}
	return "Cancelled."
}

func retryHint(p *PendingConfirmation) string {
	if p.Action == ActionArchiveConfirm {
		return "/archive"
	}
	return "the command"
}

// countBefore counts stored utterances older than seq (all when seq is 0).
func (r *Router) countBefore(ctx context.Context, seq int64) (int, error) {
	us, err := r.store.ListUtterances(ctx, 0)
	if err != nil {
		return 0, err
	}
	if seq == 0 {
		return len(us), nil
	}
	n := 0
	for _, u := range us {
		if u.Seq < seq {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// TOKEN
// =============================================================================

func (r *Router) handleToken(ctx context.Context, c *call) (result, error) {
	idx, ok := codec.Encode(c.input, r.dict)
	if !ok {
		return r.handleChat(ctx, c)
	}
	sender := c.identity.ID
	if sender == "" {
		sender = "anonymous"
	}
	if _, err := r.store.AppendUtterance(ctx, types.Utterance{Sender: sender, TokenIndex: types.IntPtr(idx)}); err != nil {
		return result{}, err
	}
	logging.RoutingDebug("stored token %d", idx)
	return result{kind: KindStored, token: types.IntPtr(idx)}, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

func (r *Router) handleCommand(ctx context.Context, c *call) (result, error) {
	h, ok := r.handlers[c.cmd.Name]
	if !ok {
		return r.handleChat(ctx, c)
	}
	logging.Routing("command %s", c.cmd.Name)
	return h(ctx, c)
}

func (r *Router) handleAsk(ctx context.Context, c *call) (result, error) {
	if c.args == "" {
		return result{}, validationf("missing question")
	}
	return r.generate(ctx, llm.Request{Mode: llm.ModeAsk, Prompt: c.args})
}

func (r *Router) handleSummary(ctx context.Context, c *call) (result, error) {
	turns := r.history(ctx, c)
	if len(turns) == 0 {
		return textResult("Nothing to summarize yet."), nil
	}
	return r.generate(ctx, llm.Request{
		Mode:    llm.ModeSummary,
		History: turns,
		Prompt:  "Summarize the conversation above.",
	})
}

func (r *Router) handleOptimize(ctx context.Context, c *call) (result, error) {
	target := c.args
	if target == "" {
		target = r.lastUserText(ctx, c)
	}
	if target == "" {
		return result{}, validationf("nothing to optimize")
	}
	return r.generate(ctx, llm.Request{Mode: llm.ModeOptimize, Prompt: target})
}

func (r *Router) handleWeatherCommand(ctx context.Context, c *call) (result, error) {
	return r.weather(ctx, c.args)
}

func (r *Router) weather(ctx context.Context, location string) (result, error) {
	prompt := "Weather for the user's current location."
	if location != "" {
		prompt = "Weather for " + location + "."
	}
	return r.generate(ctx, llm.Request{Mode: llm.ModeWeather, Prompt: prompt})
}

func (r *Router) handleCrypto(ctx context.Context, c *call) (result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(c.args))
	if symbol == "" {
		symbol = "BTC"
	}
	return r.generate(ctx, llm.Request{Mode: llm.ModeCrypto, Prompt: "Overview of " + symbol + "."})
}

func (r *Router) handleSpeak(ctx context.Context, c *call) (result, error) {
	if c.args == "" {
		return result{}, validationf("nothing to speak")
	}
	clip, err := r.llm.Speak(ctx, c.args)
	if err != nil {
		return result{}, err
	}
	return result{kind: KindAudio, text: "🔊 " + c.args, audio: &clip}, nil
}

func (r *Router) handleRemindMe(ctx context.Context, c *call) (result, error) {
	m := remindRe.FindStringSubmatch(c.args)
	if m == nil {
		return result{}, validationf("expected N followed by m or h, then a quoted message")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return result{}, validationf("delay must be a positive number")
	}
	unit := time.Minute
	if m[2] == "h" {
		unit = time.Hour
	}
	delay := time.Duration(n) * unit
	if delay/unit != time.Duration(n) {
		return result{}, validationf("delay too large")
	}

	rec, err := r.reminders.Schedule(ctx, delay, m[3])
	if err != nil {
		return result{}, err
	}
	return textResult(fmt.Sprintf("⏰ Reminder set for %s%s from now (%s): %q",
		m[1], m[2], rec.DueTime().Format("15:04"), rec.Message)), nil
}

func (r *Router) handleArchive(ctx context.Context, c *call) (result, error) {
	return r.archiveAction(ctx, c)
}

// archiveAction asks before sealing. The actual work happens on "yes".
func (r *Router) archiveAction(ctx context.Context, c *call) (result, error) {
	n, err := r.countBefore(ctx, c.seq)
	if err != nil {
		return result{}, err
	}
	p := &PendingConfirmation{
		Action:  ActionArchiveConfirm,
		Details: fmt.Sprintf("🗄️ Archive %d messages from this conversation? Reply yes or no.", n),
	}
	return result{kind: KindAction, text: p.Details, pending: p}, nil
}

func (r *Router) handleTokenList(ctx context.Context, c *call) (result, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "**Token dictionary** (%d phrases)\n", len(r.dict))
	for i, phrase := range r.dict {
		fmt.Fprintf(&b, "%d. %s\n", i, phrase)
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil
}

func (r *Router) handleHelp(ctx context.Context, c *call) (result, error) {
	if c.args == "" {
		return textResult(renderHelp()), nil
	}
	name := strings.ToLower(c.args)
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	cmd := FindCommand(name)
	if cmd == nil {
		return textResult(fmt.Sprintf("Unknown command %s. Send /help for the list.", name)), nil
	}
	return textResult(renderCommandHelp(cmd)), nil
}

func (r *Router) handleAdmin(ctx context.Context, c *call) (result, error) {
	if !r.isAdmin(string(c.identity.ID)) {
		logging.Get(logging.CategoryRouting).Warn("denied /admin for %s", c.identity.ID)
		return textResult("⛔ /admin is restricted to session admins."), nil
	}

	history, err := r.store.ListUtterances(ctx, 0)
	if err != nil {
		return result{}, err
	}
	pending, err := r.reminders.Pending(ctx)
	if err != nil {
		return result{}, err
	}
	phase := "unknown"
	if r.phase != nil {
		phase = r.phase().String()
	}

	var b strings.Builder
	b.WriteString("**Admin status**\n")
	fmt.Fprintf(&b, "- phase: %s\n", phase)
	fmt.Fprintf(&b, "- identity: %s\n", c.identity.ID)
	fmt.Fprintf(&b, "- messages: %d\n", len(history))
	fmt.Fprintf(&b, "- pending reminders: %d\n", len(pending))
	if st, ok := r.store.(fmt.Stringer); ok {
		fmt.Fprintf(&b, "- store: %s\n", st)
	}
	fmt.Fprintf(&b, "- dictionary: %d phrases (version %s)", len(r.dict), r.dict.Version())
	return textResult(b.String()), nil
}

// =============================================================================
// INTENT
// =============================================================================

func classifyIntent(input string) Intent {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "archive") {
		return Intent{Action: IntentArchiveAccess}
	}
	intent := Intent{Action: IntentWeatherLookup}
	if m := locationRe.FindStringSubmatch(input); m != nil {
		intent.Argument = strings.TrimRight(strings.TrimSpace(m[1]), "?!.")
	}
	return intent
}

func (r *Router) handleIntent(ctx context.Context, c *call) (result, error) {
	intent := classifyIntent(c.input)
	logging.Routing("intent %s arg=%q", intent.Action, intent.Argument)

	var (
		res result
		err error
	)
	switch intent.Action {
	case IntentArchiveAccess:
		res, err = r.archiveAction(ctx, c)
	case IntentWeatherLookup:
		res, err = r.weather(ctx, intent.Argument)
		res.kind = KindIntent
	default:
		return r.handleChat(ctx, c)
	}
	if err != nil {
		return result{}, err
	}
	res.intent = &intent
	return res, nil
}

// =============================================================================
// CHAT
// =============================================================================

func (r *Router) handleChat(ctx context.Context, c *call) (result, error) {
	return r.generate(ctx, llm.Request{
		Mode:    llm.ModeChat,
		History: r.history(ctx, c),
		Prompt:  c.input,
	})
}

// generate calls the model. A malformed response is retried once with a
// rebuilt prompt that drops the history.
func (r *Router) generate(ctx context.Context, req llm.Request) (result, error) {
	text, err := r.llm.Generate(ctx, req)
	if errors.Is(err, types.ErrMalformedResponse) && len(req.History) > 0 {
		logging.Get(logging.CategoryRouting).Warn("malformed %s response, retrying without history", req.Mode)
		req.History = nil
		text, err = r.llm.Generate(ctx, req)
	}
	if err != nil {
		return result{}, err
	}
	return textResult(text), nil
}

// history returns prior utterances as model turns, excluding the current one.
// A read failure is logged and yields no history.
func (r *Router) history(ctx context.Context, c *call) []llm.Turn {
	us, err := r.store.ListUtterances(ctx, r.window+1)
	if err != nil {
		logging.Get(logging.CategoryRouting).Warn("history unavailable: %v", err)
		return nil
	}

	turns := make([]llm.Turn, 0, len(us))
	for _, u := range us {
		if c.seq != 0 && u.Seq == c.seq {
			continue
		}
		text := u.Text
		if u.IsCompressed() {
			text = codec.Decode(*u.TokenIndex, r.dict)
		}
		role := llm.RoleUser
		if u.Sender.IsAgent() {
			role = llm.RoleModel
		}
		turns = append(turns, llm.Turn{Role: role, Text: text})
	}
	if len(turns) > r.window {
		turns = turns[len(turns)-r.window:]
	}
	return turns
}

// lastUserText returns the newest prior non-command text the user sent.
func (r *Router) lastUserText(ctx context.Context, c *call) string {
	us, err := r.store.ListUtterances(ctx, r.window+1)
	if err != nil {
		return ""
	}
	for i := len(us) - 1; i >= 0; i-- {
		u := us[i]
		if u.Seq == c.seq || u.Sender.IsAgent() || u.IsCompressed() || strings.HasPrefix(u.Text, "/") {
			continue
		}
		return u.Text
	}
	return ""
}
