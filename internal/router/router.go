// Package router classifies each utterance and dispatches it.
//
// Classification is an ordered rule table evaluated over the trimmed input:
// a pending follow-up first, then exact dictionary phrases, registered slash
// commands, keyword intents, and finally free chat. Handler errors and panics
// are converted into bot-visible text here and never reach the caller.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"commlink/internal/codec"
	"commlink/internal/llm"
	"commlink/internal/logging"
	"commlink/internal/store"
	"commlink/internal/types"
)

// Bot-visible failure messages, one per error class.
const (
	MsgServiceUnavailable = "📡 The assistant is unavailable right now. Please try again in a moment."
	MsgMalformedResponse  = "🤔 The assistant sent an unexpected response. Please try again."
	MsgStoreFailure       = "💾 Storage problem: this message may not have been saved. You can keep chatting."
	MsgGenericFailure     = "❌ Something went wrong handling that request."
)

// Reminders is the part of the scheduler the router needs.
type Reminders interface {
	Schedule(ctx context.Context, delay time.Duration, message string) (types.ReminderRecord, error)
	Pending(ctx context.Context) ([]types.ReminderRecord, error)
}

// Options configures a Router.
type Options struct {
	Dictionary codec.Dictionary
	// Admins may run /admin.
	Admins []string
	// IsAdmin, when set, decides /admin access instead of Admins.
	IsAdmin func(id string) bool
	// HistoryWindow is how many prior utterances chat and summary see.
	HistoryWindow int
	// Phase reports the session phase for /admin. Optional.
	Phase func() types.SessionPhase
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Router owns the PendingConfirmation of one session.
type Router struct {
	store     store.Store
	llm       llm.Client
	reminders Reminders
	dict      codec.Dictionary
	isAdmin   func(string) bool
	window    int
	phase     func() types.SessionPhase
	now       func() time.Time

	rules    []rule
	handlers map[string]handlerFunc

	mu      sync.Mutex
	pending *PendingConfirmation
}

// call is one dispatch in flight.
type call struct {
	identity types.Identity
	input    string
	verb     string
	args     string
	cmd      *CommandInfo
	seq      int64 // Seq of the stored user utterance, 0 if it was not stored
}

type handlerFunc func(ctx context.Context, c *call) (result, error)

type rule struct {
	class  Classification
	match  func(c *call) bool
	handle handlerFunc
}

// New creates a Router.
func New(st store.Store, client llm.Client, reminders Reminders, opts Options) *Router {
	if opts.Dictionary == nil {
		opts.Dictionary = codec.DefaultDictionary()
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	isAdmin := opts.IsAdmin
	if isAdmin == nil {
		admins := make(map[string]bool, len(opts.Admins))
		for _, a := range opts.Admins {
			admins[a] = true
		}
		isAdmin = func(id string) bool { return admins[id] }
	}

	r := &Router{
		store:     st,
		llm:       client,
		reminders: reminders,
		dict:      opts.Dictionary,
		isAdmin:   isAdmin,
		window:    opts.HistoryWindow,
		phase:     opts.Phase,
		now:       opts.Now,
	}

	r.handlers = map[string]handlerFunc{
		"/ask":       r.handleAsk,
		"/summary":   r.handleSummary,
		"/optimize":  r.handleOptimize,
		"/weather":   r.handleWeatherCommand,
		"/crypto":    r.handleCrypto,
		"/speak":     r.handleSpeak,
		"/remindme":  r.handleRemindMe,
		"/archive":   r.handleArchive,
		"/tokenlist": r.handleTokenList,
		"/help":      r.handleHelp,
		"/admin":     r.handleAdmin,
	}

	r.rules = []rule{
		{ClassFollowup, r.hasPending, r.handleFollowup},
		{ClassToken, r.isToken, r.handleToken},
		{ClassCommand, r.isCommand, r.handleCommand},
		{ClassIntent, isIntent, r.handleIntent},
		{ClassChat, func(*call) bool { return true }, r.handleChat},
	}
	return r
}

// Pending returns a copy of the pending confirmation, or nil.
func (r *Router) Pending() *PendingConfirmation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return nil
	}
	p := *r.pending
	return &p
}

func (r *Router) setPending(p *PendingConfirmation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = p
}

func (r *Router) takePending() *PendingConfirmation {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pending
	r.pending = nil
	return p
}

// Dictionary returns the phrase dictionary in use.
func (r *Router) Dictionary() codec.Dictionary { return r.dict }

// Classify reports which rule would claim input, without dispatching.
func (r *Router) Classify(input string) Classification {
	c := r.newCall(types.Identity{}, input)
	for _, rl := range r.rules {
		if rl.match(c) {
			return rl.class
		}
	}
	return ClassChat
}

func (r *Router) newCall(id types.Identity, input string) *call {
	c := &call{identity: id, input: strings.TrimSpace(input)}
	if strings.HasPrefix(c.input, "/") {
		c.verb, c.args = splitCommand(c.input)
		c.verb = strings.ToLower(c.verb)
		c.cmd = FindCommand(c.verb)
	}
	return c
}

// Route classifies and dispatches one utterance. It never fails: every
// error is rendered into Reply.Text.
func (r *Router) Route(ctx context.Context, id types.Identity, input string) (reply Reply) {
	c := r.newCall(id, input)
	if c.input == "" {
		return Reply{Kind: KindIgnored}
	}

	var rl rule
	for _, candidate := range r.rules {
		if candidate.match(c) {
			rl = candidate
			break
		}
	}
	reply.Classification = rl.class
	logging.RoutingDebug("classified %q as %s", truncate(c.input, 60), rl.class)

	defer func() {
		if p := recover(); p != nil {
			logging.Get(logging.CategoryRouting).Error("handler panic (%s): %v", rl.class, p)
			reply = Reply{
				Kind:           KindText,
				Classification: rl.class,
				Text:           MsgGenericFailure,
				Err:            fmt.Errorf("handler panic: %v", p),
			}
			r.appendBot(ctx, reply.Text)
		}
	}()

	// Compressed utterances are stored by their handler; everything else is
	// recorded verbatim before dispatch.
	if rl.class != ClassToken {
		c.seq = r.appendUser(ctx, c)
	}

	res, err := rl.handle(ctx, c)
	if err != nil {
		reply.Kind = KindText
		reply.Text = r.renderError(c, err)
		reply.Err = err
		r.appendBot(ctx, reply.Text)
		return reply
	}

	reply.Kind = res.kind
	reply.Text = res.text
	reply.Intent = res.intent
	reply.Pending = res.pending
	reply.Audio = res.audio
	reply.TokenIndex = res.token
	if res.pending != nil {
		r.setPending(res.pending)
	}
	if res.kind == KindStored {
		return reply
	}
	r.appendBot(ctx, reply.Text)
	return reply
}

func (r *Router) appendUser(ctx context.Context, c *call) int64 {
	sender := c.identity.ID
	if sender == "" {
		sender = "anonymous"
	}
	u, err := r.store.AppendUtterance(ctx, types.Utterance{Sender: sender, Text: c.input})
	if err != nil {
		logging.Get(logging.CategoryRouting).Warn("failed to record user utterance: %v", err)
		return 0
	}
	return u.Seq
}

func (r *Router) appendBot(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if _, err := r.store.AppendUtterance(ctx, types.Utterance{Sender: types.SenderBot, Text: text}); err != nil {
		logging.Get(logging.CategoryRouting).Warn("failed to record bot reply: %v", err)
	}
}

// renderError maps the error taxonomy onto bot-visible text.
func (r *Router) renderError(c *call, err error) string {
	switch {
	case errors.Is(err, types.ErrValidation):
		logging.RoutingDebug("validation failure for %s: %v", c.verb, err)
		if c.cmd != nil {
			return "⚠️ Usage: " + c.cmd.Usage
		}
		return "⚠️ " + err.Error()
	case errors.Is(err, types.ErrServiceUnavailable):
		logging.Get(logging.CategoryRouting).Warn("service unavailable: %v", err)
		return MsgServiceUnavailable
	case errors.Is(err, types.ErrMalformedResponse):
		logging.Get(logging.CategoryRouting).Warn("malformed response: %v", err)
		return MsgMalformedResponse
	case errors.Is(err, types.ErrStore):
		logging.Get(logging.CategoryRouting).Error("store failure: %v", err)
		return MsgStoreFailure
	default:
		logging.Get(logging.CategoryRouting).Error("handler failed: %v", err)
		return MsgGenericFailure
	}
}

// =============================================================================
// RULE PREDICATES
// =============================================================================

func (r *Router) hasPending(*call) bool {
	return r.Pending() != nil
}

func (r *Router) isToken(c *call) bool {
	_, ok := codec.Encode(c.input, r.dict)
	return ok
}

// isCommand matches registered verbs only; unknown verbs fall through to chat.
func (r *Router) isCommand(c *call) bool {
	return c.cmd != nil
}

// isIntent never claims slash input; a verb the command rule declined is chat.
func isIntent(c *call) bool {
	if strings.HasPrefix(c.input, "/") {
		return false
	}
	lower := strings.ToLower(c.input)
	return strings.Contains(lower, "archive") || strings.Contains(lower, "weather")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
