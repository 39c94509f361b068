package router

import "commlink/internal/audio"

// Classification is the rule that claimed an utterance.
type Classification string

const (
	ClassFollowup Classification = "followup"
	ClassToken    Classification = "token"
	ClassCommand  Classification = "command"
	ClassIntent   Classification = "intent"
	ClassChat     Classification = "chat"
)

// ReplyKind describes what a dispatch produced.
type ReplyKind string

const (
	// KindText is content appended verbatim as the bot reply.
	KindText ReplyKind = "text"
	// KindIntent is an {action, argument} pair the router interpreted.
	KindIntent ReplyKind = "intent"
	// KindAction is a side-effecting directive held for confirmation;
	// its details are echoed as the bot reply.
	KindAction ReplyKind = "action"
	// KindStored means the utterance was compressed and stored; no bot reply.
	KindStored ReplyKind = "stored"
	// KindAudio carries a synthesized clip.
	KindAudio ReplyKind = "audio"
	// KindIgnored is returned for blank input.
	KindIgnored ReplyKind = "ignored"
)

// ActionKind names an action that waits for a yes/no follow-up.
type ActionKind string

const ActionArchiveConfirm ActionKind = "ARCHIVE_CONFIRM"

// PendingConfirmation exists only between an action that needs confirmation
// and the next utterance, which always clears it.
type PendingConfirmation struct {
	Action  ActionKind
	Details string
}

// IntentAction names a natural-language intent.
type IntentAction string

const (
	IntentArchiveAccess IntentAction = "ARCHIVE_ACCESS"
	IntentWeatherLookup IntentAction = "WEATHER_LOOKUP"
)

// Intent is a classified natural-language request.
type Intent struct {
	Action   IntentAction
	Argument string
}

// Reply is what the caller shows for one utterance.
type Reply struct {
	Kind           ReplyKind
	Classification Classification
	// Text is the bot-visible reply. Empty for KindStored and KindIgnored.
	Text string
	// Intent is set when the utterance was classified as an intent.
	Intent *Intent
	// Pending is set when the reply is waiting for a yes/no follow-up.
	Pending *PendingConfirmation
	// Audio is set for KindAudio.
	Audio *audio.Clip
	// TokenIndex is set for KindStored.
	TokenIndex *int
	// Err is the handler error that was converted into Text, if any.
	Err error
}

// result is what a handler returns before the router records it.
type result struct {
	kind    ReplyKind
	text    string
	intent  *Intent
	pending *PendingConfirmation
	audio   *audio.Clip
	token   *int
}

func textResult(s string) result { return result{kind: KindText, text: s} }
