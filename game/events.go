package game

import "encoding/json"

// UnknownCardID is the sentinel sent in place of a card identity the
// recipient is not allowed to see.
const UnknownCardID = "UNKNOWN_CARD_ID"

// Event type names. These are the stable wire names.
const (
	EventMulliganDecision   = "Decision_Mulligan"
	EventMulligan           = "Mulligan"
	EventPlacementDecision  = "Decision_InitialPlacement"
	EventInitialPlacement   = "InitialPlacement"
	EventGameStart          = "GameStart"
	EventEndTurn            = "EndTurn"
	EventStartTurn          = "StartTurn"
	EventResetStepActivate  = "ResetStepActivate"
	EventResetStepCollab    = "ResetStepCollab"
	EventDraw               = "Draw"
	EventCheerStep          = "CheerStep"
	EventMoveCard           = "MoveCard"
	EventMoveAttachedCard   = "MoveAttachedCard"
	EventPlaySupportCard    = "PlaySupportCard"
	EventBloom              = "Bloom"
	EventCollab             = "Collab"
	EventBatonPass          = "BatonPass"
	EventBoostStat          = "BoostStat"
	EventPerformArt         = "PerformArt"
	EventDamageDealt        = "DamageDealt"
	EventDownedBefore       = "DownedHolomem_Before"
	EventDowned             = "DownedHolomem"
	EventGameOver           = "GameOver"
	EventRollDie            = "RollDie"
	EventOshiSkillActivation = "OshiSkillActivation"
	EventGameError          = "GameError"

	EventDecisionMainStep         = "Decision_MainStep"
	EventDecisionPerformanceStep  = "Decision_PerformanceStep"
	EventDecisionSendCheer        = "Decision_SendCheer"
	EventDecisionChooseCards      = "Decision_ChooseCards"
	EventDecisionChooseHolomem    = "Decision_ChooseHolomemForEffect"
	EventDecisionSwapToCenter     = "Decision_SwapHolomemToCenter"
	EventDecisionChoice           = "Decision_Choice"
)

// Internal keys stripped from events before they reach a client. They
// mark fields whose values must be masked for everyone but hiddenFor.
const (
	hiddenForKey    = "hidden_info_player"
	hiddenFieldsKey = "hidden_info_fields"
)

// Event is one record in the match event log.
type Event struct {
	Type     string
	PlayerID string // the observer the event was grabbed for (set by GameEngine.GrabEvents)
	Data     map[string]any
}

// MarshalJSON flattens the event into a single object with event_type and
// event_player_id alongside the payload fields.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+2)
	for k, v := range e.Data {
		out[k] = v
	}
	out["event_type"] = e.Type
	out["event_player_id"] = e.PlayerID
	return json.Marshal(out)
}

// EventLog is the append-only per-match event log with one read cursor
// per observer.
type EventLog struct {
	events  []Event
	cursors map[string]int
}

// NewEventLog returns an empty log.
func NewEventLog() *EventLog {
	return &EventLog{cursors: make(map[string]int)}
}

// Add appends one event.
func (l *EventLog) Add(e Event) {
	l.events = append(l.events, e)
}

// Len returns the total number of events appended so far.
func (l *EventLog) Len() int {
	return len(l.events)
}

// Grab returns the events appended since the observer's last Grab, each
// redacted for that observer, and advances the observer's cursor.
func (l *EventLog) Grab(observerID string) []Event {
	start := l.cursors[observerID]
	l.cursors[observerID] = len(l.events)
	if start >= len(l.events) {
		return nil
	}
	out := make([]Event, 0, len(l.events)-start)
	for _, e := range l.events[start:] {
		out = append(out, redactEvent(e, observerID))
	}
	return out
}

// redactEvent produces the observer's view of an event: fields named in
// hidden_info_fields are masked with UnknownCardID unless the observer is
// the hidden_info_player. The marker keys themselves never leave the server.
func redactEvent(e Event, observerID string) Event {
	owner, _ := e.Data[hiddenForKey].(string)
	fields, _ := e.Data[hiddenFieldsKey].([]string)

	out := Event{Type: e.Type, PlayerID: e.PlayerID, Data: make(map[string]any, len(e.Data))}
	for k, v := range e.Data {
		if k == hiddenForKey || k == hiddenFieldsKey {
			continue
		}
		out.Data[k] = v
	}
	if owner == "" || owner == observerID {
		return out
	}
	for _, f := range fields {
		switch v := out.Data[f].(type) {
		case string:
			out.Data[f] = UnknownCardID
		case []string:
			masked := make([]string, len(v))
			for i := range masked {
				masked[i] = UnknownCardID
			}
			out.Data[f] = masked
		}
	}
	return out
}

// hidden marks payload fields as visible only to ownerID. Pass the result
// map to event construction via merging.
func hidden(ownerID string, fields ...string) map[string]any {
	return map[string]any{
		hiddenForKey:    ownerID,
		hiddenFieldsKey: fields,
	}
}
