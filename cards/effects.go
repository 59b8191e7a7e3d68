package cards

import "fmt"

// Effect verbs. The set is closed: an unknown verb in the manifest is a
// load-time error, never a runtime fallback.
const (
	EffectDealDamage            = "deal_damage"
	EffectBoostStat             = "boost_stat"
	EffectMoveCard              = "move_card"
	EffectAttachCard            = "attach_card"
	EffectSendCheer             = "send_cheer"
	EffectChooseCards           = "choose_cards"
	EffectChooseHolomemForEffect = "choose_holomem_for_effect"
	EffectSwapHolomemToCenter   = "swap_holomem_to_center"
	EffectMakeChoice            = "make_choice"
	EffectRollDie               = "roll_die"
	EffectOshiSkillUse          = "oshi_skill_use"
)

// Effect timings.
const (
	TimingOnPlay           = "on_play"
	TimingOnCollab         = "on_collab"
	TimingOnArtPower       = "on_art_power"
	TimingOnDamageReceived = "on_damage_received"
)

// Condition types.
const (
	ConditionOpponentHasCollab = "opponent_has_collab"
	ConditionAttachedToCard    = "attached_to_card"
	ConditionOshiIs            = "oshi_is"
	ConditionOshiSkillReady    = "oshi_skill_ready"
)

// Damage / cheer target selectors.
const (
	TargetOpponentCollab = "opponent_collab"
	TargetAttacker       = "attacker"
)

// ConditionDef gates an effect. A failed condition skips the effect,
// except make_choice, which falls through to its last branch.
type ConditionDef struct {
	Type    string `json:"condition_type"`
	CardID  string `json:"card_id,omitempty"`
	OshiID  string `json:"oshi_id,omitempty"`
	SkillID string `json:"skill_id,omitempty"`
}

// ChoiceDef is one branch of a make_choice effect.
type ChoiceDef struct {
	Label   string      `json:"label"`
	Effects []EffectDef `json:"effects"`
}

// DieRange maps a die-result window to an effect list.
type DieRange struct {
	Min     int         `json:"min"`
	Max     int         `json:"max"`
	Effects []EffectDef `json:"effects"`
}

// EffectDef is one declarative effect descriptor from the manifest,
// a tagged variant over the closed verb set. Only the fields relevant to
// the verb are populated.
type EffectDef struct {
	Type      string        `json:"effect_type"`
	Timing    string        `json:"timing,omitempty"`
	Condition *ConditionDef `json:"condition,omitempty"`

	// deal_damage / boost_stat
	Amount  int    `json:"amount,omitempty"`
	Special bool   `json:"special,omitempty"`
	Target  string `json:"target,omitempty"`
	Stat    string `json:"stat,omitempty"`

	// OncePerTurn limits a triggered attached effect to one firing per turn.
	OncePerTurn bool `json:"once_per_turn,omitempty"`

	// send_cheer / choose_cards / move_card
	FromZone        string `json:"from_zone,omitempty"`
	ToZone          string `json:"to_zone,omitempty"`
	FromLimit       string `json:"from_limit,omitempty"` // "center_only" restricts opponent_holomem sources
	AmountMin       int    `json:"amount_min,omitempty"`
	AmountMax       int    `json:"amount_max,omitempty"`
	CardTypeFilter  string `json:"card_type_filter,omitempty"`
	RevealChosen    bool   `json:"reveal_chosen,omitempty"`
	RemainingAction string `json:"remaining_cards_action,omitempty"`

	// choose_holomem_for_effect: effects applied to the chosen holomem.
	Effects []EffectDef `json:"effects,omitempty"`

	// make_choice
	Choices []ChoiceDef `json:"choices,omitempty"`

	// roll_die
	DieEffects []DieRange `json:"die_effects,omitempty"`

	// oshi_skill_use
	SkillID string `json:"skill_id,omitempty"`
}

var knownEffectTypes = map[string]bool{
	EffectDealDamage:            true,
	EffectBoostStat:             true,
	EffectMoveCard:              true,
	EffectAttachCard:            true,
	EffectSendCheer:             true,
	EffectChooseCards:           true,
	EffectChooseHolomemForEffect: true,
	EffectSwapHolomemToCenter:   true,
	EffectMakeChoice:            true,
	EffectRollDie:               true,
	EffectOshiSkillUse:          true,
}

var knownConditionTypes = map[string]bool{
	ConditionOpponentHasCollab: true,
	ConditionAttachedToCard:    true,
	ConditionOshiIs:            true,
	ConditionOshiSkillReady:    true,
}

// validateEffects walks an effect list recursively and rejects unknown
// verbs or condition types.
func validateEffects(cardID string, effects []EffectDef) error {
	for i := range effects {
		ef := &effects[i]
		if !knownEffectTypes[ef.Type] {
			return fmt.Errorf("card %s: unknown effect type %q", cardID, ef.Type)
		}
		if ef.Condition != nil && !knownConditionTypes[ef.Condition.Type] {
			return fmt.Errorf("card %s: unknown condition type %q", cardID, ef.Condition.Type)
		}
		if err := validateEffects(cardID, ef.Effects); err != nil {
			return err
		}
		for _, ch := range ef.Choices {
			if err := validateEffects(cardID, ch.Effects); err != nil {
				return err
			}
		}
		for _, dr := range ef.DieEffects {
			if err := validateEffects(cardID, dr.Effects); err != nil {
				return err
			}
		}
	}
	return nil
}
