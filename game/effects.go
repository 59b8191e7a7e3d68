package game

import "github.com/willson5127/holocardserver/cards"

// decisionKind is the engine-internal discriminator for the single
// outstanding decision.
type decisionKind int

const (
	decisionNone decisionKind = iota
	decisionMulligan
	decisionPlacement
	decisionMainStep
	decisionPerformanceStep
	decisionCheerStep
	decisionLifeCheer
	decisionEffectSendCheer
	decisionChooseCards
	decisionChooseHolomem
	decisionSwapToCenter
	decisionChoice
)

// Decision is the single outstanding player decision. Exactly one may be
// pending at a time; any other action is rejected while it is.
type Decision struct {
	kind           decisionKind
	Type           string
	EffectPlayerID string

	AmountMin int
	AmountMax int
	FromZone  string
	ToZone    string

	FromOptions    []string
	ToOptions      []string
	CardsCanChoose []string

	RemainingAction string
	Choices         []cards.ChoiceDef

	// availableActions backs main/performance step decisions; actions are
	// validated against this list before execution.
	availableActions []map[string]any

	// Effect continuation context.
	source       *CardInstance
	effectPlayer *PlayerState
	childEffects []cards.EffectDef
}

// stack item kinds. Internal pseudo-effects keep multi-stage resolution
// (art damage after revenge, support discard after its effects) on the
// same LIFO stack as card effects, so emission order is a pure function
// of state and action.
type itemKind int

const (
	itemEffect itemKind = iota
	itemArtDamage
	itemDiscardFloating
	itemAfterArt
)

type stackItem struct {
	kind   itemKind
	effect *cards.EffectDef
	source *CardInstance
	player *PlayerState
	// holder is the holomem carrying source when the effect is an
	// attached trigger; used by attached_to_card conditions.
	holder *CardInstance
	// target is the chosen holomem for choose_holomem child effects.
	target *CardInstance
}

// artContext tracks the art currently resolving.
type artContext struct {
	performer *CardInstance
	target    *CardInstance
	art       *cards.ArtDef
	power     int
	playerID  string
}

// pushEffects pushes an effect list so it resolves in list order.
func (e *GameEngine) pushEffects(effects []cards.EffectDef, source *CardInstance, player *PlayerState, holder, target *CardInstance) {
	for i := len(effects) - 1; i >= 0; i-- {
		e.stack = append(e.stack, stackItem{
			kind:   itemEffect,
			effect: &effects[i],
			source: source,
			player: player,
			holder: holder,
			target: target,
		})
	}
}

func (e *GameEngine) pushItem(item stackItem) {
	e.stack = append(e.stack, item)
}

func (e *GameEngine) popItem() stackItem {
	item := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return item
}

// checkCondition evaluates an effect's gating condition.
func (e *GameEngine) checkCondition(cond *cards.ConditionDef, item stackItem) bool {
	if cond == nil {
		return true
	}
	switch cond.Type {
	case cards.ConditionOpponentHasCollab:
		return len(e.Opponent(item.player).Collab) > 0
	case cards.ConditionAttachedToCard:
		return item.holder != nil && item.holder.CardID() == cond.CardID
	case cards.ConditionOshiIs:
		return item.player.Oshi != nil && item.player.Oshi.CardID() == cond.OshiID
	case cards.ConditionOshiSkillReady:
		return e.oshiSkillReady(item.player, cond.SkillID)
	}
	return false
}

func (e *GameEngine) oshiSkillReady(p *PlayerState, skillID string) bool {
	if p.Oshi == nil {
		return false
	}
	skill := p.Oshi.Def.OshiSkill(skillID)
	if skill == nil {
		return false
	}
	if p.OshiSkillUsed(skillID, skill.LimitedPer) {
		return false
	}
	return len(p.Holopower) >= skill.HolopowerCost
}

// executeItem resolves one stack item. It may set a decision, in which
// case the caller stops draining until the decision resolves.
func (e *GameEngine) executeItem(item stackItem) {
	switch item.kind {
	case itemEffect:
		e.executeEffect(item)
	case itemArtDamage:
		e.executeArtDamage()
	case itemDiscardFloating:
		e.discardFloating(item.player)
	case itemAfterArt:
		e.currentArt = nil
	}
}

func (e *GameEngine) executeEffect(item stackItem) {
	ef := item.effect
	if ef.Type != cards.EffectMakeChoice && !e.checkCondition(ef.Condition, item) {
		return
	}

	switch ef.Type {
	case cards.EffectDealDamage:
		target := e.resolveDamageTarget(ef.Target, item)
		if target == nil {
			return
		}
		e.applyDamage(target, ef.Amount, ef.Special)

	case cards.EffectBoostStat:
		if e.currentArt == nil {
			return
		}
		e.currentArt.power += ef.Amount
		e.addEvent(EventBoostStat, map[string]any{
			"card_id": e.currentArt.performer.GameCardID,
			"stat":    ef.Stat,
			"amount":  ef.Amount,
		})

	case cards.EffectMoveCard:
		e.executeMoveCardEffect(ef, item.player)

	case cards.EffectAttachCard:
		if item.target == nil || e.floating == nil {
			return
		}
		card := e.floating
		e.floating = nil
		item.target.AttachedSupport = append(item.target.AttachedSupport, card)
		e.addEvent(EventMoveCard, map[string]any{
			"moving_player_id": item.player.PlayerID,
			"from_zone":        ZoneFloating,
			"to_zone":          ZoneHolomem,
			"holomem_id":       item.target.GameCardID,
			"card_id":          card.GameCardID,
		})

	case cards.EffectSendCheer:
		e.openSendCheerDecision(ef, item.player)

	case cards.EffectChooseCards:
		e.openChooseCardsDecision(ef, item.player)

	case cards.EffectChooseHolomemForEffect:
		candidates := item.player.InPlay()
		if len(candidates) == 0 {
			return
		}
		e.decision = &Decision{
			kind:           decisionChooseHolomem,
			Type:           EventDecisionChooseHolomem,
			EffectPlayerID: item.player.PlayerID,
			AmountMin:      1,
			AmountMax:      1,
			CardsCanChoose: idsOf(candidates),
			source:         item.source,
			effectPlayer:   item.player,
			childEffects:   ef.Effects,
		}
		e.addEvent(EventDecisionChooseHolomem, map[string]any{
			"effect_player_id": item.player.PlayerID,
			"cards_can_choose": e.decision.CardsCanChoose,
		})

	case cards.EffectSwapHolomemToCenter:
		if len(item.player.Center) == 0 {
			return
		}
		var candidates []*CardInstance
		for _, c := range item.player.Backstage {
			if !c.Resting {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) == 0 {
			return
		}
		e.decision = &Decision{
			kind:           decisionSwapToCenter,
			Type:           EventDecisionSwapToCenter,
			EffectPlayerID: item.player.PlayerID,
			AmountMin:      1,
			AmountMax:      1,
			CardsCanChoose: idsOf(candidates),
			effectPlayer:   item.player,
		}
		e.addEvent(EventDecisionSwapToCenter, map[string]any{
			"effect_player_id": item.player.PlayerID,
			"cards_can_choose": e.decision.CardsCanChoose,
		})

	case cards.EffectMakeChoice:
		if ef.Condition != nil && !e.checkCondition(ef.Condition, item) {
			// Unavailable choice falls through to its final branch.
			last := ef.Choices[len(ef.Choices)-1]
			e.pushEffects(last.Effects, item.source, item.player, item.holder, item.target)
			return
		}
		labels := make([]string, len(ef.Choices))
		for i, ch := range ef.Choices {
			labels[i] = ch.Label
		}
		e.decision = &Decision{
			kind:           decisionChoice,
			Type:           EventDecisionChoice,
			EffectPlayerID: item.player.PlayerID,
			Choices:        ef.Choices,
			source:         item.source,
			effectPlayer:   item.player,
		}
		e.addEvent(EventDecisionChoice, map[string]any{
			"effect_player_id": item.player.PlayerID,
			"choice":           labels,
		})

	case cards.EffectRollDie:
		result := e.rng.NextDie()
		e.addEvent(EventRollDie, map[string]any{
			"effect_player_id": item.player.PlayerID,
			"die_result":       result,
			"rigged":           false,
		})
		for _, dr := range ef.DieEffects {
			if result >= dr.Min && result <= dr.Max {
				e.pushEffects(dr.Effects, item.source, item.player, item.holder, item.target)
			}
		}

	case cards.EffectOshiSkillUse:
		e.activateOshiSkill(item.player, ef.SkillID)
	}
}

// resolveDamageTarget maps a damage target selector to a holomem.
func (e *GameEngine) resolveDamageTarget(selector string, item stackItem) *CardInstance {
	switch selector {
	case cards.TargetAttacker:
		if e.currentArt == nil {
			return nil
		}
		return e.currentArt.performer
	case cards.TargetOpponentCollab:
		opp := e.Opponent(item.player)
		if len(opp.Collab) == 0 {
			return nil
		}
		return opp.Collab[0]
	}
	return nil
}

// executeMoveCardEffect covers the generic zone moves the manifest needs:
// deck-to-hand draws and holopower-to-archive spends.
func (e *GameEngine) executeMoveCardEffect(ef *cards.EffectDef, p *PlayerState) {
	amount := ef.Amount
	if amount <= 0 {
		amount = 1
	}
	switch {
	case ef.FromZone == ZoneDeck && ef.ToZone == ZoneHand:
		drawn := p.DrawCards(amount)
		e.addEventHidden(EventDraw, p.PlayerID, []string{"drawn_card_ids"}, map[string]any{
			"player_id":      p.PlayerID,
			"drawn_card_ids": idsOf(drawn),
		})
	case ef.FromZone == ZoneHolopower && ef.ToZone == ZoneArchive:
		e.spendHolopower(p, amount)
	}
}

func (e *GameEngine) spendHolopower(p *PlayerState, n int) {
	for i := 0; i < n && len(p.Holopower) > 0; i++ {
		card := p.Holopower[0]
		p.Holopower = p.Holopower[1:]
		p.ArchiveCard(card)
		e.addEvent(EventMoveCard, map[string]any{
			"moving_player_id": p.PlayerID,
			"from_zone":        ZoneHolopower,
			"to_zone":          ZoneArchive,
			"card_id":          card.GameCardID,
		})
	}
}

// activateOshiSkill pays the holopower cost, marks usage, and queues the
// skill's effects.
func (e *GameEngine) activateOshiSkill(p *PlayerState, skillID string) {
	skill := p.Oshi.Def.OshiSkill(skillID)
	if skill == nil || !e.oshiSkillReady(p, skillID) {
		return
	}
	e.addEvent(EventOshiSkillActivation, map[string]any{
		"oshi_player_id": p.PlayerID,
		"skill_id":       skillID,
	})
	e.spendHolopower(p, skill.HolopowerCost)
	p.MarkOshiSkillUsed(skillID)
	e.pushEffects(skill.Effects, p.Oshi, p, nil, nil)
}

// openSendCheerDecision builds the option sets for a send_cheer effect.
// When no source cheer exists the effect resolves to nothing, silently.
func (e *GameEngine) openSendCheerDecision(ef *cards.EffectDef, p *PlayerState) {
	var fromOptions []string
	fromZone := ef.FromZone
	switch fromZone {
	case ZoneOpponentHolomem:
		opp := e.Opponent(p)
		sources := opp.InPlay()
		if ef.FromLimit == "center_only" {
			sources = opp.Center
		}
		for _, holomem := range sources {
			fromOptions = append(fromOptions, idsOf(holomem.AttachedCheer)...)
		}
	case ZoneHolomem:
		for _, holomem := range p.InPlay() {
			fromOptions = append(fromOptions, idsOf(holomem.AttachedCheer)...)
		}
	}
	if len(fromOptions) == 0 {
		return
	}

	amountMin := ef.AmountMin
	if amountMin > len(fromOptions) {
		amountMin = len(fromOptions)
	}
	amountMax := ef.AmountMax
	if amountMax > len(fromOptions) {
		amountMax = len(fromOptions)
	}

	var toOptions []string
	if ef.ToZone == ZoneArchive {
		toOptions = []string{ZoneArchive}
	} else {
		toOptions = idsOf(p.InPlay())
	}

	e.decision = &Decision{
		kind:           decisionEffectSendCheer,
		Type:           EventDecisionSendCheer,
		EffectPlayerID: p.PlayerID,
		AmountMin:      amountMin,
		AmountMax:      amountMax,
		FromZone:       fromZone,
		ToZone:         ef.ToZone,
		FromOptions:    fromOptions,
		ToOptions:      toOptions,
		effectPlayer:   p,
	}
	e.addEvent(EventDecisionSendCheer, map[string]any{
		"effect_player_id": p.PlayerID,
		"amount_min":       amountMin,
		"amount_max":       amountMax,
		"from_zone":        fromZone,
		"to_zone":          ef.ToZone,
		"from_options":     fromOptions,
		"to_options":       toOptions,
	})
}

// openChooseCardsDecision presents a filtered card set. An empty
// candidate list still pauses on a decision (the player confirms with an
// empty pick), matching the effect's observable contract.
func (e *GameEngine) openChooseCardsDecision(ef *cards.EffectDef, p *PlayerState) {
	var candidates []*CardInstance
	if ef.FromZone == ZoneArchive {
		for _, card := range p.Archive {
			if ef.CardTypeFilter == "" || card.Def.CardType == ef.CardTypeFilter {
				candidates = append(candidates, card)
			}
		}
	}

	amountMin := ef.AmountMin
	if amountMin > len(candidates) {
		amountMin = len(candidates)
	}

	e.decision = &Decision{
		kind:            decisionChooseCards,
		Type:            EventDecisionChooseCards,
		EffectPlayerID:  p.PlayerID,
		AmountMin:       amountMin,
		AmountMax:       ef.AmountMax,
		FromZone:        ef.FromZone,
		ToZone:          ef.ToZone,
		CardsCanChoose:  idsOf(candidates),
		RemainingAction: ef.RemainingAction,
		effectPlayer:    p,
	}
	e.addEvent(EventDecisionChooseCards, map[string]any{
		"effect_player_id":       p.PlayerID,
		"from_zone":              ef.FromZone,
		"to_zone":                ef.ToZone,
		"amount_min":             amountMin,
		"amount_max":             ef.AmountMax,
		"reveal_chosen":          ef.RevealChosen,
		"remaining_cards_action": ef.RemainingAction,
		"cards_can_choose":       e.decision.CardsCanChoose,
	})
}

// discardFloating archives a played support that did not attach itself.
func (e *GameEngine) discardFloating(p *PlayerState) {
	if e.floating == nil {
		return
	}
	card := e.floating
	e.floating = nil
	p.ArchiveCard(card)
	e.addEvent(EventMoveCard, map[string]any{
		"moving_player_id": p.PlayerID,
		"from_zone":        ZoneFloating,
		"to_zone":          ZoneArchive,
		"card_id":          card.GameCardID,
	})
}
