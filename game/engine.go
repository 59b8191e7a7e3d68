package game

import (
	"fmt"
	"log/slog"

	"github.com/willson5127/holocardserver/cards"
)

// GamePhase is the engine's resting state between inbound actions.
type GamePhase string

const (
	PhaseMulligan    GamePhase = "mulligan"
	PhasePlacement   GamePhase = "initial_placement"
	PhaseCheer       GamePhase = "cheer"
	PhaseMain        GamePhase = "main"
	PhasePerformance GamePhase = "performance"
	PhaseGameOver    GamePhase = "game_over"
)

// PlayerConfig carries one player's identity and validated deck into a match.
type PlayerConfig struct {
	PlayerID  string
	Name      string
	OshiID    string
	Deck      map[string]int
	CheerDeck map[string]int
}

// GameEngine is the authoritative state machine for one match.
type GameEngine struct {
	db  *cards.Database
	rng Rand

	players [2]*PlayerState
	log     *EventLog

	cardTable   map[string]*CardInstance
	nextCardSeq map[string]int

	ActivePlayerID   string
	StartingPlayerID string
	TurnNumber       int
	Phase            GamePhase

	decision   *Decision
	stack      []stackItem
	floating   *CardInstance
	currentArt *artContext

	gameOver       bool
	GameOverReason string
	WinnerID       string

	mulliganOrder []string
	placementOrder []string
}

// NewGameEngine builds a match from two validated deck submissions.
// Deck and cheer maps are expanded in card-database manifest order so the
// construction is deterministic given the PRNG seed.
func NewGameEngine(db *cards.Database, rng Rand, p0, p1 PlayerConfig) (*GameEngine, error) {
	e := &GameEngine{
		db:          db,
		rng:         rng,
		log:         NewEventLog(),
		cardTable:   make(map[string]*CardInstance),
		nextCardSeq: make(map[string]int),
	}
	for i, cfg := range []PlayerConfig{p0, p1} {
		player, err := e.buildPlayer(cfg)
		if err != nil {
			return nil, err
		}
		e.players[i] = player
	}
	return e, nil
}

func (e *GameEngine) buildPlayer(cfg PlayerConfig) (*PlayerState, error) {
	p := &PlayerState{PlayerID: cfg.PlayerID, Name: cfg.Name}

	oshiDef, ok := e.db.Get(cfg.OshiID)
	if !ok || oshiDef.CardType != cards.TypeOshi {
		return nil, fmt.Errorf("player %s: invalid oshi %s", cfg.PlayerID, cfg.OshiID)
	}
	p.Oshi = e.newInstance(oshiDef, cfg.PlayerID)

	for _, cardID := range e.db.AllCardIDs() {
		if count := cfg.Deck[cardID]; count > 0 {
			def, _ := e.db.Get(cardID)
			for i := 0; i < count; i++ {
				p.Deck = append(p.Deck, e.newInstance(def, cfg.PlayerID))
			}
		}
	}
	for _, cardID := range e.db.AllCardIDs() {
		if count := cfg.CheerDeck[cardID]; count > 0 {
			def, _ := e.db.Get(cardID)
			for i := 0; i < count; i++ {
				p.CheerDeck = append(p.CheerDeck, e.newInstance(def, cfg.PlayerID))
			}
		}
	}
	return p, nil
}

func (e *GameEngine) newInstance(def *cards.CardDef, ownerID string) *CardInstance {
	seq := e.nextCardSeq[ownerID]
	e.nextCardSeq[ownerID] = seq + 1
	inst := &CardInstance{
		GameCardID: fmt.Sprintf("%s_%d", ownerID, seq),
		OwnerID:    ownerID,
		Def:        def,
	}
	e.cardTable[inst.GameCardID] = inst
	return inst
}

// GetPlayer returns the state for a player id, or nil.
func (e *GameEngine) GetPlayer(playerID string) *PlayerState {
	for _, p := range e.players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Opponent returns the other player's state.
func (e *GameEngine) Opponent(p *PlayerState) *PlayerState {
	if e.players[0] == p {
		return e.players[1]
	}
	return e.players[0]
}

// IsGameOver reports whether the match has ended.
func (e *GameEngine) IsGameOver() bool {
	return e.gameOver
}

// Rand exposes the match randomness source (tests queue die rolls on it).
func (e *GameEngine) Rand() Rand {
	return e.rng
}

// GrabEvents returns the newest batch of events for the observer, each
// redacted for that observer, and advances the observer's cursor.
func (e *GameEngine) GrabEvents(observerID string) []Event {
	events := e.log.Grab(observerID)
	for i := range events {
		events[i].PlayerID = observerID
	}
	return events
}

// EventCount returns the total events emitted so far (for the match log).
func (e *GameEngine) EventCount() int {
	return e.log.Len()
}

func (e *GameEngine) addEvent(eventType string, data map[string]any) {
	e.log.Add(Event{Type: eventType, Data: data})
}

// addEventHidden appends an event whose named fields only ownerID may see.
func (e *GameEngine) addEventHidden(eventType, ownerID string, fields []string, data map[string]any) {
	for k, v := range hidden(ownerID, fields...) {
		data[k] = v
	}
	e.log.Add(Event{Type: eventType, Data: data})
}

// Begin shuffles, draws opening hands, and opens the first mulligan
// decision. Call exactly once.
func (e *GameEngine) Begin() {
	starting := e.players[e.rng.Intn(2)]
	e.StartingPlayerID = starting.PlayerID
	other := e.Opponent(starting)
	e.mulliganOrder = []string{starting.PlayerID, other.PlayerID}
	e.placementOrder = e.mulliganOrder

	e.addEvent(EventGameStart, map[string]any{
		"starting_player_id": starting.PlayerID,
		"player_ids":         []string{e.players[0].PlayerID, e.players[1].PlayerID},
	})

	for _, pid := range e.mulliganOrder {
		p := e.GetPlayer(pid)
		p.ShuffleDeck(e.rng)
		e.rng.Shuffle(len(p.CheerDeck), func(i, j int) {
			p.CheerDeck[i], p.CheerDeck[j] = p.CheerDeck[j], p.CheerDeck[i]
		})
		drawn := p.DrawCards(StartingHandSize)
		e.addEventHidden(EventDraw, pid, []string{"drawn_card_ids"}, map[string]any{
			"player_id":      pid,
			"drawn_card_ids": idsOf(drawn),
		})
	}

	e.Phase = PhaseMulligan
	e.openMulliganDecision(e.mulliganOrder[0])
}

func (e *GameEngine) openMulliganDecision(playerID string) {
	e.decision = &Decision{
		kind:           decisionMulligan,
		Type:           EventMulliganDecision,
		EffectPlayerID: playerID,
		effectPlayer:   e.GetPlayer(playerID),
	}
	e.addEvent(EventMulliganDecision, map[string]any{
		"effect_player_id": playerID,
	})
}

func (e *GameEngine) performMulligan(p *PlayerState, forced bool) {
	p.MulliganCount++
	p.ShuffleHandIntoDeck(e.rng)
	drawCount := StartingHandSize - (p.MulliganCount - 1)
	if drawCount < 0 {
		drawCount = 0
	}
	drawn := p.DrawCards(drawCount)
	e.addEventHidden(EventMulligan, p.PlayerID, []string{"drawn_card_ids"}, map[string]any{
		"player_id":      p.PlayerID,
		"forced":         forced,
		"hand_count":     len(p.Hand),
		"drawn_card_ids": idsOf(drawn),
	})
}

func (p *PlayerState) handHasDebut() bool {
	for _, card := range p.Hand {
		if card.Def.CardType == cards.TypeHolomemDebut {
			return true
		}
	}
	return false
}

func (e *GameEngine) handleMulligan(p *PlayerState, data map[string]any) {
	if getBool(data, "do_mulligan") {
		e.performMulligan(p, false)
	}
	// Forced redraws while the hand holds no debut.
	for !p.handHasDebut() && len(p.Hand) > 0 {
		e.performMulligan(p, true)
	}
	if !p.handHasDebut() {
		e.abortMatch("no debut holomem reachable during mulligan")
		return
	}
	p.MulliganDone = true
	e.decision = nil

	for _, pid := range e.mulliganOrder {
		if !e.GetPlayer(pid).MulliganDone {
			e.openMulliganDecision(pid)
			return
		}
	}
	e.Phase = PhasePlacement
	e.openPlacementDecision(e.placementOrder[0])
}

func (e *GameEngine) openPlacementDecision(playerID string) {
	p := e.GetPlayer(playerID)
	var canChoose []string
	for _, card := range p.Hand {
		switch card.Def.CardType {
		case cards.TypeHolomemDebut, cards.TypeHolomemSpot:
			canChoose = append(canChoose, card.GameCardID)
		}
	}
	e.decision = &Decision{
		kind:           decisionPlacement,
		Type:           EventPlacementDecision,
		EffectPlayerID: playerID,
		CardsCanChoose: canChoose,
		effectPlayer:   p,
	}
	e.addEventHidden(EventPlacementDecision, playerID, []string{"cards_can_choose"}, map[string]any{
		"effect_player_id": playerID,
		"cards_can_choose": canChoose,
	})
}

func (e *GameEngine) handleInitialPlacement(p *PlayerState, data map[string]any) {
	centerID := getString(data, "center_id")
	backstageIDs, ok := getStringSlice(data, "backstage_ids")
	if !ok {
		e.rejectAction(p.PlayerID, "invalid backstage_ids")
		return
	}
	center := e.cardTable[centerID]
	if center == nil || center.OwnerID != p.PlayerID || center.Def.CardType != cards.TypeHolomemDebut || !e.inHand(p, center) {
		e.rejectAction(p.PlayerID, "center must be a debut holomem from hand")
		return
	}
	if len(backstageIDs) > BackstageSize {
		e.rejectAction(p.PlayerID, "too many backstage holomem")
		return
	}
	backstage := make([]*CardInstance, 0, len(backstageIDs))
	seen := map[string]bool{centerID: true}
	for _, id := range backstageIDs {
		card := e.cardTable[id]
		if card == nil || card.OwnerID != p.PlayerID || seen[id] || !e.inHand(p, card) {
			e.rejectAction(p.PlayerID, "invalid backstage choice")
			return
		}
		switch card.Def.CardType {
		case cards.TypeHolomemDebut, cards.TypeHolomemSpot:
		default:
			e.rejectAction(p.PlayerID, "backstage must be debut or spot holomem")
			return
		}
		seen[id] = true
		backstage = append(backstage, card)
	}

	p.RemoveFromHand(center)
	p.Center = []*CardInstance{center}
	for _, card := range backstage {
		p.RemoveFromHand(card)
		p.Backstage = append(p.Backstage, card)
	}
	p.PlacementDone = true
	e.decision = nil
	e.addEventHidden(EventInitialPlacement, p.PlayerID, []string{"center_card_id", "backstage_ids"}, map[string]any{
		"player_id":      p.PlayerID,
		"center_card_id": centerID,
		"backstage_ids":  backstageIDs,
	})

	for _, pid := range e.placementOrder {
		if !e.GetPlayer(pid).PlacementDone {
			e.openPlacementDecision(pid)
			return
		}
	}
	e.finishSetup()
}

// finishSetup reveals placements, deals life, and starts turn 1.
func (e *GameEngine) finishSetup() {
	for _, pid := range e.placementOrder {
		p := e.GetPlayer(pid)
		p.Life = make([]*CardInstance, StartingLife)
		copy(p.Life, p.CheerDeck[:StartingLife])
		p.CheerDeck = p.CheerDeck[StartingLife:]
		centerID := ""
		if len(p.Center) > 0 {
			centerID = p.Center[0].GameCardID
		}
		e.addEvent(EventInitialPlacement+"Reveal", map[string]any{
			"player_id":      pid,
			"oshi_id":        p.Oshi.CardID(),
			"center_card_id": centerID,
			"backstage_ids":  idsOf(p.Backstage),
			"life_count":     len(p.Life),
		})
	}
	e.TurnNumber = 0
	e.ActivePlayerID = e.StartingPlayerID
	e.startTurn()
}

// startTurn runs reset, draw, and cheer for the active player. It leaves
// the engine paused on the cheer placement decision (or the main step
// when the cheer deck is empty).
func (e *GameEngine) startTurn() {
	e.TurnNumber++
	p := e.GetPlayer(e.ActivePlayerID)
	p.ResetTurnFlags()

	e.addEvent(EventStartTurn, map[string]any{
		"active_player": p.PlayerID,
		"turn_number":   e.TurnNumber,
	})

	// Reset: wake resting cards first, then return the collab holomem to
	// backstage still resting until next reset.
	var activated []string
	for _, card := range p.InPlay() {
		if card.Resting {
			card.Resting = false
			activated = append(activated, card.GameCardID)
		}
	}
	e.addEvent(EventResetStepActivate, map[string]any{
		"player_id":          p.PlayerID,
		"activated_card_ids": activated,
	})
	var rested []string
	if len(p.Collab) > 0 {
		collab := p.Collab[0]
		p.Collab = nil
		collab.Resting = true
		p.Backstage = append(p.Backstage, collab)
		rested = append(rested, collab.GameCardID)
	}
	e.addEvent(EventResetStepCollab, map[string]any{
		"player_id":       p.PlayerID,
		"rested_card_ids": rested,
	})

	// Draw. An empty deck loses the game on the spot.
	if len(p.Deck) == 0 {
		e.endGame(e.Opponent(p).PlayerID, ReasonDeckOut)
		return
	}
	drawn := p.DrawCards(1)
	e.addEventHidden(EventDraw, p.PlayerID, []string{"drawn_card_ids"}, map[string]any{
		"player_id":      p.PlayerID,
		"drawn_card_ids": idsOf(drawn),
	})

	// Cheer: reveal the top of the cheer deck and ask for a placement.
	if len(p.CheerDeck) > 0 && len(p.InPlay()) > 0 {
		cheer := p.CheerDeck[0]
		options := idsOf(p.InPlay())
		e.Phase = PhaseCheer
		e.decision = &Decision{
			kind:           decisionCheerStep,
			Type:           EventCheerStep,
			EffectPlayerID: p.PlayerID,
			AmountMin:      1,
			AmountMax:      1,
			FromZone:       ZoneCheerDeck,
			ToZone:         ZoneHolomem,
			FromOptions:    []string{cheer.GameCardID},
			ToOptions:      options,
			effectPlayer:   p,
		}
		e.addEvent(EventCheerStep, map[string]any{
			"player_id":      p.PlayerID,
			"cheer_to_place": []string{cheer.GameCardID},
			"cheer_card_id":  cheer.CardID(),
			"from_zone":      ZoneCheerDeck,
			"to_options":     options,
		})
		return
	}

	e.Phase = PhaseMain
	e.openMainStep()
}

func (e *GameEngine) endTurn() {
	p := e.GetPlayer(e.ActivePlayerID)
	next := e.Opponent(p)
	e.addEvent(EventEndTurn, map[string]any{
		"ending_player_id": p.PlayerID,
		"next_player_id":   next.PlayerID,
	})
	e.ActivePlayerID = next.PlayerID
	e.startTurn()
}

// continueGame drains the effect stack and, when it runs dry with no
// decision pending, re-opens the step decision for the current phase.
func (e *GameEngine) continueGame() {
	for !e.gameOver && e.decision == nil {
		if len(e.stack) > 0 {
			e.executeItem(e.popItem())
			continue
		}
		switch e.Phase {
		case PhaseMain:
			e.openMainStep()
		case PhasePerformance:
			e.openPerformanceStep()
		default:
			return
		}
	}
}

// ---- main step ----

func (e *GameEngine) openMainStep() {
	p := e.GetPlayer(e.ActivePlayerID)
	actions := e.mainStepActions(p)
	e.Phase = PhaseMain
	e.decision = &Decision{
		kind:             decisionMainStep,
		Type:             EventDecisionMainStep,
		EffectPlayerID:   p.PlayerID,
		effectPlayer:     p,
		availableActions: actions,
	}
	e.addEvent(EventDecisionMainStep, map[string]any{
		"active_player":     p.PlayerID,
		"available_actions": actions,
	})
}

func (e *GameEngine) mainStepActions(p *PlayerState) []map[string]any {
	var actions []map[string]any

	// Place debut/spot holomem into open backstage slots.
	if len(p.Backstage) < BackstageSize {
		for _, card := range p.Hand {
			switch card.Def.CardType {
			case cards.TypeHolomemDebut, cards.TypeHolomemSpot:
				actions = append(actions, map[string]any{
					"action_type": ActionMainStepPlaceHolomem,
					"card_id":     card.GameCardID,
				})
			}
		}
	}

	// Bloom combinations.
	for _, card := range p.Hand {
		if card.Def.CardType != cards.TypeHolomemBloom {
			continue
		}
		for _, target := range p.InPlay() {
			if e.canBloom(card, target) {
				actions = append(actions, map[string]any{
					"action_type": ActionMainStepBloom,
					"card_id":     card.GameCardID,
					"target_id":   target.GameCardID,
				})
			}
		}
	}

	// Collab: a non-resting backstage holomem into the empty collab slot,
	// paying one deck card into holopower.
	if !p.CollabedThisTurn && len(p.Collab) == 0 && len(p.Deck) > 0 {
		for _, card := range p.Backstage {
			if !card.Resting {
				actions = append(actions, map[string]any{
					"action_type": ActionMainStepCollab,
					"card_id":     card.GameCardID,
				})
			}
		}
	}

	// Baton pass: archive the outgoing center's cheer, swap with backstage.
	if !p.BatonPassedThisTurn && len(p.Center) > 0 {
		center := p.Center[0]
		cost := center.Def.BatonPassCost
		hasSwapTarget := false
		for _, card := range p.Backstage {
			if !card.Resting {
				hasSwapTarget = true
				break
			}
		}
		if hasSwapTarget && cost > 0 && len(center.AttachedCheer) >= cost {
			actions = append(actions, map[string]any{
				"action_type": ActionMainStepBatonPass,
				"center_id":   center.GameCardID,
				"cost":        cost,
			})
		}
	}

	// Supports.
	for _, card := range p.Hand {
		if card.Def.CardType != cards.TypeSupport {
			continue
		}
		if card.Def.Limited && p.UsedLimitedThisTurn {
			continue
		}
		actions = append(actions, map[string]any{
			"action_type": ActionMainStepPlaySupport,
			"card_id":     card.GameCardID,
		})
	}

	// Oshi skills.
	for _, skill := range p.Oshi.Def.OshiSkills {
		if e.oshiSkillReady(p, skill.SkillID) {
			actions = append(actions, map[string]any{
				"action_type": ActionMainStepOshiSkill,
				"skill_id":    skill.SkillID,
			})
		}
	}

	// Performance is closed on the very first turn of the game.
	if e.TurnNumber > 1 && len(p.Center)+len(p.Collab) > 0 {
		actions = append(actions, map[string]any{
			"action_type": ActionMainStepBeginPerformance,
		})
	}

	actions = append(actions, map[string]any{
		"action_type": ActionMainStepEndTurn,
	})
	return actions
}

func (e *GameEngine) canBloom(bloom, target *CardInstance) bool {
	if !target.IsHolomem() || target.BloomedThisTurn || target.PlayedThisTurn {
		return false
	}
	if !bloom.Def.SharesName(target.Def) {
		return false
	}
	targetLevel := target.Def.BloomLevel
	level := bloom.Def.BloomLevel
	return level == targetLevel+1 || (level == targetLevel && level >= 1)
}

// actionAllowed checks membership of the submitted action in the
// advertised legal-action list, matching on every key present in match.
func (d *Decision) actionAllowed(actionType string, match map[string]any) bool {
	for _, a := range d.availableActions {
		if a["action_type"] != actionType {
			continue
		}
		ok := true
		for k, v := range match {
			if a[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// ---- performance step ----

func (e *GameEngine) openPerformanceStep() {
	p := e.GetPlayer(e.ActivePlayerID)
	actions := e.performanceActions(p)
	if len(actions) == 1 {
		// Only end-turn remains: the performance step ends itself.
		e.endTurn()
		return
	}
	e.Phase = PhasePerformance
	e.decision = &Decision{
		kind:             decisionPerformanceStep,
		Type:             EventDecisionPerformanceStep,
		EffectPlayerID:   p.PlayerID,
		effectPlayer:     p,
		availableActions: actions,
	}
	e.addEvent(EventDecisionPerformanceStep, map[string]any{
		"active_player":     p.PlayerID,
		"available_actions": actions,
	})
}

func (e *GameEngine) performanceActions(p *PlayerState) []map[string]any {
	var actions []map[string]any
	opp := e.Opponent(p)
	targets := idsOf(append(append([]*CardInstance{}, opp.Center...), opp.Collab...))
	if len(targets) > 0 {
		performers := append(append([]*CardInstance{}, p.Center...), p.Collab...)
		for _, performer := range performers {
			if performer.Resting {
				continue
			}
			for i := range performer.Def.Arts {
				art := &performer.Def.Arts[i]
				if performer.HasUsedArt(art.ArtID) || !performer.CanPayArtCost(art) {
					continue
				}
				actions = append(actions, map[string]any{
					"action_type":  ActionPerformanceStepUseArt,
					"performer_id": performer.GameCardID,
					"art_id":       art.ArtID,
					"valid_targets": targets,
				})
			}
		}
	}
	actions = append(actions, map[string]any{
		"action_type": ActionPerformanceStepEndTurn,
	})
	return actions
}

func (e *GameEngine) handleUseArt(p *PlayerState, data map[string]any) {
	performerID := getString(data, "performer_id")
	artID := getString(data, "art_id")
	targetID := getString(data, "target_id")

	if !e.decision.actionAllowed(ActionPerformanceStepUseArt, map[string]any{
		"performer_id": performerID,
		"art_id":       artID,
	}) {
		e.rejectAction(p.PlayerID, "art not available")
		return
	}
	performer := e.cardTable[performerID]
	target := e.cardTable[targetID]
	opp := e.Opponent(p)
	if target == nil || (opp.StageZoneOf(target) != ZoneCenter && opp.StageZoneOf(target) != ZoneCollab) {
		e.rejectAction(p.PlayerID, "invalid art target")
		return
	}
	art := performer.Def.Art(artID)

	e.decision = nil
	performer.MarkArtUsed(artID)
	e.currentArt = &artContext{
		performer: performer,
		target:    target,
		art:       art,
		power:     art.Power,
		playerID:  p.PlayerID,
	}

	// Source-side power modifiers fire before the art is announced.
	for _, att := range performer.AttachedSupport {
		for i := range att.Def.AttachedEffects {
			ef := &att.Def.AttachedEffects[i]
			if ef.Timing != cards.TimingOnArtPower {
				continue
			}
			item := stackItem{effect: ef, source: att, player: p, holder: performer}
			if !e.checkCondition(ef.Condition, item) {
				continue
			}
			e.currentArt.power += ef.Amount
			e.addEvent(EventBoostStat, map[string]any{
				"card_id": performer.GameCardID,
				"stat":    ef.Stat,
				"amount":  ef.Amount,
			})
		}
	}

	e.addEvent(EventPerformArt, map[string]any{
		"performer_id": performer.GameCardID,
		"art_id":       artID,
		"target_id":    target.GameCardID,
		"power":        e.currentArt.power,
	})

	// LIFO: after-art bookkeeping at the bottom, then the damage
	// application, then the defender's on-damage responses, then the
	// art's own effect list on top.
	e.pushItem(stackItem{kind: itemAfterArt})
	e.pushItem(stackItem{kind: itemArtDamage})

	defender := e.Opponent(p)
	responses := e.collectDamageResponses(defender, target)
	for i := len(responses) - 1; i >= 0; i-- {
		e.pushItem(responses[i])
	}

	e.pushEffects(art.Effects, performer, p, nil, nil)
	e.continueGame()
}

// collectDamageResponses scans the target's attachments, in attachment
// order, for on_damage_received triggers that still may fire this turn.
func (e *GameEngine) collectDamageResponses(defender *PlayerState, target *CardInstance) []stackItem {
	var items []stackItem
	for _, att := range target.AttachedSupport {
		for i := range att.Def.AttachedEffects {
			ef := &att.Def.AttachedEffects[i]
			if ef.Timing != cards.TimingOnDamageReceived {
				continue
			}
			if ef.OncePerTurn && att.TriggeredThisTurn {
				continue
			}
			item := stackItem{effect: ef, source: att, player: defender, holder: target}
			if !e.checkCondition(ef.Condition, item) {
				continue
			}
			att.TriggeredThisTurn = true
			items = append(items, item)
		}
	}
	return items
}

func (e *GameEngine) executeArtDamage() {
	if e.currentArt == nil {
		return
	}
	target := e.currentArt.target
	// The target may already be gone (downed by a response); the art's
	// damage then has nowhere to land.
	owner := e.GetPlayer(target.OwnerID)
	if owner.StageZoneOf(target) == "" {
		return
	}
	e.applyDamage(target, e.currentArt.power, false)
}

// applyDamage is the single entry point for all damage, art or effect.
func (e *GameEngine) applyDamage(target *CardInstance, amount int, special bool) {
	owner := e.GetPlayer(target.OwnerID)
	if owner.StageZoneOf(target) == "" {
		return
	}
	target.Damage += amount
	died := target.Damage >= target.Def.HP

	lifeLost := 0
	if died {
		lifeLost = target.Def.LifeLossWhenDowned()
		if lifeLost > len(owner.Life) {
			lifeLost = len(owner.Life)
		}
	}
	wouldEndGame := died && (lifeLost >= len(owner.Life) || (len(owner.InPlay()) == 1))

	e.addEvent(EventDamageDealt, map[string]any{
		"target_id":           target.GameCardID,
		"target_player":       owner.PlayerID,
		"damage":              amount,
		"special":             special,
		"died":                died,
		"game_over":           wouldEndGame,
		"life_lost":           lifeLost,
		"life_loss_prevented": false,
	})

	if died {
		e.downHolomem(target, owner, lifeLost, special)
	}
}

// downHolomem archives the downed holomem with all attachments, then
// resolves life loss: a cheer-distribution decision for the defender, or
// the end of the game.
func (e *GameEngine) downHolomem(target *CardInstance, owner *PlayerState, lifeLost int, special bool) {
	if !special {
		e.addEvent(EventDownedBefore, map[string]any{
			"target_id": target.GameCardID,
		})
		e.addEvent(EventDowned, map[string]any{
			"target_id":           target.GameCardID,
			"target_player":       owner.PlayerID,
			"life_lost":           lifeLost,
			"life_loss_prevented": false,
		})
	}

	owner.RemoveFromStage(target)
	for _, att := range target.allAttachments() {
		owner.ArchiveCard(att)
	}
	target.AttachedCheer = nil
	target.AttachedSupport = nil
	target.BloomedFrom = nil
	owner.ArchiveCard(target)

	winner := e.Opponent(owner).PlayerID
	if lifeLost > 0 && lifeLost >= len(owner.Life) {
		for _, life := range owner.Life {
			owner.ArchiveCard(life)
		}
		owner.Life = nil
		e.endGame(winner, ReasonNoLife)
		return
	}
	if !owner.HasHolomemInPlay() {
		e.endGame(winner, ReasonNoHolomem)
		return
	}
	if lifeLost == 0 {
		return
	}

	// The taken life cards sit in limbo until the defender places them.
	lifeCards := make([]*CardInstance, lifeLost)
	copy(lifeCards, owner.Life[:lifeLost])
	owner.Life = owner.Life[lifeLost:]
	fromOptions := idsOf(lifeCards)
	toOptions := idsOf(owner.InPlay())
	e.decision = &Decision{
		kind:           decisionLifeCheer,
		Type:           EventDecisionSendCheer,
		EffectPlayerID: owner.PlayerID,
		AmountMin:      lifeLost,
		AmountMax:      lifeLost,
		FromZone:       ZoneLife,
		ToZone:         ZoneHolomem,
		FromOptions:    fromOptions,
		ToOptions:      toOptions,
		effectPlayer:   owner,
	}
	e.addEvent(EventDecisionSendCheer, map[string]any{
		"effect_player_id": owner.PlayerID,
		"amount_min":       lifeLost,
		"amount_max":       lifeLost,
		"from_zone":        ZoneLife,
		"to_zone":          ZoneHolomem,
		"from_options":     fromOptions,
		"to_options":       toOptions,
	})
}

func (e *GameEngine) endGame(winnerID, reason string) {
	if e.gameOver {
		return
	}
	e.gameOver = true
	e.WinnerID = winnerID
	e.GameOverReason = reason
	e.Phase = PhaseGameOver
	e.decision = nil
	e.stack = nil
	e.currentArt = nil
	e.addEvent(EventGameOver, map[string]any{
		"winner_id": winnerID,
		"reason":    reason,
	})
}

func (e *GameEngine) abortMatch(detail string) {
	slog.Error("match aborted on invariant violation", "tag", "engine", "detail", detail)
	e.endGame("", ReasonInternalError)
}

// Concede ends the match against the conceding player.
func (e *GameEngine) Concede(playerID, reason string) {
	p := e.GetPlayer(playerID)
	if p == nil || e.gameOver {
		return
	}
	e.endGame(e.Opponent(p).PlayerID, reason)
}

// ---- action entry point ----

// HandleGameMessage validates and executes one client action. Violations
// emit a rejection event and leave state unchanged. A panic inside
// resolution is an engine invariant violation: the match aborts with
// reason internal_error.
func (e *GameEngine) HandleGameMessage(playerID, actionType string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.abortMatch(fmt.Sprintf("panic in %s: %v", actionType, r))
		}
	}()

	if e.gameOver {
		e.rejectAction(playerID, "game is over")
		return
	}
	p := e.GetPlayer(playerID)
	if p == nil {
		e.rejectAction(playerID, "unknown player")
		return
	}
	d := e.decision
	if d == nil {
		e.rejectAction(playerID, "no action expected")
		return
	}
	if d.EffectPlayerID != playerID {
		e.rejectAction(playerID, "decision pending for opponent")
		return
	}
	if !decisionAccepts(d.kind, actionType) {
		e.rejectAction(playerID, "action does not match pending decision")
		return
	}

	switch actionType {
	case ActionMulligan:
		e.handleMulligan(p, data)
	case ActionInitialPlacement:
		e.handleInitialPlacement(p, data)
	case ActionMainStepPlaceHolomem:
		e.handlePlaceHolomem(p, data)
	case ActionMainStepBloom:
		e.handleBloom(p, data)
	case ActionMainStepCollab:
		e.handleCollab(p, data)
	case ActionMainStepBatonPass:
		e.handleBatonPass(p, data)
	case ActionMainStepPlaySupport:
		e.handlePlaySupport(p, data)
	case ActionMainStepOshiSkill:
		e.handleOshiSkillAction(p, data)
	case ActionMainStepBeginPerformance:
		if !d.actionAllowed(ActionMainStepBeginPerformance, nil) {
			e.rejectAction(p.PlayerID, "performance step not available")
			return
		}
		e.decision = nil
		e.Phase = PhasePerformance
		e.continueGame()
	case ActionMainStepEndTurn, ActionPerformanceStepEndTurn:
		e.decision = nil
		e.endTurn()
	case ActionPerformanceStepUseArt:
		e.handleUseArt(p, data)
	case ActionEffectMakeChoice:
		e.handleMakeChoice(p, data)
	case ActionEffectChooseCards:
		e.handleChooseCards(p, data)
	case ActionEffectMoveCheer:
		e.handleMoveCheer(p, data)
	default:
		e.rejectAction(playerID, "unknown action type")
	}
}

// decisionAccepts maps each decision kind to the action tags it accepts.
func decisionAccepts(kind decisionKind, actionType string) bool {
	switch kind {
	case decisionMulligan:
		return actionType == ActionMulligan
	case decisionPlacement:
		return actionType == ActionInitialPlacement
	case decisionMainStep:
		switch actionType {
		case ActionMainStepPlaceHolomem, ActionMainStepBloom, ActionMainStepCollab,
			ActionMainStepBatonPass, ActionMainStepPlaySupport, ActionMainStepOshiSkill,
			ActionMainStepBeginPerformance, ActionMainStepEndTurn:
			return true
		}
	case decisionPerformanceStep:
		return actionType == ActionPerformanceStepUseArt || actionType == ActionPerformanceStepEndTurn
	case decisionCheerStep, decisionLifeCheer, decisionEffectSendCheer:
		return actionType == ActionEffectMoveCheer
	case decisionChooseCards, decisionChooseHolomem, decisionSwapToCenter:
		return actionType == ActionEffectChooseCards
	case decisionChoice:
		return actionType == ActionEffectMakeChoice
	}
	return false
}

func (e *GameEngine) rejectAction(playerID, reason string) {
	e.addEvent(EventGameError, map[string]any{
		"error_id":  "action_rejected",
		"player_id": playerID,
		"reason":    reason,
	})
}

func (e *GameEngine) inHand(p *PlayerState, card *CardInstance) bool {
	for _, c := range p.Hand {
		if c == card {
			return true
		}
	}
	return false
}

// ---- main step action handlers ----

func (e *GameEngine) handlePlaceHolomem(p *PlayerState, data map[string]any) {
	cardID := getString(data, "card_id")
	if !e.decision.actionAllowed(ActionMainStepPlaceHolomem, map[string]any{"card_id": cardID}) {
		e.rejectAction(p.PlayerID, "cannot place that holomem")
		return
	}
	card := e.cardTable[cardID]
	e.decision = nil
	p.RemoveFromHand(card)
	card.PlayedThisTurn = true
	p.Backstage = append(p.Backstage, card)
	e.addEvent(EventMoveCard, map[string]any{
		"moving_player_id": p.PlayerID,
		"from_zone":        ZoneHand,
		"to_zone":          ZoneBackstage,
		"card_id":          card.GameCardID,
		"card_def_id":      card.CardID(),
	})
	e.continueGame()
}

func (e *GameEngine) handleBloom(p *PlayerState, data map[string]any) {
	cardID := getString(data, "card_id")
	targetID := getString(data, "target_id")
	if !e.decision.actionAllowed(ActionMainStepBloom, map[string]any{"card_id": cardID, "target_id": targetID}) {
		e.rejectAction(p.PlayerID, "cannot bloom that holomem")
		return
	}
	bloom := e.cardTable[cardID]
	target := e.cardTable[targetID]
	e.decision = nil

	p.RemoveFromHand(bloom)
	bloom.Damage = target.Damage
	bloom.Resting = target.Resting
	bloom.AttachedCheer = target.AttachedCheer
	bloom.AttachedSupport = target.AttachedSupport
	bloom.BloomedFrom = append(target.BloomedFrom, target)
	bloom.BloomedThisTurn = true
	target.AttachedCheer = nil
	target.AttachedSupport = nil
	target.BloomedFrom = nil

	switch p.StageZoneOf(target) {
	case ZoneCenter:
		p.Center = []*CardInstance{bloom}
	case ZoneCollab:
		p.Collab = []*CardInstance{bloom}
	case ZoneBackstage:
		for i, c := range p.Backstage {
			if c == target {
				p.Backstage[i] = bloom
			}
		}
	}
	e.addEvent(EventBloom, map[string]any{
		"player_id":      p.PlayerID,
		"bloom_card_id":  bloom.GameCardID,
		"target_card_id": target.GameCardID,
	})
	e.continueGame()
}

func (e *GameEngine) handleCollab(p *PlayerState, data map[string]any) {
	cardID := getString(data, "card_id")
	if !e.decision.actionAllowed(ActionMainStepCollab, map[string]any{"card_id": cardID}) {
		e.rejectAction(p.PlayerID, "cannot collab with that holomem")
		return
	}
	card := e.cardTable[cardID]
	e.decision = nil

	p.Backstage, _ = removeFromSlice(p.Backstage, card)
	p.Collab = []*CardInstance{card}
	p.CollabedThisTurn = true
	moved := p.GenerateHolopower(1)
	e.addEvent(EventCollab, map[string]any{
		"player_id":           p.PlayerID,
		"collab_card_id":      card.GameCardID,
		"holopower_generated": len(moved),
	})

	// On-collab effects.
	var collabEffects []cards.EffectDef
	for _, ef := range card.Def.Effects {
		if ef.Timing == cards.TimingOnCollab {
			collabEffects = append(collabEffects, ef)
		}
	}
	e.pushEffects(collabEffects, card, p, nil, nil)
	e.continueGame()
}

func (e *GameEngine) handleBatonPass(p *PlayerState, data map[string]any) {
	newCenterID := getString(data, "card_id")
	cheerIDs, ok := getStringSlice(data, "cheer_ids")
	if !ok {
		e.rejectAction(p.PlayerID, "invalid cheer_ids")
		return
	}
	if len(p.Center) == 0 {
		e.rejectAction(p.PlayerID, "no center holomem")
		return
	}
	center := p.Center[0]
	if !e.decision.actionAllowed(ActionMainStepBatonPass, map[string]any{"center_id": center.GameCardID}) {
		e.rejectAction(p.PlayerID, "baton pass not available")
		return
	}
	newCenter := e.cardTable[newCenterID]
	if newCenter == nil || p.StageZoneOf(newCenter) != ZoneBackstage || newCenter.Resting {
		e.rejectAction(p.PlayerID, "invalid baton pass target")
		return
	}
	if len(cheerIDs) != center.Def.BatonPassCost {
		e.rejectAction(p.PlayerID, "wrong cheer count for baton pass")
		return
	}
	toArchive := make([]*CardInstance, 0, len(cheerIDs))
	for _, id := range cheerIDs {
		cheer := e.cardTable[id]
		if cheer == nil {
			e.rejectAction(p.PlayerID, "unknown cheer")
			return
		}
		attached := false
		for _, att := range center.AttachedCheer {
			if att == cheer {
				attached = true
				break
			}
		}
		if !attached {
			e.rejectAction(p.PlayerID, "cheer not attached to center")
			return
		}
		toArchive = append(toArchive, cheer)
	}

	e.decision = nil
	for _, cheer := range toArchive {
		center.detachCheer(cheer)
		p.ArchiveCard(cheer)
		e.addEvent(EventMoveAttachedCard, map[string]any{
			"owning_player_id": p.PlayerID,
			"from_holomem_id":  center.GameCardID,
			"to_holomem_id":    ZoneArchive,
			"attached_id":      cheer.GameCardID,
		})
	}
	p.Backstage, _ = removeFromSlice(p.Backstage, newCenter)
	p.Center = []*CardInstance{newCenter}
	p.Backstage = append(p.Backstage, center)
	p.BatonPassedThisTurn = true
	e.addEvent(EventBatonPass, map[string]any{
		"player_id":     p.PlayerID,
		"center_id":     center.GameCardID,
		"new_center_id": newCenter.GameCardID,
	})
	e.continueGame()
}

func (e *GameEngine) handlePlaySupport(p *PlayerState, data map[string]any) {
	cardID := getString(data, "card_id")
	if !e.decision.actionAllowed(ActionMainStepPlaySupport, map[string]any{"card_id": cardID}) {
		e.rejectAction(p.PlayerID, "cannot play that support")
		return
	}
	card := e.cardTable[cardID]
	e.decision = nil

	p.RemoveFromHand(card)
	e.floating = card
	if card.Def.Limited {
		p.UsedLimitedThisTurn = true
	}
	e.addEvent(EventPlaySupportCard, map[string]any{
		"player_id": p.PlayerID,
		"card_id":   card.GameCardID,
		"limited":   card.Def.Limited,
	})

	e.pushItem(stackItem{kind: itemDiscardFloating, player: p})
	var playEffects []cards.EffectDef
	for _, ef := range card.Def.Effects {
		if ef.Timing == "" || ef.Timing == cards.TimingOnPlay {
			playEffects = append(playEffects, ef)
		}
	}
	e.pushEffects(playEffects, card, p, nil, nil)
	e.continueGame()
}

func (e *GameEngine) handleOshiSkillAction(p *PlayerState, data map[string]any) {
	skillID := getString(data, "skill_id")
	if !e.decision.actionAllowed(ActionMainStepOshiSkill, map[string]any{"skill_id": skillID}) {
		e.rejectAction(p.PlayerID, "oshi skill not available")
		return
	}
	e.decision = nil
	e.activateOshiSkill(p, skillID)
	e.continueGame()
}

// ---- decision resolution handlers ----

func (e *GameEngine) handleMakeChoice(p *PlayerState, data map[string]any) {
	idx, ok := getInt(data, "choice_index")
	if !ok || idx < 0 || idx >= len(e.decision.Choices) {
		e.rejectAction(p.PlayerID, "invalid choice index")
		return
	}
	d := e.decision
	e.decision = nil
	e.pushEffects(d.Choices[idx].Effects, d.source, d.effectPlayer, nil, nil)
	e.continueGame()
}

func (e *GameEngine) handleChooseCards(p *PlayerState, data map[string]any) {
	chosenIDs, ok := getStringSlice(data, "card_ids")
	if !ok {
		e.rejectAction(p.PlayerID, "invalid card_ids")
		return
	}
	d := e.decision
	if len(chosenIDs) < d.AmountMin || len(chosenIDs) > d.AmountMax {
		e.rejectAction(p.PlayerID, "wrong number of cards chosen")
		return
	}
	seen := make(map[string]bool, len(chosenIDs))
	for _, id := range chosenIDs {
		if seen[id] || !contains(d.CardsCanChoose, id) {
			e.rejectAction(p.PlayerID, "card not choosable")
			return
		}
		seen[id] = true
	}

	e.decision = nil
	switch d.kind {
	case decisionChooseCards:
		e.resolveChooseCards(d, chosenIDs)
	case decisionChooseHolomem:
		chosen := e.cardTable[chosenIDs[0]]
		e.pushEffects(d.childEffects, d.source, d.effectPlayer, nil, chosen)
	case decisionSwapToCenter:
		e.resolveSwapToCenter(d, chosenIDs[0])
	}
	e.continueGame()
}

func (e *GameEngine) resolveChooseCards(d *Decision, chosenIDs []string) {
	p := d.effectPlayer
	for _, id := range chosenIDs {
		card := e.cardTable[id]
		if d.FromZone == ZoneArchive {
			p.Archive, _ = removeFromSlice(p.Archive, card)
		}
		switch d.ToZone {
		case ZoneCheerDeck:
			p.CheerDeck = append(p.CheerDeck, card)
		case ZoneHand:
			p.Hand = append(p.Hand, card)
		case ZoneArchive:
			p.ArchiveCard(card)
		}
		e.addEvent(EventMoveCard, map[string]any{
			"moving_player_id": p.PlayerID,
			"from_zone":        d.FromZone,
			"to_zone":          d.ToZone,
			"card_id":          card.GameCardID,
		})
	}
	// Unchosen candidates stay put for remaining_cards_action "nothing";
	// "archive" sweeps them to the archive.
	if d.RemainingAction == "archive" {
		for _, id := range d.CardsCanChoose {
			if contains(chosenIDs, id) {
				continue
			}
			card := e.cardTable[id]
			if d.FromZone == ZoneArchive {
				continue
			}
			p.ArchiveCard(card)
			e.addEvent(EventMoveCard, map[string]any{
				"moving_player_id": p.PlayerID,
				"from_zone":        d.FromZone,
				"to_zone":          ZoneArchive,
				"card_id":          card.GameCardID,
			})
		}
	}
}

func (e *GameEngine) resolveSwapToCenter(d *Decision, chosenID string) {
	p := d.effectPlayer
	chosen := e.cardTable[chosenID]
	center := p.Center[0]
	p.Backstage, _ = removeFromSlice(p.Backstage, chosen)
	p.Center = []*CardInstance{chosen}
	p.Backstage = append(p.Backstage, center)
	e.addEvent(EventMoveCard, map[string]any{
		"moving_player_id": p.PlayerID,
		"from_zone":        ZoneCenter,
		"to_zone":          ZoneBackstage,
		"card_id":          center.GameCardID,
	})
	e.addEvent(EventMoveCard, map[string]any{
		"moving_player_id": p.PlayerID,
		"from_zone":        ZoneBackstage,
		"to_zone":          ZoneCenter,
		"card_id":          chosen.GameCardID,
	})
}

func (e *GameEngine) handleMoveCheer(p *PlayerState, data map[string]any) {
	placements, ok := getStringMap(data, "placements")
	if !ok {
		e.rejectAction(p.PlayerID, "invalid placements")
		return
	}
	d := e.decision
	if len(placements) < d.AmountMin || len(placements) > d.AmountMax {
		e.rejectAction(p.PlayerID, "wrong number of cheer placements")
		return
	}
	for cheerID, targetID := range placements {
		if !contains(d.FromOptions, cheerID) || !contains(d.ToOptions, targetID) {
			e.rejectAction(p.PlayerID, "invalid cheer placement")
			return
		}
	}

	e.decision = nil
	// Iterate in option order so resolution is deterministic regardless of
	// map iteration.
	for _, cheerID := range d.FromOptions {
		targetID, placed := placements[cheerID]
		if !placed {
			continue
		}
		e.moveCheer(d, cheerID, targetID)
	}
	e.continueGame()
}

// moveCheer relocates one cheer from the decision's source zone to a
// holomem or the archive, emitting MoveAttachedCard.
func (e *GameEngine) moveCheer(d *Decision, cheerID, targetID string) {
	cheer := e.cardTable[cheerID]
	owner := e.GetPlayer(cheer.OwnerID)

	from := d.FromZone
	switch d.kind {
	case decisionCheerStep:
		owner.CheerDeck, _ = removeFromSlice(owner.CheerDeck, cheer)
		from = ZoneCheerDeck
	case decisionLifeCheer:
		// Already detached from Life at decision time.
		from = ZoneLife
	default:
		// Attached cheer moving between holomem or to the archive.
		for _, holomem := range owner.InPlay() {
			if holomem.detachCheer(cheer) {
				from = holomem.GameCardID
				break
			}
		}
	}

	if targetID == ZoneArchive {
		owner.ArchiveCard(cheer)
	} else {
		target := e.cardTable[targetID]
		target.AttachedCheer = append(target.AttachedCheer, cheer)
	}
	e.addEvent(EventMoveAttachedCard, map[string]any{
		"owning_player_id": owner.PlayerID,
		"from_holomem_id":  from,
		"to_holomem_id":    targetID,
		"attached_id":      cheer.GameCardID,
	})

	if d.kind == decisionCheerStep {
		e.Phase = PhaseMain
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
