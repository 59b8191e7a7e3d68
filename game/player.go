package game

// PlayerState is the per-player half of a match: every zone plus the
// per-turn flags.
type PlayerState struct {
	PlayerID string
	Name     string

	Oshi      *CardInstance
	Deck      []*CardInstance // index 0 = top, hidden
	Hand      []*CardInstance // hidden to opponent
	Archive   []*CardInstance // index 0 = top, public
	Life      []*CardInstance // index 0 = top, face-down cheer
	CheerDeck []*CardInstance // index 0 = top, hidden
	Holopower []*CardInstance // index 0 = top, hidden

	Center    []*CardInstance // 0 or 1
	Collab    []*CardInstance // 0 or 1
	Backstage []*CardInstance // up to BackstageSize

	UsedLimitedThisTurn bool
	CollabedThisTurn    bool
	BatonPassedThisTurn bool

	UsedOshiSkillsThisTurn map[string]bool
	UsedOshiSkillsThisGame map[string]bool

	MulliganCount int
	MulliganDone  bool
	PlacementDone bool
}

// InPlay returns every stage holomem: center, collab, backstage, in the
// fixed trigger-scan order.
func (p *PlayerState) InPlay() []*CardInstance {
	out := make([]*CardInstance, 0, 2+len(p.Backstage))
	out = append(out, p.Center...)
	out = append(out, p.Collab...)
	out = append(out, p.Backstage...)
	return out
}

// HasHolomemInPlay reports whether any holomem remains on stage.
func (p *PlayerState) HasHolomemInPlay() bool {
	return len(p.Center)+len(p.Collab)+len(p.Backstage) > 0
}

// DrawCards moves n cards from deck top to hand. Returns the drawn cards;
// fewer than n means the deck ran dry.
func (p *PlayerState) DrawCards(n int) []*CardInstance {
	if n > len(p.Deck) {
		n = len(p.Deck)
	}
	drawn := p.Deck[:n]
	p.Deck = p.Deck[n:]
	p.Hand = append(p.Hand, drawn...)
	return drawn
}

// ShuffleDeck shuffles the main deck in place.
func (p *PlayerState) ShuffleDeck(r Rand) {
	r.Shuffle(len(p.Deck), func(i, j int) {
		p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i]
	})
}

// ShuffleHandIntoDeck returns the hand to the deck and shuffles (mulligan).
func (p *PlayerState) ShuffleHandIntoDeck(r Rand) {
	p.Deck = append(p.Deck, p.Hand...)
	p.Hand = nil
	p.ShuffleDeck(r)
}

// GenerateHolopower moves n cards from deck top to holopower top.
func (p *PlayerState) GenerateHolopower(n int) []*CardInstance {
	if n > len(p.Deck) {
		n = len(p.Deck)
	}
	moved := make([]*CardInstance, 0, n)
	for i := 0; i < n; i++ {
		card := p.Deck[0]
		p.Deck = p.Deck[1:]
		p.Holopower = append([]*CardInstance{card}, p.Holopower...)
		moved = append(moved, card)
	}
	return moved
}

// ArchiveCard places a card on top of the archive pile.
func (p *PlayerState) ArchiveCard(card *CardInstance) {
	p.Archive = append([]*CardInstance{card}, p.Archive...)
}

// RemoveFromHand removes a card from hand by identity.
func (p *PlayerState) RemoveFromHand(card *CardInstance) bool {
	var ok bool
	p.Hand, ok = removeFromSlice(p.Hand, card)
	return ok
}

// StageZoneOf returns which stage zone holds the holomem, or "".
func (p *PlayerState) StageZoneOf(card *CardInstance) string {
	for _, c := range p.Center {
		if c == card {
			return ZoneCenter
		}
	}
	for _, c := range p.Collab {
		if c == card {
			return ZoneCollab
		}
	}
	for _, c := range p.Backstage {
		if c == card {
			return ZoneBackstage
		}
	}
	return ""
}

// RemoveFromStage removes a holomem from whichever stage zone holds it.
func (p *PlayerState) RemoveFromStage(card *CardInstance) bool {
	var ok bool
	if p.Center, ok = removeFromSlice(p.Center, card); ok {
		return true
	}
	if p.Collab, ok = removeFromSlice(p.Collab, card); ok {
		return true
	}
	p.Backstage, ok = removeFromSlice(p.Backstage, card)
	return ok
}

// ResetTurnFlags restores the per-turn state at the start of this
// player's turn.
func (p *PlayerState) ResetTurnFlags() {
	p.UsedLimitedThisTurn = false
	p.CollabedThisTurn = false
	p.BatonPassedThisTurn = false
	p.UsedOshiSkillsThisTurn = nil
	for _, card := range p.InPlay() {
		card.ResetTurnFlags()
	}
}

// MarkOshiSkillUsed records a skill use for the turn and the game.
func (p *PlayerState) MarkOshiSkillUsed(skillID string) {
	if p.UsedOshiSkillsThisTurn == nil {
		p.UsedOshiSkillsThisTurn = make(map[string]bool)
	}
	if p.UsedOshiSkillsThisGame == nil {
		p.UsedOshiSkillsThisGame = make(map[string]bool)
	}
	p.UsedOshiSkillsThisTurn[skillID] = true
	p.UsedOshiSkillsThisGame[skillID] = true
}

// OshiSkillUsed reports whether a skill was used within the given limit
// window ("turn" or "game").
func (p *PlayerState) OshiSkillUsed(skillID, limitedPer string) bool {
	if limitedPer == "game" {
		return p.UsedOshiSkillsThisGame[skillID]
	}
	return p.UsedOshiSkillsThisTurn[skillID]
}

// AllCards returns every card instance belonging to this player across
// all zones including attachments. Used by invariant checks.
func (p *PlayerState) AllCards() []*CardInstance {
	var out []*CardInstance
	if p.Oshi != nil {
		out = append(out, p.Oshi)
	}
	out = append(out, p.Deck...)
	out = append(out, p.Hand...)
	out = append(out, p.Archive...)
	out = append(out, p.Life...)
	out = append(out, p.CheerDeck...)
	out = append(out, p.Holopower...)
	for _, stage := range p.InPlay() {
		out = append(out, stage)
		out = append(out, stage.allAttachments()...)
	}
	return out
}
