package game

import "github.com/willson5127/holocardserver/cards"

// Zone names as they appear in events.
const (
	ZoneDeck      = "deck"
	ZoneHand      = "hand"
	ZoneArchive   = "archive"
	ZoneLife      = "life"
	ZoneCheerDeck = "cheer_deck"
	ZoneHolopower = "holopower"
	ZoneCenter    = "center"
	ZoneCollab    = "collab"
	ZoneBackstage = "backstage"
	ZoneOshi      = "oshi"
	ZoneHolomem   = "holomem"
	// ZoneFloating is the transient zone a support occupies while its
	// effects resolve.
	ZoneFloating = "floating"
	// ZoneOpponentHolomem names cheer sources on the opponent's stage in
	// send_cheer decisions.
	ZoneOpponentHolomem = "opponent_holomem"
)

// BackstageSize is the maximum number of backstage holomem.
const BackstageSize = 5

// StartingLife is the number of life cards set aside at setup.
const StartingLife = 5

// StartingHandSize is the opening hand size before mulligan penalties.
const StartingHandSize = 7

// CardInstance is one physical card in a match: an immutable definition
// plus the mutable per-match state.
type CardInstance struct {
	GameCardID string
	OwnerID    string
	Def        *cards.CardDef

	Damage  int
	Resting bool

	AttachedCheer   []*CardInstance
	AttachedSupport []*CardInstance
	// BloomedFrom stacks the underlying holomem, bottom to top.
	BloomedFrom []*CardInstance

	BloomedThisTurn bool
	PlayedThisTurn  bool
	UsedArtsThisTurn map[string]bool

	// TriggeredThisTurn limits once-per-turn attached effects (set on the
	// attachment instance, not its holder).
	TriggeredThisTurn bool
}

// CardID returns the definition id.
func (c *CardInstance) CardID() string {
	return c.Def.CardID
}

// IsHolomem reports whether this instance is a stage holomem.
func (c *CardInstance) IsHolomem() bool {
	return c.Def.IsHolomem()
}

// ResetTurnFlags clears the per-turn flags on this card and its attachments.
func (c *CardInstance) ResetTurnFlags() {
	c.BloomedThisTurn = false
	c.PlayedThisTurn = false
	c.UsedArtsThisTurn = nil
	c.TriggeredThisTurn = false
	for _, att := range c.AttachedSupport {
		att.TriggeredThisTurn = false
	}
}

// HasUsedArt reports whether the art was already used this turn.
func (c *CardInstance) HasUsedArt(artID string) bool {
	return c.UsedArtsThisTurn[artID]
}

// MarkArtUsed records an art use for this turn.
func (c *CardInstance) MarkArtUsed(artID string) {
	if c.UsedArtsThisTurn == nil {
		c.UsedArtsThisTurn = make(map[string]bool)
	}
	c.UsedArtsThisTurn[artID] = true
}

// CanPayArtCost checks the attached cheer against an art's cost vector.
// Specific colors are paid first; "any" slots are satisfied by whatever
// cheer remains.
func (c *CardInstance) CanPayArtCost(art *cards.ArtDef) bool {
	remaining := make(map[string]int)
	total := 0
	for _, cheer := range c.AttachedCheer {
		for _, color := range cheer.Def.Colors {
			remaining[color]++
			break // a cheer pays with its first color
		}
		total++
	}
	anyNeeded := 0
	for _, cost := range art.Costs {
		if cost.Color == cards.ColorAny {
			anyNeeded += cost.Amount
			continue
		}
		if remaining[cost.Color] < cost.Amount {
			return false
		}
		remaining[cost.Color] -= cost.Amount
		total -= cost.Amount
	}
	return total >= anyNeeded
}

// detachCheer removes a cheer instance from this holomem. Returns false
// when the cheer is not attached here.
func (c *CardInstance) detachCheer(cheer *CardInstance) bool {
	for i, att := range c.AttachedCheer {
		if att == cheer {
			c.AttachedCheer = append(c.AttachedCheer[:i], c.AttachedCheer[i+1:]...)
			return true
		}
	}
	return false
}

// allAttachments returns attached cheer, supports, and bloomed-under
// cards (the pile that travels with a holomem).
func (c *CardInstance) allAttachments() []*CardInstance {
	out := make([]*CardInstance, 0, len(c.AttachedCheer)+len(c.AttachedSupport)+len(c.BloomedFrom))
	out = append(out, c.AttachedCheer...)
	out = append(out, c.AttachedSupport...)
	out = append(out, c.BloomedFrom...)
	return out
}

// removeFromSlice removes a card from a zone slice by identity.
func removeFromSlice(zone []*CardInstance, card *CardInstance) ([]*CardInstance, bool) {
	for i, c := range zone {
		if c == card {
			return append(zone[:i], zone[i+1:]...), true
		}
	}
	return zone, false
}

// idsOf maps instances to their game card ids.
func idsOf(instances []*CardInstance) []string {
	out := make([]string, len(instances))
	for i, c := range instances {
		out[i] = c.GameCardID
	}
	return out
}
