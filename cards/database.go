package cards

import (
	"encoding/json"
	"fmt"
	"os"
)

// Deck construction rules.
const (
	RequiredDeckCount  = 50
	RequiredCheerCount = 20
	MaxAnyCardCount    = 4
)

// Database is the in-memory card database, loaded once at startup and
// read-only afterwards.
type Database struct {
	byID  map[string]*CardDef
	order []string // manifest order, for deterministic iteration
}

// LoadDatabase reads the card definitions manifest and validates every
// effect descriptor in it.
func LoadDatabase(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card definitions: %w", err)
	}
	return ParseDatabase(data)
}

// ParseDatabase builds a Database from raw manifest JSON.
func ParseDatabase(data []byte) (*Database, error) {
	var defs []CardDef
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse card definitions: %w", err)
	}

	db := &Database{byID: make(map[string]*CardDef, len(defs))}
	for i := range defs {
		def := &defs[i]
		if def.CardID == "" {
			return nil, fmt.Errorf("card at index %d has no card_id", i)
		}
		if _, dup := db.byID[def.CardID]; dup {
			return nil, fmt.Errorf("duplicate card_id %s", def.CardID)
		}
		if err := validateEffects(def.CardID, def.Effects); err != nil {
			return nil, err
		}
		if err := validateEffects(def.CardID, def.AttachedEffects); err != nil {
			return nil, err
		}
		for _, art := range def.Arts {
			if err := validateEffects(def.CardID, art.Effects); err != nil {
				return nil, err
			}
		}
		for _, skill := range def.OshiSkills {
			if err := validateEffects(def.CardID, skill.Effects); err != nil {
				return nil, err
			}
		}
		db.byID[def.CardID] = def
		db.order = append(db.order, def.CardID)
	}
	return db, nil
}

// Get returns the definition for a card id.
func (db *Database) Get(cardID string) (*CardDef, bool) {
	def, ok := db.byID[cardID]
	return def, ok
}

// AllCardIDs returns every card id in manifest order.
func (db *Database) AllCardIDs() []string {
	out := make([]string, len(db.order))
	copy(out, db.order)
	return out
}

// ValidateDeck checks a submitted (oshi, main deck, cheer deck) triple.
// Pass/fail only; the reason for a rejection is not reported.
func (db *Database) ValidateDeck(oshiID string, deck map[string]int, cheerDeck map[string]int) bool {
	oshi, ok := db.Get(oshiID)
	if !ok || oshi.CardType != TypeOshi {
		return false
	}

	deckCount := 0
	for cardID, count := range deck {
		def, ok := db.Get(cardID)
		if !ok || !allowedInMainDeck(def.CardType) {
			return false
		}
		limit := MaxAnyCardCount
		if def.SpecialDeckLimit > 0 {
			limit = def.SpecialDeckLimit
		}
		if count < 1 || count > limit {
			return false
		}
		deckCount += count
	}
	if deckCount != RequiredDeckCount {
		return false
	}

	cheerCount := 0
	for cardID, count := range cheerDeck {
		def, ok := db.Get(cardID)
		if !ok || def.CardType != TypeCheer {
			return false
		}
		if count < 1 {
			return false
		}
		cheerCount += count
	}
	return cheerCount == RequiredCheerCount
}

func allowedInMainDeck(cardType string) bool {
	switch cardType {
	case TypeHolomemDebut, TypeHolomemBloom, TypeHolomemSpot, TypeSupport:
		return true
	}
	return false
}
