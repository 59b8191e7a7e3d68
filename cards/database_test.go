package cards

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func loadTestDB(t *testing.T) *Database {
	t.Helper()
	data, err := os.ReadFile("../decks/card_definitions.json")
	require.NoError(t, err)
	db, err := ParseDatabase(data)
	require.NoError(t, err)
	return db
}

func TestLoadManifest(t *testing.T) {
	db := loadTestDB(t)

	reine, ok := db.Get("hBP02-020")
	require.True(t, ok)
	require.Equal(t, 160, reine.HP)
	require.ElementsMatch(t, []string{"#ID", "#IDGen2", "#Bird", "#Art"}, reine.Tags)
	require.NotNil(t, reine.Art("royalhalusleepover"))
	require.Nil(t, reine.Art("nope"))
	require.Equal(t, 2, reine.BatonPassCost)

	marine, ok := db.Get("hBP02-029")
	require.True(t, ok)
	require.Equal(t, 70, marine.HP)
	require.True(t, marine.IsHolomem())
	require.Equal(t, 1, marine.LifeLossWhenDowned())

	buzz, _ := db.Get("hBP02-035")
	require.Equal(t, 2, buzz.LifeLossWhenDowned())

	azki, ok := db.Get("hBP01-002")
	require.True(t, ok)
	require.NotNil(t, azki.OshiSkill("in_my_song"))
	require.Equal(t, 2, azki.OshiSkill("in_my_song").HolopowerCost)
}

func TestUnknownEffectVerbIsFatal(t *testing.T) {
	_, err := ParseDatabase([]byte(`[
		{"card_id": "x-001", "card_type": "support",
		 "effects": [{"effect_type": "summon_dragon"}]}
	]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown effect type")
}

func TestUnknownConditionTypeIsFatal(t *testing.T) {
	_, err := ParseDatabase([]byte(`[
		{"card_id": "x-001", "card_type": "support",
		 "effects": [{"effect_type": "roll_die",
			"condition": {"condition_type": "moon_is_full"}}]}
	]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown condition type")
}

func TestNestedEffectsValidated(t *testing.T) {
	_, err := ParseDatabase([]byte(`[
		{"card_id": "x-001", "card_type": "support",
		 "effects": [{"effect_type": "make_choice", "choices": [
			{"label": "a", "effects": [{"effect_type": "bogus"}]}
		 ]}]}
	]`))
	require.Error(t, err)
}

func TestDuplicateCardIDRejected(t *testing.T) {
	_, err := ParseDatabase([]byte(`[
		{"card_id": "x-001", "card_type": "cheer", "colors": ["white"]},
		{"card_id": "x-001", "card_type": "cheer", "colors": ["white"]}
	]`))
	require.Error(t, err)
}

func validMainDeck() map[string]int {
	return map[string]int{
		"hSD01-003": 4, "hSD01-004": 4, "hSD01-005": 4, "hSD01-006": 4,
		"hSD01-016": 4, "hSD01-017": 4, "hBP01-010": 4, "hBP02-020": 4,
		"hBP02-029": 4, "hBP01-106": 4, "hBP01-107": 4, "hBP01-110": 4,
		"hBP01-116": 2,
	}
}

func validCheerDeck() map[string]int {
	return map[string]int{"hY01-001": 10, "hY02-001": 10}
}

func TestValidateDeckAccepts(t *testing.T) {
	db := loadTestDB(t)
	require.True(t, db.ValidateDeck("hSD01-001", validMainDeck(), validCheerDeck()))
	require.True(t, db.ValidateDeck("hBP01-002", validMainDeck(), validCheerDeck()))
}

func TestValidateDeckRejects(t *testing.T) {
	db := loadTestDB(t)

	t.Run("oshi must be an oshi card", func(t *testing.T) {
		require.False(t, db.ValidateDeck("hSD01-003", validMainDeck(), validCheerDeck()))
		require.False(t, db.ValidateDeck("no-such-card", validMainDeck(), validCheerDeck()))
	})

	t.Run("main deck must be exactly 50", func(t *testing.T) {
		deck := validMainDeck()
		deck["hBP01-116"] = 1
		require.False(t, db.ValidateDeck("hSD01-001", deck, validCheerDeck()))
	})

	t.Run("per-card copy limit", func(t *testing.T) {
		deck := validMainDeck()
		deck["hSD01-003"] = 6
		deck["hBP01-116"] = 0
		delete(deck, "hBP01-116")
		require.False(t, db.ValidateDeck("hSD01-001", deck, validCheerDeck()))
	})

	t.Run("oshi and cheer not allowed in main deck", func(t *testing.T) {
		deck := validMainDeck()
		deck["hBP01-116"] = 1
		deck["hSD01-001"] = 1
		require.False(t, db.ValidateDeck("hSD01-001", deck, validCheerDeck()))

		deck = validMainDeck()
		deck["hBP01-116"] = 1
		deck["hY01-001"] = 1
		require.False(t, db.ValidateDeck("hSD01-001", deck, validCheerDeck()))
	})

	t.Run("cheer deck must be exactly 20 cheer", func(t *testing.T) {
		require.False(t, db.ValidateDeck("hSD01-001", validMainDeck(), map[string]int{"hY01-001": 19}))
		require.False(t, db.ValidateDeck("hSD01-001", validMainDeck(), map[string]int{"hY01-001": 10, "hSD01-003": 10}))
	})
}
