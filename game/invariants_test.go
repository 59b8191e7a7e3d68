package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// totalOwnedCards is oshi + main deck + cheer deck.
const totalOwnedCards = 1 + 50 + 20

func TestCardConservationAcrossPlay(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))

	check := func() {
		for _, pid := range []string{testPlayer1, testPlayer2} {
			p := e.GetPlayer(pid)
			require.Len(t, p.AllCards(), totalOwnedCards, "player %s", pid)
		}
	}
	check()

	// Play a few more turns and re-check at each rest point.
	for i := 0; i < 6; i++ {
		e.HandleGameMessage(e.ActivePlayerID, ActionMainStepEndTurn, nil)
		if e.IsGameOver() {
			break
		}
		placeCheerOnFirst(t, e)
		check()
	}
}

func TestGameCardIDsUniqueAndStable(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))

	seen := make(map[string]*CardInstance)
	for _, pid := range []string{testPlayer1, testPlayer2} {
		for _, card := range e.GetPlayer(pid).AllCards() {
			require.NotContains(t, seen, card.GameCardID)
			seen[card.GameCardID] = card
		}
	}
	require.Len(t, seen, 2*totalOwnedCards)

	// Ids resolve through the per-match object table to the same objects.
	for id, card := range seen {
		require.Same(t, card, e.cardTable[id])
	}
}

func TestNoHolomemInTwoSlots(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))
	for _, pid := range []string{testPlayer1, testPlayer2} {
		p := e.GetPlayer(pid)
		seen := make(map[string]bool)
		for _, card := range p.InPlay() {
			require.False(t, seen[card.GameCardID])
			seen[card.GameCardID] = true
		}
	}
}

func TestGrabEventsMonotonic(t *testing.T) {
	e := startTestGame(t, 5, "", "", generateDeckWith(nil), generateDeckWith(nil))

	first := e.GrabEvents(testPlayer1)
	require.NotEmpty(t, first)
	require.Empty(t, e.GrabEvents(testPlayer1), "second grab with no new events")

	placeCheerOnFirst(t, e)
	second := e.GrabEvents(testPlayer1)
	require.NotEmpty(t, second)
	// Strictly new events only.
	require.NotEqual(t, first[0].Type, EventGameOver)
	total := e.log.Len()
	require.Equal(t, total, len(first)+len(second))
}

func TestDrawRedactedForOpponent(t *testing.T) {
	e := startTestGame(t, 5, "", "", generateDeckWith(nil), generateDeckWith(nil))

	own := e.GrabEvents(testPlayer1)
	opp := e.GrabEvents(testPlayer2)

	findDraw := func(events []Event, playerID string) Event {
		for _, ev := range events {
			if ev.Type == EventDraw && ev.Data["player_id"] == playerID {
				return ev
			}
		}
		t.Fatalf("no draw event for %s", playerID)
		return Event{}
	}

	ownDraw := findDraw(own, testPlayer1)
	for _, id := range ownDraw.Data["drawn_card_ids"].([]string) {
		require.NotEqual(t, UnknownCardID, id)
	}

	oppDraw := findDraw(opp, testPlayer1)
	for _, id := range oppDraw.Data["drawn_card_ids"].([]string) {
		require.Equal(t, UnknownCardID, id)
	}

	// The redaction markers never reach a client.
	for _, ev := range append(own, opp...) {
		_, hasOwner := ev.Data["hidden_info_player"]
		_, hasFields := ev.Data["hidden_info_fields"]
		require.False(t, hasOwner)
		require.False(t, hasFields)
	}
}

func TestDeterministicEventLogForSameSeed(t *testing.T) {
	run := func() []byte {
		e := startTestGame(t, 21, "", "", generateDeckWith(nil), generateDeckWith(nil))
		for i := 0; i < 8 && !e.IsGameOver(); i++ {
			if e.decision != nil && e.decision.kind == decisionCheerStep {
				placeCheerOnFirst(t, e)
			}
			if e.decision != nil && e.decision.kind == decisionMainStep {
				e.HandleGameMessage(e.ActivePlayerID, ActionMainStepEndTurn, nil)
			}
		}
		data, err := json.Marshal(e.GrabEvents(testPlayer1))
		require.NoError(t, err)
		return data
	}
	require.JSONEq(t, string(run()), string(run()))
}

func TestDownedHolomemAndAttachmentsArchivedTogether(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	target := putCardInPlay(t, e, p2, "hSD01-003", ZoneCenter)
	target.Damage = 40
	attachedCheer := spawnCheerOnCard(t, e, p2, target, "hY01-001")

	center := putCardInPlay(t, e, p1, "hSD01-003", ZoneCenter)
	spawnCheerOnCard(t, e, p1, center, "hY01-001")
	resetMainStep(e)

	beginPerformance(t, e)
	e.HandleGameMessage(testPlayer1, ActionPerformanceStepUseArt, map[string]any{
		"performer_id": center.GameCardID,
		"art_id":       "nunnun",
		"target_id":    target.GameCardID,
	})

	require.Contains(t, p2.Archive, target)
	require.Contains(t, p2.Archive, attachedCheer)
	require.Empty(t, target.AttachedCheer)
	require.Equal(t, "", p2.StageZoneOf(target))
}

func TestGameOverWhenLastHolomemDowned(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	// Opponent's entire stage is a single damaged holomem.
	target := putCardInPlay(t, e, p2, "hSD01-003", ZoneCenter)
	target.Damage = 40
	p2.Collab = nil
	p2.Backstage = nil

	center := putCardInPlay(t, e, p1, "hSD01-003", ZoneCenter)
	spawnCheerOnCard(t, e, p1, center, "hY01-001")
	resetMainStep(e)

	beginPerformance(t, e)
	e.HandleGameMessage(testPlayer1, ActionPerformanceStepUseArt, map[string]any{
		"performer_id": center.GameCardID,
		"art_id":       "nunnun",
		"target_id":    target.GameCardID,
	})

	require.True(t, e.IsGameOver())
	require.Equal(t, testPlayer1, e.WinnerID)
	require.Equal(t, ReasonNoHolomem, e.GameOverReason)
}

func TestGameOverWhenLifeDepleted(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	target := putCardInPlay(t, e, p2, "hSD01-003", ZoneCenter)
	target.Damage = 40
	ensureBackstage(t, e, p2, 1)
	p2.Life = p2.Life[:1]

	center := putCardInPlay(t, e, p1, "hSD01-003", ZoneCenter)
	spawnCheerOnCard(t, e, p1, center, "hY01-001")
	resetMainStep(e)

	beginPerformance(t, e)
	e.HandleGameMessage(testPlayer1, ActionPerformanceStepUseArt, map[string]any{
		"performer_id": center.GameCardID,
		"art_id":       "nunnun",
		"target_id":    target.GameCardID,
	})

	require.True(t, e.IsGameOver())
	require.Equal(t, testPlayer1, e.WinnerID)
	require.Equal(t, ReasonNoLife, e.GameOverReason)
}
