package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupDealsHandsAndLife(t *testing.T) {
	e := startTestGame(t, 7, "", "", generateDeckWith(nil), generateDeckWith(nil))

	for _, pid := range []string{testPlayer1, testPlayer2} {
		p := e.GetPlayer(pid)
		require.NotNil(t, p.Oshi)
		require.Len(t, p.Life, StartingLife)
		require.Equal(t, 15, len(p.CheerDeck))
		require.Len(t, p.Center, 1)
		require.True(t, p.PlacementDone)
	}
	require.NotNil(t, e.decision)
	require.Equal(t, decisionCheerStep, e.decision.kind)
	require.Equal(t, e.StartingPlayerID, e.decision.EffectPlayerID)
}

func TestMulliganPenaltyDrawsOneFewer(t *testing.T) {
	e, err := NewGameEngine(testDB, NewSeededRand(11),
		PlayerConfig{PlayerID: testPlayer1, Name: "Alice", OshiID: "hSD01-001", Deck: generateDeckWith(nil), CheerDeck: testCheerDeck()},
		PlayerConfig{PlayerID: testPlayer2, Name: "Bob", OshiID: "hSD01-001", Deck: generateDeckWith(nil), CheerDeck: testCheerDeck()},
	)
	require.NoError(t, err)
	e.Begin()

	first := e.decision.EffectPlayerID
	p := e.GetPlayer(first)
	require.Len(t, p.Hand, StartingHandSize)

	e.HandleGameMessage(first, ActionMulligan, map[string]any{"do_mulligan": true})
	require.True(t, p.MulliganDone)
	require.GreaterOrEqual(t, p.MulliganCount, 1)
	require.Len(t, p.Hand, StartingHandSize-(p.MulliganCount-1))
}

func TestBatonPassGate(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(map[string]int{"hBP02-029": 1}), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)

	center := putCardInPlay(t, e, p1, "hBP02-029", ZoneCenter)
	ensureBackstage(t, e, p1, 1)
	require.Empty(t, center.AttachedCheer)

	actions := resetMainStep(e)
	require.False(t, actionPresent(actions, ActionMainStepBatonPass, map[string]any{"center_id": center.GameCardID}))

	cheer := spawnCheerOnCard(t, e, p1, center, "hY01-001")
	actions = resetMainStep(e)
	require.True(t, actionPresent(actions, ActionMainStepBatonPass, map[string]any{"center_id": center.GameCardID}))

	// Execute the pass: the cheer is archived and the holomem swap happens.
	newCenter := p1.Backstage[0]
	e.GrabEvents(testPlayer1)
	e.HandleGameMessage(testPlayer1, ActionMainStepBatonPass, map[string]any{
		"card_id":   newCenter.GameCardID,
		"cheer_ids": []any{cheer.GameCardID},
	})
	events := e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, []expectedEvent{
		{Type: EventMoveAttachedCard, Data: map[string]any{
			"from_holomem_id": center.GameCardID,
			"to_holomem_id":   ZoneArchive,
			"attached_id":     cheer.GameCardID,
		}},
		{Type: EventBatonPass, Data: map[string]any{
			"center_id":     center.GameCardID,
			"new_center_id": newCenter.GameCardID,
		}},
		{Type: EventDecisionMainStep},
	})
	require.Equal(t, newCenter, p1.Center[0])
	require.Equal(t, ZoneBackstage, p1.StageZoneOf(center))
	require.Equal(t, cheer, p1.Archive[0])
	require.True(t, p1.BatonPassedThisTurn)
}

func TestArtDamageAndAutoEndTurn(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(map[string]int{"hBP02-020": 3}), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	center := putCardInPlay(t, e, p1, "hBP02-020", ZoneCenter)
	spawnCheerOnCard(t, e, p1, center, "hY02-001") // green
	spawnCheerOnCard(t, e, p1, center, "hY03-001") // any slot
	target := putCardInPlay(t, e, p2, "hSD01-003", ZoneCenter)

	require.Equal(t, testPlayer1, e.ActivePlayerID)
	resetMainStep(e)
	e.GrabEvents(testPlayer1)

	beginPerformance(t, e)
	e.HandleGameMessage(testPlayer1, ActionPerformanceStepUseArt, map[string]any{
		"art_id":       "royalhalusleepover",
		"performer_id": center.GameCardID,
		"target_id":    target.GameCardID,
	})

	events := e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, append([]expectedEvent{
		{Type: EventDecisionPerformanceStep},
		{Type: EventPerformArt, Data: map[string]any{"art_id": "royalhalusleepover", "power": 50}},
		{Type: EventDamageDealt, Data: map[string]any{"damage": 50, "died": false, "special": false}},
	}, endTurnEvents()...))
	require.Equal(t, 50, target.Damage)
}

func TestArtDownsTargetAndAsksForLifePlacement(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(map[string]int{"hBP02-020": 3}))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	target := putCardInPlay(t, e, p2, "hBP02-020", ZoneCenter)
	target.Damage = target.Def.HP - 10

	center := putCardInPlay(t, e, p1, "hSD01-003", ZoneCenter)
	spawnCheerOnCard(t, e, p1, center, "hY01-001")
	resetMainStep(e)
	e.GrabEvents(testPlayer1)

	beginPerformance(t, e)
	e.HandleGameMessage(testPlayer1, ActionPerformanceStepUseArt, map[string]any{
		"art_id":       "nunnun",
		"performer_id": center.GameCardID,
		"target_id":    target.GameCardID,
	})

	events := e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, []expectedEvent{
		{Type: EventDecisionPerformanceStep},
		{Type: EventPerformArt},
		{Type: EventDamageDealt, Data: map[string]any{"died": true, "life_lost": 1}},
		{Type: EventDownedBefore},
		{Type: EventDowned, Data: map[string]any{"life_lost": 1, "target_id": target.GameCardID}},
		{Type: EventDecisionSendCheer, Data: map[string]any{
			"effect_player_id": testPlayer2,
			"amount_min":       1,
			"amount_max":       1,
			"from_zone":        ZoneLife,
			"to_zone":          ZoneHolomem,
		}},
	})
	// The downed holomem is in the archive and off the stage.
	require.Equal(t, "", p2.StageZoneOf(target))
	require.Contains(t, p2.Archive, target)
	require.Len(t, p2.Life, StartingLife-1)

	// Defender distributes the life cheer; play continues.
	d := e.decision
	e.HandleGameMessage(testPlayer2, ActionEffectMoveCheer, map[string]any{
		"placements": map[string]any{d.FromOptions[0]: d.ToOptions[0]},
	})
	events = e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, []expectedEvent{
		{Type: EventMoveAttachedCard, Data: map[string]any{"from_holomem_id": ZoneLife}},
	})
	require.False(t, e.IsGameOver())
}

func TestCollabConditionalDamage(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(map[string]int{"hBP02-029": 1}), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	marine := putCardInPlay(t, e, p1, "hBP02-029", ZoneBackstage)

	// Opponent has a collab member: the collab effect fires at it.
	ensureBackstage(t, e, p2, 1)
	p2.Collab = []*CardInstance{p2.Backstage[0]}
	p2.Backstage = p2.Backstage[1:]

	resetMainStep(e)
	e.GrabEvents(testPlayer1)
	e.HandleGameMessage(testPlayer1, ActionMainStepCollab, map[string]any{"card_id": marine.GameCardID})

	events := e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, []expectedEvent{
		{Type: EventCollab, Data: map[string]any{"collab_card_id": marine.GameCardID}},
		{Type: EventDamageDealt, Data: map[string]any{
			"damage":    20,
			"special":   true,
			"target_id": p2.Collab[0].GameCardID,
		}},
		{Type: EventDecisionMainStep},
	})
	require.Equal(t, 20, p2.Collab[0].Damage)
	require.True(t, p1.CollabedThisTurn)
	require.Len(t, p1.Holopower, 1)
}

func TestCollabConditionalDamageNoCollab(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(map[string]int{"hBP02-029": 1}), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	marine := putCardInPlay(t, e, p1, "hBP02-029", ZoneBackstage)
	p2.Collab = nil

	resetMainStep(e)
	e.GrabEvents(testPlayer1)
	e.HandleGameMessage(testPlayer1, ActionMainStepCollab, map[string]any{"card_id": marine.GameCardID})

	events := e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, []expectedEvent{
		{Type: EventCollab, Data: map[string]any{"collab_card_id": marine.GameCardID}},
		{Type: EventDecisionMainStep},
	})
}

func TestCollabReturnsRestingAtReset(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(map[string]int{"hBP02-029": 1}), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)

	marine := putCardInPlay(t, e, p1, "hBP02-029", ZoneBackstage)
	resetMainStep(e)
	e.HandleGameMessage(testPlayer1, ActionMainStepCollab, map[string]any{"card_id": marine.GameCardID})

	// Round-trip to player1's next turn: the collab member is backstage,
	// resting, then wakes the reset after.
	e.HandleGameMessage(testPlayer1, ActionMainStepEndTurn, nil)
	placeCheerOnFirst(t, e)
	e.HandleGameMessage(testPlayer2, ActionMainStepEndTurn, nil)
	require.Equal(t, ZoneBackstage, p1.StageZoneOf(marine))
	require.True(t, marine.Resting)
	require.Empty(t, p1.Collab)

	placeCheerOnFirst(t, e)
	e.HandleGameMessage(testPlayer1, ActionMainStepEndTurn, nil)
	placeCheerOnFirst(t, e)
	e.HandleGameMessage(testPlayer2, ActionMainStepEndTurn, nil)
	require.False(t, marine.Resting)
}

func TestDeckOutLosesOnDraw(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))
	p2 := e.GetPlayer(testPlayer2)

	p2.Deck = nil
	e.GrabEvents(testPlayer1)
	e.HandleGameMessage(testPlayer1, ActionMainStepEndTurn, nil)

	require.True(t, e.IsGameOver())
	require.Equal(t, testPlayer1, e.WinnerID)
	require.Equal(t, ReasonDeckOut, e.GameOverReason)

	events := e.GrabEvents(testPlayer1)
	last := events[len(events)-1]
	require.Equal(t, EventGameOver, last.Type)
	require.Equal(t, ReasonDeckOut, last.Data["reason"])
}

func TestActionValidation(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))

	// Not the decision holder.
	e.GrabEvents(testPlayer1)
	e.HandleGameMessage(testPlayer2, ActionMainStepEndTurn, nil)
	events := e.GrabEvents(testPlayer1)
	require.Len(t, events, 1)
	require.Equal(t, EventGameError, events[0].Type)
	require.Equal(t, "action_rejected", events[0].Data["error_id"])

	// Wrong action for the pending decision.
	e.HandleGameMessage(testPlayer1, ActionEffectMakeChoice, map[string]any{"choice_index": 0})
	events = e.GrabEvents(testPlayer1)
	require.Len(t, events, 1)
	require.Equal(t, EventGameError, events[0].Type)

	// Unknown card reference.
	e.HandleGameMessage(testPlayer1, ActionMainStepCollab, map[string]any{"card_id": "nope_99"})
	events = e.GrabEvents(testPlayer1)
	require.Len(t, events, 1)
	require.Equal(t, EventGameError, events[0].Type)

	// State unchanged: still player1's main step.
	require.Equal(t, decisionMainStep, e.decision.kind)
	require.Equal(t, testPlayer1, e.ActivePlayerID)
}

func TestPerformanceUnavailableOnFirstTurn(t *testing.T) {
	for seed := int64(1); seed < 40; seed++ {
		e := startTestGame(t, seed, "", "", generateDeckWith(nil), generateDeckWith(nil))
		if e.StartingPlayerID != testPlayer1 {
			continue
		}
		placeCheerOnFirst(t, e)
		require.Equal(t, 1, e.TurnNumber)
		actions := e.decision.availableActions
		require.False(t, actionPresent(actions, ActionMainStepBeginPerformance, nil))

		// The restriction lifts from turn two on.
		e.HandleGameMessage(testPlayer1, ActionMainStepEndTurn, nil)
		placeCheerOnFirst(t, e)
		require.Equal(t, 2, e.TurnNumber)
		actions = e.decision.availableActions
		require.True(t, actionPresent(actions, ActionMainStepBeginPerformance, nil))
		return
	}
	t.Fatal("no seed found with player1 starting")
}

func TestConcedeEndsGame(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(nil))
	e.Concede(testPlayer2, ReasonConcede)
	require.True(t, e.IsGameOver())
	require.Equal(t, testPlayer1, e.WinnerID)
	require.Equal(t, ReasonConcede, e.GameOverReason)
}

func TestBloomTransfersStateAndBlocksReuse(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(map[string]int{"hSD01-005": 2}), generateDeckWith(nil))
	p1 := e.GetPlayer(testPlayer1)

	// A sora debut center with damage and cheer; bloom preserves both.
	center := putCardInPlay(t, e, p1, "hSD01-003", ZoneCenter)
	center.Damage = 20
	cheer := spawnCheerOnCard(t, e, p1, center, "hY01-001")
	bloom := addCardToHand(t, e, p1, "hSD01-005")

	actions := resetMainStep(e)
	require.True(t, actionPresent(actions, ActionMainStepBloom, map[string]any{
		"card_id":   bloom.GameCardID,
		"target_id": center.GameCardID,
	}))

	e.GrabEvents(testPlayer1)
	e.HandleGameMessage(testPlayer1, ActionMainStepBloom, map[string]any{
		"card_id":   bloom.GameCardID,
		"target_id": center.GameCardID,
	})
	events := e.GrabEvents(testPlayer1)
	validateConsecutiveEvents(t, events, []expectedEvent{
		{Type: EventBloom, Data: map[string]any{
			"bloom_card_id":  bloom.GameCardID,
			"target_card_id": center.GameCardID,
		}},
		{Type: EventDecisionMainStep},
	})

	require.Equal(t, bloom, p1.Center[0])
	require.Equal(t, 20, bloom.Damage)
	require.Equal(t, []*CardInstance{cheer}, bloom.AttachedCheer)
	require.Equal(t, []*CardInstance{center}, bloom.BloomedFrom)
	require.True(t, bloom.BloomedThisTurn)

	// The fresh bloom cannot be bloomed again this turn.
	second := addCardToHand(t, e, p1, "hSD01-005")
	actions = resetMainStep(e)
	require.False(t, actionPresent(actions, ActionMainStepBloom, map[string]any{
		"card_id":   second.GameCardID,
		"target_id": bloom.GameCardID,
	}))
}

func TestBuzzHolomemLosesTwoLife(t *testing.T) {
	e := initializeGameToThirdTurn(t, generateDeckWith(nil), generateDeckWith(map[string]int{"hBP02-035": 2}))
	p1 := e.GetPlayer(testPlayer1)
	p2 := e.GetPlayer(testPlayer2)

	target := putCardInPlay(t, e, p2, "hBP02-035", ZoneCenter)
	target.Damage = target.Def.HP - 10

	center := putCardInPlay(t, e, p1, "hSD01-003", ZoneCenter)
	spawnCheerOnCard(t, e, p1, center, "hY01-001")
	resetMainStep(e)
	e.GrabEvents(testPlayer1)

	beginPerformance(t, e)
	e.HandleGameMessage(testPlayer1, ActionPerformanceStepUseArt, map[string]any{
		"art_id":       "nunnun",
		"performer_id": center.GameCardID,
		"target_id":    target.GameCardID,
	})

	d := e.decision
	require.NotNil(t, d)
	require.Equal(t, decisionLifeCheer, d.kind)
	require.Equal(t, 2, d.AmountMin)
	require.Equal(t, 2, d.AmountMax)
	require.Len(t, p2.Life, StartingLife-2)
}
