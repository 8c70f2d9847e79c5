package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"cardroom/internal/domain"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// apply is a test helper that feeds an action through and fails on rejection.
func apply(t *testing.T, e *Engine, s *domain.GameState, a domain.Action, rng *rand.Rand) *domain.GameState {
	t.Helper()
	next, _, err := e.Apply(s, a, rng)
	require.NoError(t, err)
	return next
}

// startedGame seats n players (p1 owns the room) and starts the game.
func startedGame(t *testing.T, n int) (*Engine, *domain.GameState, *rand.Rand) {
	t.Helper()
	settings := domain.DefaultSettings()
	e := New("p1", settings)
	rng := testRand()
	s := domain.NewGameState("room")
	names := []string{"p1", "p2", "p3", "p4"}
	for i := 0; i < n; i++ {
		s = apply(t, e, s, domain.NewJoin(names[i], "Player "+names[i]), rng)
	}
	s = apply(t, e, s, domain.NewStartGame("p1"), rng)
	return e, s, rng
}

func totalCards(s *domain.GameState) int {
	n := len(s.Deck) + len(s.Discard)
	for i := range s.Players {
		n += len(s.Players[i].Hand)
	}
	return n
}

func TestJoinAndStartDealsHands(t *testing.T) {
	_, s, _ := startedGame(t, 2)

	require.Equal(t, domain.PhaseInProgress, s.Phase)
	require.Equal(t, int64(3), s.Version) // two joins + start
	require.Len(t, s.Players, 2)
	for _, p := range s.Players {
		require.Len(t, p.Hand, 7)
	}
	require.Len(t, s.Deck, domain.DeckSize-14)
	require.Empty(t, s.Discard)
	require.Equal(t, "p1", s.CurrentPlayer().ID)
	require.Equal(t, domain.DeckSize, totalCards(s))
}

func TestStartGameEmitsRedactableSnapshot(t *testing.T) {
	e := New("p1", domain.DefaultSettings())
	rng := testRand()
	s := domain.NewGameState("room")
	s = apply(t, e, s, domain.NewJoin("p1", "A"), rng)
	s = apply(t, e, s, domain.NewJoin("p2", "B"), rng)

	_, events, err := e.Apply(s, domain.NewStartGame("p1"), rng)
	require.NoError(t, err)
	require.Len(t, events, 1)

	snap, ok := events[0].(domain.StateSnapshotEvent)
	require.True(t, ok)

	forP2 := snap.RedactFor("p2").(domain.StateSnapshotEvent)
	require.Nil(t, forP2.State.Deck)
	for _, p := range forP2.State.Players {
		if p.ID == "p2" {
			require.Len(t, p.Hand, 7)
		} else {
			require.Nil(t, p.Hand)
			require.Equal(t, 7, p.HandSize)
		}
	}
}

func TestJoinRejections(t *testing.T) {
	e := New("p1", domain.RoomSettings{MaxPlayers: 2, MinPlayers: 2})
	rng := testRand()
	s := domain.NewGameState("room")
	s = apply(t, e, s, domain.NewJoin("p1", "A"), rng)

	_, _, err := e.Apply(s, domain.NewJoin("p1", "A again"), rng)
	require.True(t, domain.IsRuleViolation(err))

	s = apply(t, e, s, domain.NewJoin("p2", "B"), rng)
	_, _, err = e.Apply(s, domain.NewJoin("p3", "C"), rng)
	require.True(t, domain.IsRuleViolation(err))

	s = apply(t, e, s, domain.NewStartGame("p1"), rng)
	_, _, err = e.Apply(s, domain.NewJoin("p3", "C"), rng)
	require.True(t, domain.IsRuleViolation(err))
}

func TestStartGameRejections(t *testing.T) {
	e := New("p1", domain.DefaultSettings())
	rng := testRand()
	s := domain.NewGameState("room")
	s = apply(t, e, s, domain.NewJoin("p1", "A"), rng)

	_, _, err := e.Apply(s, domain.NewStartGame("p1"), rng)
	require.True(t, domain.IsRuleViolation(err)) // alone

	s = apply(t, e, s, domain.NewJoin("p2", "B"), rng)
	_, _, err = e.Apply(s, domain.NewStartGame("p2"), rng)
	require.True(t, domain.IsRuleViolation(err)) // not the owner
}

func TestStartGameRejectsOversizedDeal(t *testing.T) {
	// 8 seats at 7 cards each would need 56 cards; the deal must be refused
	// rather than handing some players short hands.
	settings := domain.RoomSettings{
		MaxPlayers:       8,
		MinPlayers:       2,
		DealCount:        7,
		Rounds:           1,
		Variant:          domain.VariantClassic,
		ReshuffleDiscard: true,
	}
	e := New("p1", settings)
	rng := testRand()
	s := domain.NewGameState("room")
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"} {
		s = apply(t, e, s, domain.NewJoin(id, id), rng)
	}

	_, _, err := e.Apply(s, domain.NewStartGame("p1"), rng)
	var rv *domain.RuleViolationError
	require.ErrorAs(t, err, &rv)
	require.Equal(t, domain.RuleDeckTooSmall, rv.Code)
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	e, s, rng := startedGame(t, 2)
	before := s.Version

	got, _, err := e.Apply(s, domain.NewPlayCard("p2", s.Players[0].Hand[0]), rng)
	require.Error(t, err)
	require.Same(t, s, got)
	require.Equal(t, before, s.Version)
}

func TestPlayCardMovesToDiscard(t *testing.T) {
	e, s, rng := startedGame(t, 2)
	card := s.Players[0].Hand[0] // discard empty, any card is legal

	next, events, err := e.Apply(s, domain.NewPlayCard("p1", card), rng)
	require.NoError(t, err)

	top, ok := next.TopDiscard()
	require.True(t, ok)
	require.Equal(t, card, top)
	require.False(t, next.Players[0].HasCard(card))
	require.Len(t, next.Players[0].Hand, 6)
	require.Equal(t, s.Version+1, next.Version)
	require.Equal(t, domain.DeckSize, totalCards(next))

	require.Len(t, events, 2)
	played := events[0].(domain.CardPlayedEvent)
	require.Equal(t, card, played.Card)
	require.Equal(t, 6, played.HandSize)
	turn := events[1].(domain.TurnAdvancedEvent)
	require.Equal(t, "p2", turn.PlayerID)
}

func TestPlayCardNotInHand(t *testing.T) {
	e, s, rng := startedGame(t, 2)
	// The deck top cannot be in p1's hand.
	card := s.Deck[len(s.Deck)-1]

	_, _, err := e.Apply(s, domain.NewPlayCard("p1", card), rng)
	var rv *domain.RuleViolationError
	require.ErrorAs(t, err, &rv)
	require.Equal(t, domain.RuleCardNotInHand, rv.Code)
}

func TestPlayCardMustMatchTopDiscard(t *testing.T) {
	e := New("p1", domain.DefaultSettings())
	s := &domain.GameState{
		RoomID: "room",
		Phase:  domain.PhaseInProgress,
		Players: []domain.Player{
			{ID: "p1", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitHearts, Rank: domain.Rank2}}},
			{ID: "p2", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitClubs, Rank: domain.RankKing}}},
		},
		Discard: []domain.Card{{Suit: domain.SuitSpades, Rank: domain.Rank9}},
		Version: 10,
	}

	_, _, err := e.Apply(s, domain.NewPlayCard("p1", domain.Card{Suit: domain.SuitHearts, Rank: domain.Rank2}), testRand())
	var rv *domain.RuleViolationError
	require.ErrorAs(t, err, &rv)
	require.Equal(t, domain.RuleCardNotLegal, rv.Code)

	// Matching rank is legal even with a different suit.
	s.Players[0].Hand = []domain.Card{{Suit: domain.SuitHearts, Rank: domain.Rank9}}
	next, _, err := e.Apply(s, domain.NewPlayCard("p1", domain.Card{Suit: domain.SuitHearts, Rank: domain.Rank9}), testRand())
	require.NoError(t, err)
	top, _ := next.TopDiscard()
	require.Equal(t, domain.Rank9, top.Rank)
}

func TestFreeVariantIgnoresMatching(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.Variant = domain.VariantFree
	e := New("p1", settings)
	s := &domain.GameState{
		RoomID: "room",
		Phase:  domain.PhaseInProgress,
		Players: []domain.Player{
			{ID: "p1", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitHearts, Rank: domain.Rank2}, {Suit: domain.SuitHearts, Rank: domain.Rank3}}},
			{ID: "p2", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitClubs, Rank: domain.RankKing}}},
		},
		Discard: []domain.Card{{Suit: domain.SuitSpades, Rank: domain.Rank9}},
	}

	_, _, err := e.Apply(s, domain.NewPlayCard("p1", domain.Card{Suit: domain.SuitHearts, Rank: domain.Rank2}), testRand())
	require.NoError(t, err)
}

func TestDrawCard(t *testing.T) {
	e, s, rng := startedGame(t, 2)
	deckBefore := len(s.Deck)

	next, events, err := e.Apply(s, domain.NewDrawCard("p1"), rng)
	require.NoError(t, err)
	require.Len(t, next.Players[0].Hand, 8)
	require.Len(t, next.Deck, deckBefore-1)
	require.Equal(t, domain.DeckSize, totalCards(next))
	// Drawing does not pass the turn.
	require.Equal(t, "p1", next.CurrentPlayer().ID)

	drawn := events[0].(domain.CardDrawnEvent)
	require.False(t, drawn.Card.IsZero())
	hidden := drawn.RedactFor("p2").(domain.CardDrawnEvent)
	require.True(t, hidden.Card.IsZero())
	require.True(t, hidden.Hidden)
}

func TestDrawReshufflesDiscard(t *testing.T) {
	e := New("p1", domain.DefaultSettings())
	s := &domain.GameState{
		RoomID: "room",
		Phase:  domain.PhaseInProgress,
		Players: []domain.Player{
			{ID: "p1", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitHearts, Rank: domain.Rank2}}},
			{ID: "p2", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitClubs, Rank: domain.RankKing}}},
		},
		Discard: []domain.Card{
			{Suit: domain.SuitSpades, Rank: domain.Rank9},
			{Suit: domain.SuitDiamonds, Rank: domain.Rank4},
			{Suit: domain.SuitClubs, Rank: domain.RankAce},
		},
	}
	before := totalCards(s)

	next, events, err := e.Apply(s, domain.NewDrawCard("p1"), testRand())
	require.NoError(t, err)

	drawn := events[0].(domain.CardDrawnEvent)
	require.True(t, drawn.Reshuffled)
	// The old top card stays on the discard pile.
	top, _ := next.TopDiscard()
	require.Equal(t, domain.Card{Suit: domain.SuitClubs, Rank: domain.RankAce}, top)
	require.Len(t, next.Discard, 1)
	require.Equal(t, before, totalCards(next))
}

func TestDrawFromExhaustedDeck(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.ReshuffleDiscard = false
	e := New("p1", settings)
	s := &domain.GameState{
		RoomID: "room",
		Phase:  domain.PhaseInProgress,
		Players: []domain.Player{
			{ID: "p1", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitHearts, Rank: domain.Rank2}}},
			{ID: "p2", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitClubs, Rank: domain.RankKing}}},
		},
		Discard: []domain.Card{{Suit: domain.SuitSpades, Rank: domain.Rank9}},
	}

	_, _, err := e.Apply(s, domain.NewDrawCard("p1"), testRand())
	var rv *domain.RuleViolationError
	require.ErrorAs(t, err, &rv)
	require.Equal(t, domain.RuleDeckEmpty, rv.Code)
}

func TestTurnOrderSkipsLeftSeats(t *testing.T) {
	e, s, rng := startedGame(t, 3)
	require.Equal(t, "p1", s.CurrentPlayer().ID)

	s = apply(t, e, s, domain.NewPassTurn("p1"), rng)
	require.Equal(t, "p2", s.CurrentPlayer().ID)

	s = apply(t, e, s, domain.NewLeave("p3", false), rng)
	require.Equal(t, domain.PhaseInProgress, s.Phase) // two still seated

	// p2 passes; p3 has left, so the turn wraps to p1.
	s = apply(t, e, s, domain.NewPassTurn("p2"), rng)
	require.Equal(t, "p1", s.CurrentPlayer().ID)
	require.Equal(t, domain.DeckSize, totalCards(s))
}

func TestLeaveReturnsHandToDeckBottom(t *testing.T) {
	e, s, rng := startedGame(t, 3)
	hand := append([]domain.Card(nil), s.Players[2].Hand...)
	deckBefore := len(s.Deck)

	s = apply(t, e, s, domain.NewLeave("p3", false), rng)

	require.Len(t, s.Deck, deckBefore+len(hand))
	require.Equal(t, hand, s.Deck[:len(hand)]) // bottom of the deck
	require.Equal(t, domain.ConnStateLeft, s.Players[2].ConnectionState)
	require.Equal(t, domain.DeckSize, totalCards(s))
}

func TestLeaveOfCurrentPlayerAdvancesTurn(t *testing.T) {
	e, s, rng := startedGame(t, 3)

	_, events, err := e.Apply(s, domain.NewLeave("p1", false), rng)
	require.NoError(t, err)
	require.Len(t, events, 2)
	turn := events[1].(domain.TurnAdvancedEvent)
	require.Equal(t, "p2", turn.PlayerID)
}

func TestLastOpponentLeavingEndsGame(t *testing.T) {
	e, s, rng := startedGame(t, 2)

	next, events, err := e.Apply(s, domain.NewLeave("p2", false), rng)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseFinished, next.Phase)

	ended := events[len(events)-1].(domain.GameEndedEvent)
	require.Equal(t, "p1", ended.WinnerID)
	require.Equal(t, "opponents_left", ended.Reason)
}

func TestEmptyHandWinsRoundAndGame(t *testing.T) {
	e := New("p1", domain.DefaultSettings()) // Rounds: 1
	s := &domain.GameState{
		RoomID: "room",
		Phase:  domain.PhaseInProgress,
		Players: []domain.Player{
			{ID: "p1", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitHearts, Rank: domain.Rank2}}},
			{ID: "p2", ConnectionState: domain.ConnStateConnected,
				Hand: []domain.Card{{Suit: domain.SuitClubs, Rank: domain.RankKing}, {Suit: domain.SuitSpades, Rank: domain.RankAce}}},
		},
		Version: 5,
	}

	next, events, err := e.Apply(s, domain.NewPlayCard("p1", domain.Card{Suit: domain.SuitHearts, Rank: domain.Rank2}), testRand())
	require.NoError(t, err)
	require.Equal(t, domain.PhaseFinished, next.Phase)
	require.Len(t, events, 3)

	round := events[1].(domain.RoundEndedEvent)
	require.Equal(t, "p1", round.WinnerID)
	require.Equal(t, 1, round.WonRounds)

	ended := events[2].(domain.GameEndedEvent)
	require.Equal(t, "p1", ended.WinnerID)
	require.Equal(t, "rounds_won", ended.Reason)

	// Every event of the action carries its version.
	for _, ev := range events {
		require.Equal(t, int64(6), ev.Version())
	}
}

func TestMultiRoundGame(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.Rounds = 2
	e := New("p1", settings)
	rng := testRand()

	s := domain.NewGameState("room")
	s = apply(t, e, s, domain.NewJoin("p1", "A"), rng)
	s = apply(t, e, s, domain.NewJoin("p2", "B"), rng)
	s = apply(t, e, s, domain.NewStartGame("p1"), rng)

	// Hand-craft a round win for p1.
	s.Players[0].Hand = s.Players[0].Hand[:1]
	card := s.Players[0].Hand[0]
	s.Discard = nil
	s = apply(t, e, s, domain.NewPlayCard("p1", card), rng)
	require.Equal(t, domain.PhaseRoundEnd, s.Phase)
	require.Equal(t, 1, s.Players[0].WonRounds)

	// The next round restarts from a full reshuffled deck.
	s = apply(t, e, s, domain.NewStartGame("p1"), rng)
	require.Equal(t, domain.PhaseInProgress, s.Phase)
	require.Len(t, s.Players[0].Hand, 7)
	require.Len(t, s.Players[1].Hand, 7)
	require.Equal(t, domain.DeckSize, totalCards(s))
	require.Equal(t, 1, s.Players[0].WonRounds)
}

// TestCardConservationRandomized drives a seeded random action sequence and
// checks that the 52-card set is intact after every accepted action.
func TestCardConservationRandomized(t *testing.T) {
	e, s, rng := startedGame(t, 3)
	players := []string{"p1", "p2", "p3"}

	for i := 0; i < 500 && s.Phase == domain.PhaseInProgress; i++ {
		actor := players[rng.Intn(len(players))]
		var a domain.Action
		switch rng.Intn(3) {
		case 0:
			p := s.FindPlayer(actor)
			if len(p.Hand) == 0 {
				a = domain.NewPassTurn(actor)
			} else {
				a = domain.NewPlayCard(actor, p.Hand[rng.Intn(len(p.Hand))])
			}
		case 1:
			a = domain.NewDrawCard(actor)
		default:
			a = domain.NewPassTurn(actor)
		}

		next, _, err := e.Apply(s, a, rng)
		if err != nil {
			require.True(t, domain.IsRuleViolation(err), "unexpected error: %v", err)
			require.Same(t, s, next)
			continue
		}
		require.Equal(t, s.Version+1, next.Version)
		require.Equal(t, domain.DeckSize, totalCards(next))
		s = next
	}
}
