package domain

import "fmt"

// Suit - card suit
type Suit string

const (
	SuitHearts   Suit = "HEARTS"
	SuitDiamonds Suit = "DIAMONDS"
	SuitClubs    Suit = "CLUBS"
	SuitSpades   Suit = "SPADES"
)

// Rank - card rank, ordered ACE low through KING high
type Rank string

const (
	RankAce   Rank = "ACE"
	Rank2     Rank = "2"
	Rank3     Rank = "3"
	Rank4     Rank = "4"
	Rank5     Rank = "5"
	Rank6     Rank = "6"
	Rank7     Rank = "7"
	Rank8     Rank = "8"
	Rank9     Rank = "9"
	Rank10    Rank = "10"
	RankJack  Rank = "JACK"
	RankQueen Rank = "QUEEN"
	RankKing  Rank = "KING"
)

// Suits and Ranks define the fixed deck composition.
var (
	Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}
	Ranks = []Rank{RankAce, Rank2, Rank3, Rank4, Rank5, Rank6, Rank7,
		Rank8, Rank9, Rank10, RankJack, RankQueen, RankKing}
)

// DeckSize is the size of the full card set.
const DeckSize = 52

// Card is an immutable value; two cards are equal when suit and rank match.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s-%s", c.Rank, c.Suit)
}

// IsZero reports whether the card is the empty value (used for redacted cards).
func (c Card) IsZero() bool {
	return c.Suit == "" && c.Rank == ""
}

// NewDeck returns the full fixed card set in generation order.
// The top of any pile is the end of the slice.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}
