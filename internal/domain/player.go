package domain

// ConnectionState - liveness of a seated player
type ConnectionState string

const (
	ConnStateConnected    ConnectionState = "connected"
	ConnStateDisconnected ConnectionState = "disconnected"
	ConnStateLeft         ConnectionState = "left"
)

// Player is one seat in a room. The seat keeps its position in the turn order
// for the whole life of the room, even after the player leaves.
type Player struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"display_name"`
	ConnectionState ConnectionState `json:"connection_state"`
	Hand            []Card          `json:"hand,omitempty"`
	HandSize        int             `json:"hand_size"`
	WonRounds       int             `json:"won_rounds"`
}

// Seated reports whether the player still occupies a seat (has not left).
func (p *Player) Seated() bool {
	return p.ConnectionState != ConnStateLeft
}

// HasCard reports whether the card is in the player's hand.
func (p *Player) HasCard(c Card) bool {
	for _, h := range p.Hand {
		if h == c {
			return true
		}
	}
	return false
}

// RemoveCard removes the first occurrence of the card from the hand and
// reports whether it was present.
func (p *Player) RemoveCard(c Card) bool {
	for i, h := range p.Hand {
		if h == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			p.HandSize = len(p.Hand)
			return true
		}
	}
	return false
}
