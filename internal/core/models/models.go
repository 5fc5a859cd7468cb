// Package models holds the karma types shared by the engine, the store and
// the chat command layer, so none of them has to import another for its types
package models

// A UserKarma is the karma score attributed to a single IRC nickname
type UserKarma struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Karma int64  `db:"karma"`
}

// Direction is which way a karma token moves a score
type Direction int

const (
	Increased Direction = iota
	Decreased
)

func (d Direction) String() string {
	if d == Decreased {
		return "decreased"
	}
	return "increased"
}

// A KarmaChange is the outcome of applying one karma token
type KarmaChange struct {
	Name      string
	Karma     int64
	Direction Direction
}
