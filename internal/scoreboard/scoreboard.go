// Package scoreboard defines the match record, the derived game state and the
// error taxonomy shared by every layer. It has zero external dependencies.
package scoreboard

import (
	"strings"
	"time"
)

type Kind string

const (
	KindSingles Kind = "singles"
	KindDoubles Kind = "doubles"
)

func (k Kind) Valid() bool {
	return k == KindSingles || k == KindDoubles
}

// PlayersPerSide is 1 for singles and 2 for doubles.
func (k Kind) PlayersPerSide() int {
	if k == KindDoubles {
		return 2
	}
	return 1
}

// Team identifies a side. The zero value means "no team".
type Team int

const (
	TeamA Team = 1
	TeamB Team = 2
)

func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

func (t Team) String() string {
	switch t {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	}
	return "none"
}

// DefaultPointsToWin is used when a create request omits the target.
const DefaultPointsToWin = 11

// AllowedPointsToWin reports whether n is a supported game length.
func AllowedPointsToWin(n int) bool {
	return n == 11 || n == 21
}

type Match struct {
	ID          string
	Kind        Kind
	SideA       []string
	SideB       []string
	ScoreA      int
	ScoreB      int
	PointsToWin int
	Winner      Team
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// State derives the game state from the current scores. It is never stored.
func (m *Match) State() GameState {
	return Compute(m.ScoreA, m.ScoreB, m.PointsToWin)
}

// Score returns the score of the given side.
func (m *Match) Score(t Team) int {
	if t == TeamB {
		return m.ScoreB
	}
	return m.ScoreA
}

// Adjust adds delta to the given side's score, flooring at zero.
func (m *Match) Adjust(t Team, delta int) {
	switch t {
	case TeamA:
		m.ScoreA = max(0, m.ScoreA+delta)
	case TeamB:
		m.ScoreB = max(0, m.ScoreB+delta)
	}
}

// Slots returns the player names in persisted column order (player1..player4).
// Side A holds player1 and player3, side B holds player2 and player4.
func (m *Match) Slots() [4]string {
	return [4]string{at(m.SideA, 0), at(m.SideB, 0), at(m.SideA, 1), at(m.SideB, 1)}
}

// Sides is the inverse of Slots.
func Sides(kind Kind, slots [4]string) (a, b []string) {
	if kind == KindDoubles {
		return []string{slots[0], slots[2]}, []string{slots[1], slots[3]}
	}
	return []string{slots[0]}, []string{slots[1]}
}

// Clone returns a deep copy so snapshots handed to subscribers cannot alias
// the caller's record.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.SideA = append([]string(nil), m.SideA...)
	c.SideB = append([]string(nil), m.SideB...)
	return &c
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// NewMatch is the input for creating the active match.
type NewMatch struct {
	Kind        Kind
	SideA       []string
	SideB       []string
	PointsToWin int
}

// Validate trims player names, defaults the kind to singles and checks the
// shape of the lineup. PointsToWin has no default here: zero is rejected.
// It returns a *Error matching ErrValidation on failure.
func (n *NewMatch) Validate() error {
	if n.Kind == "" {
		n.Kind = KindSingles
	}
	if !n.Kind.Valid() {
		return Invalid("match type must be singles or doubles")
	}

	n.SideA = trimAll(n.SideA)
	n.SideB = trimAll(n.SideB)

	per := n.Kind.PlayersPerSide()
	if !filled(n.SideA, 1) || !filled(n.SideB, 1) {
		return Invalid("player names are required")
	}
	if per == 2 && (!filled(n.SideA, 2) || !filled(n.SideB, 2)) {
		return Invalid("all player names are required for doubles match")
	}
	n.SideA = n.SideA[:per]
	n.SideB = n.SideB[:per]

	if !AllowedPointsToWin(n.PointsToWin) {
		return Invalid("points to win must be 11 or 21")
	}
	return nil
}

func trimAll(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.TrimSpace(name)
	}
	return out
}

// filled reports whether the first n names are present and non-empty.
func filled(names []string, n int) bool {
	if len(names) < n {
		return false
	}
	for _, name := range names[:n] {
		if name == "" {
			return false
		}
	}
	return true
}
