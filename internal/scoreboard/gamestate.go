package scoreboard

type StateKind string

const (
	StateNormal    StateKind = "normal"
	StateDeuce     StateKind = "deuce"
	StateAdvantage StateKind = "advantage"
	StateWin       StateKind = "win"
)

// GameState is the display/decision state derived from a score pair. Team is
// the leading side for advantage, the winner for win, and zero otherwise.
type GameState struct {
	Kind StateKind
	Team Team
}

func (g GameState) IsWin() bool { return g.Kind == StateWin }

func (g GameState) String() string {
	if g.Team.Valid() {
		return string(g.Kind) + "(" + g.Team.String() + ")"
	}
	return string(g.Kind)
}

// Compute derives the game state for the given scores and target.
//
// A side wins once it reaches pointsToWin with a lead of at least two. Deuce
// and advantage apply only when both sides have reached pointsToWin-1, so a
// 10-3 game to 11 is still normal.
func Compute(scoreA, scoreB, pointsToWin int) GameState {
	hi, lo := max(scoreA, scoreB), min(scoreA, scoreB)
	diff := hi - lo

	leader := TeamA
	if scoreB > scoreA {
		leader = TeamB
	}

	if hi >= pointsToWin && diff >= 2 {
		return GameState{Kind: StateWin, Team: leader}
	}

	if lo >= pointsToWin-1 {
		switch diff {
		case 0:
			return GameState{Kind: StateDeuce}
		case 1:
			return GameState{Kind: StateAdvantage, Team: leader}
		}
	}

	return GameState{Kind: StateNormal}
}
