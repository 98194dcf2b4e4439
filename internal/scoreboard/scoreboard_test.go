package scoreboard_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

func TestNewMatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      scoreboard.NewMatch
		wantErr string
		check   func(t *testing.T, n scoreboard.NewMatch)
	}{
		{
			name: "singles defaults",
			in:   scoreboard.NewMatch{SideA: []string{" Ana "}, SideB: []string{"Bo"}, PointsToWin: 11},
			check: func(t *testing.T, n scoreboard.NewMatch) {
				assert.Equal(t, scoreboard.KindSingles, n.Kind)
				assert.Equal(t, 11, n.PointsToWin)
				assert.Equal(t, []string{"Ana"}, n.SideA)
			},
		},
		{
			name: "singles drops extra names",
			in:   scoreboard.NewMatch{Kind: scoreboard.KindSingles, SideA: []string{"Ana", "Cy"}, SideB: []string{"Bo", "Di"}, PointsToWin: 21},
			check: func(t *testing.T, n scoreboard.NewMatch) {
				assert.Equal(t, []string{"Ana"}, n.SideA)
				assert.Equal(t, []string{"Bo"}, n.SideB)
			},
		},
		{
			name:    "missing player",
			in:      scoreboard.NewMatch{SideA: []string{"Ana"}, SideB: []string{"  "}, PointsToWin: 11},
			wantErr: "player names are required",
		},
		{
			name:    "doubles missing partner",
			in:      scoreboard.NewMatch{Kind: scoreboard.KindDoubles, SideA: []string{"Ana", "Cy"}, SideB: []string{"Bo", ""}, PointsToWin: 11},
			wantErr: "all player names are required for doubles match",
		},
		{
			name:    "bad target",
			in:      scoreboard.NewMatch{SideA: []string{"Ana"}, SideB: []string{"Bo"}, PointsToWin: 15},
			wantErr: "points to win must be 11 or 21",
		},
		{
			name:    "zero target",
			in:      scoreboard.NewMatch{SideA: []string{"Ana"}, SideB: []string{"Bo"}},
			wantErr: "points to win must be 11 or 21",
		},
		{
			name:    "bad kind",
			in:      scoreboard.NewMatch{Kind: "triples", SideA: []string{"Ana"}, SideB: []string{"Bo"}, PointsToWin: 11},
			wantErr: "match type must be singles or doubles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.in
			err := n.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, scoreboard.ErrValidation))
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, n)
		})
	}
}

func TestAdjustFloorsAtZero(t *testing.T) {
	m := &scoreboard.Match{}
	m.Adjust(scoreboard.TeamA, -1)
	m.Adjust(scoreboard.TeamA, -1)
	m.Adjust(scoreboard.TeamB, 1)
	assert.Equal(t, 0, m.ScoreA)
	assert.Equal(t, 1, m.ScoreB)
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, errors.Is(scoreboard.ErrAlreadyActive, scoreboard.ErrConflict))
	assert.False(t, errors.Is(scoreboard.ErrAlreadyActive, scoreboard.ErrValidation))

	cause := errors.New("disk full")
	err := scoreboard.Storage("updating match", cause)
	assert.True(t, errors.Is(err, scoreboard.ErrStorage))
	assert.True(t, errors.Is(err, cause))
}

func TestMatchJSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := scoreboard.Match{
		ID:          "m1",
		Kind:        scoreboard.KindDoubles,
		SideA:       []string{"Ana", "Cy"},
		SideB:       []string{"Bo", "Di"},
		ScoreA:      11,
		ScoreB:      10,
		PointsToWin: 11,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(&m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Ana", raw["player1"])
	assert.Equal(t, "Bo", raw["player2"])
	assert.Equal(t, "Cy", raw["player3"])
	assert.Equal(t, "Di", raw["player4"])
	assert.Nil(t, raw["winner"])
	assert.Equal(t, map[string]any{"type": "advantage", "advantage_team": float64(1)}, raw["game_state"])

	var back scoreboard.Match
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestNilMatchJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Match *scoreboard.Match `json:"match"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"match":null}`, string(data))
}
