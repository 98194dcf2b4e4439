package scoreboard

import (
	"encoding/json"
	"time"
)

type matchJSON struct {
	ID          string     `json:"id"`
	Type        Kind       `json:"type"`
	Player1     string     `json:"player1"`
	Player2     string     `json:"player2"`
	Player3     *string    `json:"player3"`
	Player4     *string    `json:"player4"`
	Score1      int        `json:"score1"`
	Score2      int        `json:"score2"`
	PointsToWin int        `json:"points_to_win"`
	Winner      *Team      `json:"winner"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	GameState   *stateJSON `json:"game_state,omitempty"`
}

type stateJSON struct {
	Type          StateKind `json:"type"`
	AdvantageTeam Team      `json:"advantage_team,omitempty"`
	Winner        Team      `json:"winner,omitempty"`
}

// MarshalJSON encodes the match in the wire layout used by the HTTP API and
// push channels, with the derived game state attached.
func (m Match) MarshalJSON() ([]byte, error) {
	slots := m.Slots()
	v := matchJSON{
		ID:          m.ID,
		Type:        m.Kind,
		Player1:     slots[0],
		Player2:     slots[1],
		Score1:      m.ScoreA,
		Score2:      m.ScoreB,
		PointsToWin: m.PointsToWin,
		IsActive:    m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Kind == KindDoubles {
		v.Player3, v.Player4 = &slots[2], &slots[3]
	}
	if m.Winner.Valid() {
		w := m.Winner
		v.Winner = &w
	}

	st := m.State()
	v.GameState = &stateJSON{Type: st.Kind}
	switch st.Kind {
	case StateAdvantage:
		v.GameState.AdvantageTeam = st.Team
	case StateWin:
		v.GameState.Winner = st.Team
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes the wire layout. The game state is recomputed on
// demand and is therefore ignored here.
func (m *Match) UnmarshalJSON(data []byte) error {
	var v matchJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var slots [4]string
	slots[0], slots[1] = v.Player1, v.Player2
	if v.Player3 != nil {
		slots[2] = *v.Player3
	}
	if v.Player4 != nil {
		slots[3] = *v.Player4
	}
	*m = Match{
		ID:          v.ID,
		Kind:        v.Type,
		ScoreA:      v.Score1,
		ScoreB:      v.Score2,
		PointsToWin: v.PointsToWin,
		Active:      v.IsActive,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	m.SideA, m.SideB = Sides(v.Type, slots)
	if v.Winner != nil {
		m.Winner = *v.Winner
	}
	return nil
}
