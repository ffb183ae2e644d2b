package model

// BattingStat is one player's batting in one match.
type BattingStat struct {
	MatchID    string  `json:"match_id"`
	PlayerID   string  `json:"player_id"`
	Matches    int     `json:"matches"`
	Innings    int     `json:"innings"`
	Runs       int     `json:"runs"`
	BallsFaced int     `json:"balls_faced"`
	Fours      int     `json:"fours"`
	Sixes      int     `json:"sixes"`
	Dismissals int     `json:"dismissals"`
	NotOuts    int     `json:"not_outs"`
	HighScore  int     `json:"high_score"`
	StrikeRate float64 `json:"strike_rate"`
}

// BowlingStat is one player's bowling in one match.
type BowlingStat struct {
	MatchID    string  `json:"match_id"`
	PlayerID   string  `json:"player_id"`
	Innings    int     `json:"innings"`
	Balls      int     `json:"balls"`
	Overs      string  `json:"overs"`
	Runs       int     `json:"runs"`
	Wickets    int     `json:"wickets"`
	Wides      int     `json:"wides"`
	NoBalls    int     `json:"no_balls"`
	Economy    float64 `json:"economy"`
	StrikeRate float64 `json:"strike_rate"`
	Average    float64 `json:"average"`
}

// FieldingStat is one player's fielding in one match.
type FieldingStat struct {
	MatchID      string `json:"match_id"`
	PlayerID     string `json:"player_id"`
	Matches      int    `json:"matches"`
	Catches      int    `json:"catches"`
	CaughtBehind int    `json:"caught_behind"`
	RunOuts      int    `json:"run_outs"`
	Stumpings    int    `json:"stumpings"`
}

// MatchStats is the complete derived row set for one match. It is
// regenerated wholesale, never patched.
type MatchStats struct {
	MatchID string `json:"match_id"`
	// Seq is the last ledger sequence number the rows reflect.
	Seq      int            `json:"seq"`
	Batting  []BattingStat  `json:"batting"`
	Bowling  []BowlingStat  `json:"bowling"`
	Fielding []FieldingStat `json:"fielding"`
}

// PlayerInfo carries the roster attributes history needs beside the stat rows.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Available bool   `json:"available"`
}
