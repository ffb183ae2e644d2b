package scoring

import (
	"slices"

	"github.com/okian/crease/internal/domain/model"
)

// Innings is the live state of one innings.
type Innings struct {
	Number             int        `json:"number"`
	BattingSide        model.Side `json:"batting_side"`
	BowlingSide        model.Side `json:"bowling_side"`
	Runs               int        `json:"runs"`
	Wickets            int        `json:"wickets"`
	Extras             int        `json:"extras"`
	LegalBalls         int        `json:"legal_balls"`
	Overs              string     `json:"overs"`
	Striker            string     `json:"striker"`
	NonStriker         string     `json:"non_striker"`
	Bowler             string     `json:"bowler,omitempty"` // empty between overs
	PreviousOverBowler string     `json:"previous_over_bowler,omitempty"`
	Batted             []string   `json:"batted"`
	Dismissed          []string   `json:"dismissed"`
	Target             int        `json:"target,omitempty"`
	Complete           bool       `json:"complete"`
	Deliveries         int        `json:"deliveries"`
}

func (in *Innings) clone() *Innings {
	c := *in
	c.Batted = slices.Clone(in.Batted)
	c.Dismissed = slices.Clone(in.Dismissed)
	return &c
}

func (in *Innings) swapEnds() {
	in.Striker, in.NonStriker = in.NonStriker, in.Striker
}

func (in *Innings) atCrease(playerID string) bool {
	return playerID != "" && (playerID == in.Striker || playerID == in.NonStriker)
}

// overStart reports whether the next delivery opens a new over.
func (in *Innings) overStart() bool { return in.Bowler == "" }

// apply mutates the innings with an already validated delivery.
func (in *Innings) apply(ev *model.BallEvent) {
	in.Deliveries++
	in.Runs += ev.TotalRuns()
	in.Extras += ev.Extras
	if in.Bowler == "" {
		in.Bowler = ev.Bowler
	}
	if ev.ExtraType.Legal() {
		in.LegalBalls++
	}

	if ev.StrikeRuns()%2 == 1 {
		in.swapEnds()
	}

	if w := ev.Wicket; w != nil {
		in.Wickets++
		in.Dismissed = append(in.Dismissed, w.PlayerOut)
		incoming := ev.IncomingBatter
		if w.Kind == model.DismissalRunOut {
			survivor := in.Striker
			if survivor == w.PlayerOut {
				survivor = in.NonStriker
			}
			if w.End == model.EndStriker {
				in.Striker, in.NonStriker = incoming, survivor
			} else {
				in.Striker, in.NonStriker = survivor, incoming
			}
		} else if in.Striker == w.PlayerOut {
			in.Striker = incoming
		} else {
			in.NonStriker = incoming
		}
		if incoming != "" {
			in.Batted = append(in.Batted, incoming)
		}
	}

	if ev.ExtraType.Legal() && in.LegalBalls%model.BallsPerOver == 0 {
		in.swapEnds()
		in.PreviousOverBowler = in.Bowler
		in.Bowler = ""
	}
	in.Overs = model.FormatOvers(in.LegalBalls)
}

// over and ballInOver number a delivery about to be bowled.
func (in *Innings) over() int { return in.LegalBalls / model.BallsPerOver }

func (in *Innings) ballInOver() int { return in.LegalBalls%model.BallsPerOver + 1 }
