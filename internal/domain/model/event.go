package model

import "time"

// ExtraType classifies a delivery's extras.
type ExtraType string

// Extra types.
const (
	ExtraNone   ExtraType = "none"
	ExtraWide   ExtraType = "wide"
	ExtraNoBall ExtraType = "no_ball"
	ExtraBye    ExtraType = "bye"
	ExtraLegBye ExtraType = "leg_bye"
)

// Valid reports whether e is a recognised extra type.
func (e ExtraType) Valid() bool {
	switch e {
	case ExtraNone, ExtraWide, ExtraNoBall, ExtraBye, ExtraLegBye:
		return true
	}
	return false
}

// Legal reports whether a delivery of this type counts toward the over.
func (e ExtraType) Legal() bool {
	return e != ExtraWide && e != ExtraNoBall
}

// DismissalKind is how a batter was out.
type DismissalKind string

// Dismissal kinds.
const (
	DismissalBowled       DismissalKind = "bowled"
	DismissalCaught       DismissalKind = "caught"
	DismissalCaughtBehind DismissalKind = "caught_behind"
	DismissalLBW          DismissalKind = "lbw"
	DismissalStumped      DismissalKind = "stumped"
	DismissalRunOut       DismissalKind = "run_out"
	DismissalHitWicket    DismissalKind = "hit_wicket"
	DismissalObstructing  DismissalKind = "obstructing_field"
	DismissalRetiredOut   DismissalKind = "retired_out"
)

// Valid reports whether d is a recognised dismissal kind.
func (d DismissalKind) Valid() bool {
	switch d {
	case DismissalBowled, DismissalCaught, DismissalCaughtBehind, DismissalLBW, DismissalStumped,
		DismissalRunOut, DismissalHitWicket, DismissalObstructing, DismissalRetiredOut:
		return true
	}
	return false
}

// CreditedToBowler reports whether the bowler takes the wicket.
func (d DismissalKind) CreditedToBowler() bool {
	switch d {
	case DismissalBowled, DismissalCaught, DismissalCaughtBehind, DismissalLBW, DismissalStumped, DismissalHitWicket:
		return true
	}
	return false
}

// NeedsFielder reports whether the dismissal names a fielder.
func (d DismissalKind) NeedsFielder() bool {
	switch d {
	case DismissalCaught, DismissalCaughtBehind, DismissalStumped, DismissalRunOut:
		return true
	}
	return false
}

// AllowedWith reports whether the dismissal can happen on a delivery with this extra.
func (d DismissalKind) AllowedWith(e ExtraType) bool {
	switch e {
	case ExtraNoBall:
		return d == DismissalRunOut || d == DismissalObstructing
	case ExtraWide:
		return d == DismissalStumped || d == DismissalRunOut || d == DismissalHitWicket || d == DismissalObstructing
	}
	return true
}

// CanRemoveNonStriker reports whether the non-striker can be the player out.
func (d DismissalKind) CanRemoveNonStriker() bool {
	return d == DismissalRunOut || d == DismissalObstructing || d == DismissalRetiredOut
}

// End names a batting end for run-outs.
type End string

// Ends.
const (
	EndStriker    End = "striker"
	EndNonStriker End = "non_striker"
)

// Wicket records a dismissal on a delivery.
type Wicket struct {
	Kind      DismissalKind `json:"kind"`
	PlayerOut string        `json:"player_out"`
	Fielder   string        `json:"fielder,omitempty"`
	End       End           `json:"end,omitempty"`
}

// EventKind distinguishes deliveries from compensating events.
type EventKind string

// Event kinds.
const (
	KindInningsStart EventKind = "innings_start"
	KindDelivery     EventKind = "delivery"
	KindVoid         EventKind = "void"
)

// BallEvent is one immutable ledger entry: an innings start (openers and
// opening bowler), a delivery, or a void that cancels an earlier delivery.
// Entries are never edited.
type BallEvent struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"event_id,omitempty"`
	MatchID        string    `json:"match_id"`
	Seq            int       `json:"seq"`
	Kind           EventKind `json:"kind"`
	VoidsSeq       int       `json:"voids_seq,omitempty"`
	Innings        int       `json:"innings"`
	Over           int       `json:"over"`
	BallInOver     int       `json:"ball_in_over"`
	Legal          bool      `json:"legal"`
	Striker        string    `json:"striker,omitempty"`
	NonStriker     string    `json:"non_striker,omitempty"`
	Bowler         string    `json:"bowler,omitempty"`
	RunsOffBat     int       `json:"runs_off_bat"`
	ExtraType      ExtraType `json:"extra_type,omitempty"`
	Extras         int       `json:"extras"`
	Wicket         *Wicket   `json:"wicket,omitempty"`
	IncomingBatter string    `json:"incoming_batter,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// TotalRuns is everything added to the batting side's score.
func (e *BallEvent) TotalRuns() int { return e.RunsOffBat + e.Extras }

// BowlerRuns is what the bowler concedes: bat runs plus wides and no-ball extras.
func (e *BallEvent) BowlerRuns() int {
	switch e.ExtraType {
	case ExtraBye, ExtraLegBye:
		return e.RunsOffBat
	}
	return e.RunsOffBat + e.Extras
}

// StrikeRuns decides whether the batters changed ends: the runs off the bat,
// or for byes and leg-byes the runs taken, which are booked as extras.
// Wide and no-ball penalty extras never count.
func (e *BallEvent) StrikeRuns() int {
	switch e.ExtraType {
	case ExtraBye, ExtraLegBye:
		return e.Extras
	}
	return e.RunsOffBat
}

// FacedByStriker reports whether the delivery counts as a ball faced.
func (e *BallEvent) FacedByStriker() bool { return e.ExtraType != ExtraWide }

// Effective drops void events and the deliveries they cancel, preserving
// ledger order.
func Effective(events []BallEvent) []BallEvent {
	voided := make(map[int]bool)
	for i := range events {
		if events[i].Kind == KindVoid {
			voided[events[i].VoidsSeq] = true
		}
	}
	out := make([]BallEvent, 0, len(events))
	for i := range events {
		if events[i].Kind == KindVoid || voided[events[i].Seq] {
			continue
		}
		out = append(out, events[i])
	}
	return out
}
