package scoring

import (
	"slices"

	"github.com/okian/crease/internal/domain/model"
)

var validBatRuns = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 6: true} //nolint:gochecknoglobals // lookup

const maxExtras = 7

// validateDelivery checks a drafted delivery against the innings before it is
// applied. Rules run in order: state, runs/extras/dismissal, bowler, striker.
func (s *Session) validateDelivery(in *Innings, ev *model.BallEvent) error {
	if s.match.State != model.StateInningsInProgress || in == nil || in.Complete {
		return model.NewValidationError(model.RuleState, "no innings in progress (match is %s)", s.match.State)
	}
	if err := ValidateBall(ev); err != nil {
		return err
	}
	if err := s.validateDismissal(in, ev); err != nil {
		return err
	}

	bowling := s.match.Team(in.BowlingSide)
	switch {
	case !bowling.Has(ev.Bowler):
		return model.NewValidationError(model.RuleBowler, "bowler %q is not in the %s squad", ev.Bowler, in.BowlingSide)
	case in.overStart() && ev.Bowler == in.PreviousOverBowler:
		return model.NewValidationError(model.RuleBowler, "%s bowled the previous over", ev.Bowler)
	case !in.overStart() && ev.Bowler != in.Bowler:
		return model.NewValidationError(model.RuleBowler, "over %d is being bowled by %s", in.over()+1, in.Bowler)
	}

	if ev.Striker != in.Striker {
		return model.NewValidationError(model.RuleStriker, "striker is %s, not %s", in.Striker, ev.Striker)
	}
	return nil
}

// ValidateBall applies the context-free rules for runs, extras and dismissal
// kinds. Ingestion reuses it for ledger rows that bypass a live session.
func ValidateBall(ev *model.BallEvent) error {
	if !validBatRuns[ev.RunsOffBat] {
		return model.NewValidationError(model.RuleRuns, "runs off bat must be 0, 1, 2, 3, 4 or 6, got %d", ev.RunsOffBat)
	}
	if !ev.ExtraType.Valid() {
		return model.NewValidationError(model.RuleExtras, "unknown extra type %q", ev.ExtraType)
	}
	switch {
	case ev.Extras < 0 || ev.Extras > maxExtras:
		return model.NewValidationError(model.RuleExtras, "extras must be between 0 and %d, got %d", maxExtras, ev.Extras)
	case ev.ExtraType == model.ExtraNone && ev.Extras != 0:
		return model.NewValidationError(model.RuleExtras, "extras must be 0 without an extra type")
	case ev.ExtraType != model.ExtraNone && ev.Extras < 1:
		return model.NewValidationError(model.RuleExtras, "%s needs at least 1 extra run", ev.ExtraType)
	}
	switch ev.ExtraType {
	case model.ExtraWide, model.ExtraBye, model.ExtraLegBye:
		if ev.RunsOffBat != 0 {
			return model.NewValidationError(model.RuleRuns, "no runs off the bat on a %s", ev.ExtraType)
		}
	}
	if w := ev.Wicket; w != nil {
		if !w.Kind.Valid() {
			return model.NewValidationError(model.RuleDismissal, "unknown dismissal kind %q", w.Kind)
		}
		if !w.Kind.AllowedWith(ev.ExtraType) {
			return model.NewValidationError(model.RuleDismissal, "%s is not possible on a %s", w.Kind, ev.ExtraType)
		}
		if w.Kind == model.DismissalRunOut && w.End != model.EndStriker && w.End != model.EndNonStriker {
			return model.NewValidationError(model.RuleDismissal, "run out needs the end: striker or non_striker")
		}
		if w.Kind.NeedsFielder() && w.Fielder == "" {
			return model.NewValidationError(model.RuleDismissal, "%s needs a fielder", w.Kind)
		}
	}
	return nil
}

func (s *Session) validateDismissal(in *Innings, ev *model.BallEvent) error {
	w := ev.Wicket
	if w == nil {
		if ev.IncomingBatter != "" {
			return model.NewValidationError(model.RuleBatter, "incoming batter given without a wicket")
		}
		return nil
	}
	switch {
	case !in.atCrease(w.PlayerOut):
		return model.NewValidationError(model.RuleDismissal, "%q is not at the crease", w.PlayerOut)
	case w.PlayerOut != in.Striker && !w.Kind.CanRemoveNonStriker():
		return model.NewValidationError(model.RuleDismissal, "only the striker can be %s", w.Kind)
	case w.Fielder != "" && !s.match.Team(in.BowlingSide).Has(w.Fielder):
		return model.NewValidationError(model.RuleDismissal, "fielder %q is not in the %s squad", w.Fielder, in.BowlingSide)
	}
	if nb := ev.IncomingBatter; nb != "" {
		switch {
		case !s.match.Team(in.BattingSide).Has(nb):
			return model.NewValidationError(model.RuleBatter, "incoming batter %q is not in the %s squad", nb, in.BattingSide)
		case slices.Contains(in.Batted, nb):
			return model.NewValidationError(model.RuleBatter, "%s has already batted", nb)
		}
	}
	return nil
}

func (s *Session) validateStart(striker, nonStriker, bowler string, batting, bowlingSide model.Side) error {
	bat, bowl := s.match.Team(batting), s.match.Team(bowlingSide)
	switch {
	case striker == "" || nonStriker == "":
		return model.NewValidationError(model.RuleBatter, "both opening batters are required")
	case striker == nonStriker:
		return model.NewValidationError(model.RuleBatter, "striker and non-striker must differ")
	case !bat.Has(striker) || !bat.Has(nonStriker):
		return model.NewValidationError(model.RuleBatter, "opening batters must be in the %s squad", batting)
	case !bowl.Has(bowler):
		return model.NewValidationError(model.RuleBowler, "bowler %q is not in the %s squad", bowler, bowlingSide)
	}
	return nil
}
