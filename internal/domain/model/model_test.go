package model_test

import (
	"errors"
	"testing"

	"github.com/okian/crease/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func squad(prefix string, n int) []model.Player {
	out := make([]model.Player, n)
	for i := range out {
		out[i] = model.Player{ID: prefix + string(rune('a'+i)), Name: prefix + " player", Role: model.RoleBatter}
	}
	return out
}

func TestParseRole(t *testing.T) {
	convey.Convey("Given role labels from input files", t, func() {
		cases := map[string]model.Role{
			"Batter":        model.RoleBatter,
			"BATSMAN":       model.RoleBatter,
			" bowler ":      model.RoleBowler,
			"All-Rounder":   model.RoleAllrounder,
			"Wicket Keeper": model.RoleWicketKeeper,
			"wk":            model.RoleWicketKeeper,
		}
		for in, want := range cases {
			got, err := model.ParseRole(in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, want)
		}

		convey.Convey("When the label is unknown", func() {
			_, err := model.ParseRole("captain")
			convey.So(errors.Is(err, model.ErrUnknownRole), convey.ShouldBeTrue)
		})

		convey.Convey("Then keys are snake case", func() {
			convey.So(model.RoleWicketKeeper.Key(), convey.ShouldEqual, "wicket_keeper")
		})
	})
}

func TestOversNotation(t *testing.T) {
	convey.Convey("Given legal ball counts", t, func() {
		convey.So(model.FormatOvers(0), convey.ShouldEqual, "0.0")
		convey.So(model.FormatOvers(22), convey.ShouldEqual, "3.4")
		convey.So(model.FormatOvers(24), convey.ShouldEqual, "4.0")

		convey.Convey("When parsing notation back", func() {
			balls, err := model.ParseOvers("3.4")
			convey.So(err, convey.ShouldBeNil)
			convey.So(balls, convey.ShouldEqual, 22)

			balls, err = model.ParseOvers("10")
			convey.So(err, convey.ShouldBeNil)
			convey.So(balls, convey.ShouldEqual, 60)

			balls, err = model.ParseOvers("")
			convey.So(err, convey.ShouldBeNil)
			convey.So(balls, convey.ShouldEqual, 0)
		})

		convey.Convey("When the remainder is not a legal ball count", func() {
			_, err := model.ParseOvers("3.6")
			convey.So(errors.Is(err, model.ErrMalformed), convey.ShouldBeTrue)
			_, err = model.ParseOvers("3.45")
			convey.So(err, convey.ShouldNotBeNil)
			_, err = model.ParseOvers("x")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then undefined ratios resolve to zero", func() {
			convey.So(model.Ratio(10, 0), convey.ShouldEqual, 0)
			convey.So(model.Ratio(10, 4), convey.ShouldEqual, 2.5)
			convey.So(model.Round2(2.345678), convey.ShouldEqual, 2.35)
		})
	})
}

func TestDeliveryArithmetic(t *testing.T) {
	convey.Convey("Given deliveries with extras", t, func() {
		wide := model.BallEvent{ExtraType: model.ExtraWide, Extras: 1}
		wideRun := model.BallEvent{ExtraType: model.ExtraWide, Extras: 2}
		noBallHit := model.BallEvent{ExtraType: model.ExtraNoBall, Extras: 1, RunsOffBat: 4}
		byes := model.BallEvent{ExtraType: model.ExtraBye, Extras: 3}

		convey.So(wide.StrikeRuns(), convey.ShouldEqual, 0)
		convey.So(wideRun.StrikeRuns(), convey.ShouldEqual, 0)
		convey.So(noBallHit.StrikeRuns(), convey.ShouldEqual, 4)
		convey.So(noBallHit.BowlerRuns(), convey.ShouldEqual, 5)
		convey.So(noBallHit.FacedByStriker(), convey.ShouldBeTrue)
		convey.So(wide.FacedByStriker(), convey.ShouldBeFalse)
		convey.So(byes.BowlerRuns(), convey.ShouldEqual, 0)
		convey.So(byes.TotalRuns(), convey.ShouldEqual, 3)
		convey.So(byes.StrikeRuns(), convey.ShouldEqual, 3)
		convey.So(model.ExtraLegBye.Legal(), convey.ShouldBeTrue)
		convey.So(model.ExtraNoBall.Legal(), convey.ShouldBeFalse)
	})

	convey.Convey("Given dismissal kinds", t, func() {
		convey.So(model.DismissalRunOut.CreditedToBowler(), convey.ShouldBeFalse)
		convey.So(model.DismissalStumped.CreditedToBowler(), convey.ShouldBeTrue)
		convey.So(model.DismissalBowled.AllowedWith(model.ExtraNoBall), convey.ShouldBeFalse)
		convey.So(model.DismissalRunOut.AllowedWith(model.ExtraNoBall), convey.ShouldBeTrue)
		convey.So(model.DismissalStumped.AllowedWith(model.ExtraWide), convey.ShouldBeTrue)
		convey.So(model.DismissalLBW.AllowedWith(model.ExtraWide), convey.ShouldBeFalse)
		convey.So(model.DismissalKind("handled").Valid(), convey.ShouldBeFalse)
	})

	convey.Convey("Given a ledger with a void event", t, func() {
		events := []model.BallEvent{
			{Seq: 1, Kind: model.KindDelivery},
			{Seq: 2, Kind: model.KindDelivery},
			{Seq: 3, Kind: model.KindVoid, VoidsSeq: 2},
			{Seq: 4, Kind: model.KindDelivery},
		}
		eff := model.Effective(events)

		convey.So(len(eff), convey.ShouldEqual, 2)
		convey.So(eff[0].Seq, convey.ShouldEqual, 1)
		convey.So(eff[1].Seq, convey.ShouldEqual, 4)
	})
}

func TestMatchSetup(t *testing.T) {
	convey.Convey("Given a match setup", t, func() {
		m := &model.Match{
			Home:  model.Team{Name: "Lions", Players: squad("h", 3)},
			Away:  model.Team{Name: "Tigers", Players: squad("a", 3)},
			Overs: 5,
		}

		convey.Convey("When valid", func() {
			convey.So(m.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the toss winner chooses to bowl", func() {
			m.TossWinner, m.TossDecision = model.Away, model.TossBowl
			convey.So(m.BattingFirst(), convey.ShouldEqual, model.Home)
			convey.So(m.BattingSide(2), convey.ShouldEqual, model.Away)
		})

		convey.Convey("When a player appears in both squads", func() {
			m.Away.Players[0].ID = m.Home.Players[0].ID
			err := m.Validate()

			var verr *model.ValidationError
			convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
			convey.So(verr.Rule, convey.ShouldEqual, model.RuleSetup)
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("When a squad is too small", func() {
			m.Home.Players = m.Home.Players[:1]
			convey.So(m.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When overs is zero", func() {
			m.Overs = 0
			convey.So(m.Validate(), convey.ShouldNotBeNil)
		})
	})
}

func TestSchemaError(t *testing.T) {
	convey.Convey("Given a schema error", t, func() {
		err := &model.SchemaError{Source: "history", Row: 3, Columns: []string{"role"}, Message: "empty"}
		convey.So(err.Error(), convey.ShouldEqual, "history row 3 [role]: empty")
		convey.So(errors.Is(err, model.ErrSchema), convey.ShouldBeTrue)
	})
}
