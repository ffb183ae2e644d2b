package weights_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/weights"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := weights.Default()

		convey.Convey("Then it is valid with an eleven-player structure", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.TeamSize(), convey.ShouldEqual, 11)
			convey.So(cfg.Shortfall, convey.ShouldEqual, weights.ShortfallBlank)
			convey.So(cfg.Emerging, convey.ShouldResemble, weights.Emerging{Enabled: true, MaxInnings: 12})
		})

		convey.Convey("Then every role has weights", func() {
			for _, role := range model.Roles {
				w, ok := cfg.Weights(role)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(w.K, convey.ShouldEqual, 20)
				convey.So(w.Prior, convey.ShouldEqual, 40)
			}
		})

		convey.Convey("When an empty path is loaded", func() {
			got, err := weights.Load("")
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldResemble, cfg)
		})
	})
}

func TestLoadYAML(t *testing.T) {
	convey.Convey("Given a YAML weight file overriding some sections", t, func() {
		path := writeFile(t, "weights.yaml", `
roles:
  batter: {batting: 1, bowling: 0, fielding: 0, k: 10, prior: 50}
  bowler: {batting: 0, bowling: 1, fielding: 0, k: 10, prior: 50}
team_structure:
  Batter: 2
  wk: 1
desired_rating_filter_enabled: true
shortfall_policy: Backfill
emerging:
  max_innings: 5
`)
		cfg, err := weights.Load(path)

		convey.Convey("Then the file sections replace the defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Roles, convey.ShouldHaveLength, 2)
			convey.So(cfg.Roles[model.RoleBatter], convey.ShouldResemble, weights.RoleWeights{Batting: 1, K: 10, Prior: 50})
			convey.So(cfg.TeamStructure, convey.ShouldResemble, map[model.Role]int{model.RoleBatter: 2, model.RoleWicketKeeper: 1})
			convey.So(cfg.DesiredRatingFilter, convey.ShouldBeTrue)
			convey.So(cfg.Shortfall, convey.ShouldEqual, weights.ShortfallBackfill)
		})

		convey.Convey("Then untouched keys keep their defaults", func() {
			convey.So(cfg.Emerging, convey.ShouldResemble, weights.Emerging{Enabled: true, MaxInnings: 5})
		})
	})

	convey.Convey("Given a file with an unknown key", t, func() {
		path := writeFile(t, "weights.yml", "roles:\n  Batter: {batting: 1, k: 5, prior: 40, power: 2}\nbogus: 1\n")
		_, err := weights.Load(path)

		convey.Convey("Then it is a schema error naming the keys", func() {
			var se *model.SchemaError
			convey.So(errors.As(err, &se), convey.ShouldBeTrue)
			convey.So(errors.Is(err, model.ErrSchema), convey.ShouldBeTrue)
			convey.So(se.Columns, convey.ShouldResemble, []string{"bogus", "roles.Batter.power"})
		})
	})
}

func TestLoadTOML(t *testing.T) {
	convey.Convey("Given a TOML weight file", t, func() {
		path := writeFile(t, "weights.toml", `
desired_rating_filter_enabled = true

[roles."Wicket Keeper"]
batting = 0.5
fielding = 0.5
k = 15
prior = 45

[team_structure]
"Wicket Keeper" = 1
Batter = 3
`)
		cfg, err := weights.Load(path)

		convey.Convey("Then it loads through the same rules", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Roles, convey.ShouldResemble, map[model.Role]weights.RoleWeights{
				model.RoleWicketKeeper: {Batting: 0.5, Fielding: 0.5, K: 15, Prior: 45},
			})
			convey.So(cfg.TeamStructure[model.RoleBatter], convey.ShouldEqual, 3)
			convey.So(cfg.DesiredRatingFilter, convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a TOML file with an unknown table", t, func() {
		path := writeFile(t, "weights.toml", "[selector]\nsize = 11\n")
		_, err := weights.Load(path)

		convey.Convey("Then it is rejected", func() {
			convey.So(errors.Is(err, model.ErrSchema), convey.ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := map[string]func(*weights.Config){
			"negative weight": func(c *weights.Config) {
				c.Roles[model.RoleBatter] = weights.RoleWeights{Batting: -1, Fielding: 1, K: 1}
			},
			"all-zero weights": func(c *weights.Config) {
				c.Roles[model.RoleBowler] = weights.RoleWeights{K: 1}
			},
			"zero k": func(c *weights.Config) {
				c.Roles[model.RoleAllrounder] = weights.RoleWeights{Batting: 1}
			},
			"negative count": func(c *weights.Config) { c.TeamStructure[model.RoleBatter] = -1 },
			"unknown role":   func(c *weights.Config) { c.TeamStructure["Captain"] = 1 },
			"bad policy":     func(c *weights.Config) { c.Shortfall = "reshuffle" },
			"bad emerging":   func(c *weights.Config) { c.Emerging.MaxInnings = -3 },
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" is a schema error", func() {
				cfg := weights.Default()
				mutate(&cfg)
				convey.So(errors.Is(cfg.Validate(), model.ErrSchema), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given an unsupported extension", t, func() {
		_, err := weights.Load(writeFile(t, "weights.ini", "x=1"))
		convey.So(errors.Is(err, model.ErrSchema), convey.ShouldBeTrue)
	})
}
