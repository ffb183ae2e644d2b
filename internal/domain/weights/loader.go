package weights

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/metrics"
)

var roleFields = map[string]bool{"batting": true, "bowling": true, "fielding": true, "k": true, "prior": true} //nolint:gochecknoglobals // lookup table

type fileConfig struct {
	Roles               map[string]RoleWeights `koanf:"roles"`
	TeamStructure       map[string]int         `koanf:"team_structure"`
	DesiredRatingFilter bool                   `koanf:"desired_rating_filter_enabled"`
	Shortfall           string                 `koanf:"shortfall_policy"`
	Emerging            Emerging               `koanf:"emerging"`
}

// Load reads a weight file and layers it over Default. YAML and JSON go
// through koanf, TOML through BurntSushi/toml. An empty path yields the
// defaults. A section present in the file replaces the default section.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := load(path)
	if err != nil {
		metrics.RecordSchemaError("weights")
		return Config{}, err
	}
	return cfg, nil
}

func load(path string) (Config, error) {
	k := koanf.New(".")
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		err = k.Load(file.Provider(path), yaml.Parser())
	case ".toml":
		err = k.Load(tomlFile(path), nil)
	default:
		return Config{}, &model.SchemaError{Source: path, Message: "unsupported weight file format, want yaml, json or toml"}
	}
	if err != nil {
		return Config{}, &model.SchemaError{Source: path, Message: err.Error()}
	}

	if unknown := unknownKeys(k.Keys()); len(unknown) > 0 {
		return Config{}, &model.SchemaError{Source: path, Columns: unknown, Message: "unknown keys"}
	}

	var raw fileConfig
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, &model.SchemaError{Source: path, Message: err.Error()}
	}

	cfg := Default()
	if k.Exists("roles") {
		cfg.Roles = make(map[model.Role]RoleWeights, len(raw.Roles))
		for name, w := range raw.Roles {
			role, err := model.ParseRole(name)
			if err != nil {
				return Config{}, &model.SchemaError{Source: path, Columns: []string{"roles." + name}, Message: err.Error()}
			}
			cfg.Roles[role] = w
		}
	}
	if k.Exists("team_structure") {
		cfg.TeamStructure = make(map[model.Role]int, len(raw.TeamStructure))
		for name, n := range raw.TeamStructure {
			role, err := model.ParseRole(name)
			if err != nil {
				return Config{}, &model.SchemaError{Source: path, Columns: []string{"team_structure." + name}, Message: err.Error()}
			}
			cfg.TeamStructure[role] = n
		}
	}
	if k.Exists("desired_rating_filter_enabled") {
		cfg.DesiredRatingFilter = raw.DesiredRatingFilter
	}
	if k.Exists("shortfall_policy") {
		cfg.Shortfall = ShortfallPolicy(strings.ToLower(strings.TrimSpace(raw.Shortfall)))
	}
	if k.Exists("emerging.enabled") {
		cfg.Emerging.Enabled = raw.Emerging.Enabled
	}
	if k.Exists("emerging.max_innings") {
		cfg.Emerging.MaxInnings = raw.Emerging.MaxInnings
	}

	if err := cfg.Validate(); err != nil {
		var se *model.SchemaError
		if errors.As(err, &se) {
			se.Source = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// unknownKeys returns every flattened key outside the recognised layout.
func unknownKeys(keys []string) []string {
	var bad []string
	for _, key := range keys {
		parts := strings.Split(key, ".")
		ok := false
		switch parts[0] {
		case "roles":
			ok = len(parts) == 3 && roleFields[parts[2]]
		case "team_structure":
			ok = len(parts) == 2
		case "desired_rating_filter_enabled", "shortfall_policy":
			ok = len(parts) == 1
		case "emerging":
			ok = len(parts) == 2 && (parts[1] == "enabled" || parts[1] == "max_innings")
		}
		if !ok {
			bad = append(bad, key)
		}
	}
	sort.Strings(bad)
	return bad
}

// tomlFile is a koanf provider decoding a TOML file with BurntSushi/toml.
type tomlFile string

func (p tomlFile) ReadBytes() ([]byte, error) {
	return nil, errors.New("toml provider does not support ReadBytes")
}

func (p tomlFile) Read() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if _, err := toml.DecodeFile(string(p), &out); err != nil {
		return nil, err
	}
	return out, nil
}
