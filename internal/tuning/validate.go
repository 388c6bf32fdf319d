package tuning

import (
	"fmt"
	"math"

	"github.com/wonny/creditpd/internal/model"
)

// ValidationError 검증 실패
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the search settings and every parameter spec
func Validate(cfg *Config) error {
	// === Search ===
	if cfg.Search.Iterations < 1 {
		return ValidationError{"search.iterations", "must be >= 1"}
	}
	if cfg.Search.Folds < 2 {
		return ValidationError{"search.folds", "must be >= 2"}
	}
	if cfg.Search.Scoring != "roc_auc" {
		return ValidationError{"search.scoring", "only roc_auc is supported"}
	}
	if cfg.Search.TestSize <= 0 || cfg.Search.TestSize >= 1 {
		return ValidationError{"search.test_size", "must be in (0, 1)"}
	}

	// === Families ===
	seen := make(map[string]bool)
	for i, fs := range cfg.Families {
		field := fmt.Sprintf("families[%d]", i)
		family, err := model.ParseFamily(fs.Family)
		if err != nil {
			return ValidationError{field + ".family", err.Error()}
		}
		if string(family) != fs.Family {
			return ValidationError{field + ".family", fmt.Sprintf("must be spelled %q", family)}
		}
		if seen[fs.Family] {
			return ValidationError{field + ".family", "duplicate family"}
		}
		seen[fs.Family] = true

		allowed := make(map[string]bool)
		for _, name := range model.AllowedParams(family) {
			allowed[name] = true
		}
		names := make(map[string]bool)
		for j, p := range fs.Params {
			pf := fmt.Sprintf("%s.params[%d]", field, j)
			if !allowed[p.Name] {
				return ValidationError{pf + ".name", fmt.Sprintf("%q is not a %s parameter", p.Name, family)}
			}
			if names[p.Name] {
				return ValidationError{pf + ".name", "duplicate parameter"}
			}
			names[p.Name] = true
			if err := validateSpec(p); err != nil {
				return ValidationError{pf, err.Error()}
			}
		}
	}
	return nil
}

func validateSpec(p ParamSpec) error {
	switch p.Kind {
	case KindUniform:
		if !(p.Low < p.High) {
			return fmt.Errorf("uniform requires low < high")
		}
	case KindRandInt:
		if p.Low != math.Trunc(p.Low) || p.High != math.Trunc(p.High) {
			return fmt.Errorf("randint bounds must be integers")
		}
		if !(p.Low < p.High) {
			return fmt.Errorf("randint requires low < high")
		}
	case KindChoice:
		if len(p.Values) == 0 {
			return fmt.Errorf("choice requires values")
		}
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	return nil
}
