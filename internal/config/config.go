// Package config validates the CLI-level configuration assembled from
// flags before a Registry is built or an address is resolved (spec §6.4
// "--env", "--param", "--plugin-dir"). It mirrors the teacher's
// validator.v10-backed Config validation, redirected from declarative
// pipeline steps to CLI invocation options.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// instance lazily builds the shared validator, registering JN's custom
// tags once (spec-level analogue of the teacher's "step_id" tag).
func instance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("env_key", func(fl validator.FieldLevel) bool {
			return envKeyPattern.MatchString(fl.Field().String())
		})
		validateInst = v
	})
	return validateInst
}

// Config is the validated CLI invocation configuration shared by every
// pipeline-shape subcommand (cat, put, filter, head, tail, join — spec
// §6.4).
type Config struct {
	Home       string            `validate:"required"`
	WorkingDir string            `validate:"required"`
	ProjectDir string            `validate:"omitempty"`
	PluginDirs []string          `validate:"required,min=1,dive,required"`
	EnvVars    map[string]string `validate:"dive,keys,env_key,endkeys"`
	Params     map[string]string
	Timeout    time.Duration `validate:"gte=0"`
}

// Validate runs struct-tag validation and returns the first failure,
// converted into a message naming the offending field (mirrors the
// teacher's convertValidationError, minus the YAML-specific framing this
// CLI has no use for).
func (c *Config) Validate() error {
	if err := instance().Struct(c); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
			fe := ves[0]
			return fmt.Errorf("invalid configuration: field %q failed validation for tag %q",
				lowerFieldPath(fe.StructNamespace()), fe.Tag())
		}
		return err
	}
	return nil
}

func lowerFieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, ".")
}

// ParseKV parses repeatable "--env K=V" / "--param k=v" flag values (spec
// §6.4) into a map. Last value wins on a repeated key, matching the query
// string semantics in §3.1.
func ParseKV(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
