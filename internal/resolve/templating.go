package resolve

import (
	"fmt"
	"regexp"

	jnerrors "github.com/jnpipe/jn/pkg/errors"
)

// templatePattern matches "${env.X}" and "${params.Y}" placeholders (spec
// §6.4, §9 "Parameter templating").
var templatePattern = regexp.MustCompile(`\$\{(env|params)\.([^}]+)\}`)

// ApplyTemplate substitutes ${env.X} and ${params.Y} placeholders across
// every stage's argv, cwd, and env values before spawn. A placeholder
// referencing an undefined key is a hard error (spec §9): a missing key
// must never resolve to an empty string, since that could silently inject
// an empty argument where a path or value was expected.
func ApplyTemplate(plan *ExecutionPlan, envVars, params map[string]string) error {
	if plan == nil {
		return nil
	}

	for i := range plan.Stages {
		stage := &plan.Stages[i]

		for j, arg := range stage.Argv {
			substituted, err := substitute(arg, envVars, params)
			if err != nil {
				return err
			}
			stage.Argv[j] = substituted
		}

		if stage.Cwd != "" {
			substituted, err := substitute(stage.Cwd, envVars, params)
			if err != nil {
				return err
			}
			stage.Cwd = substituted
		}

		for k, v := range stage.Env {
			substituted, err := substitute(v, envVars, params)
			if err != nil {
				return err
			}
			stage.Env[k] = substituted
		}
	}

	return nil
}

func substitute(s string, envVars, params map[string]string) (string, error) {
	var firstErr error
	result := templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		groups := templatePattern.FindStringSubmatch(match)
		namespace, key := groups[1], groups[2]

		var source map[string]string
		if namespace == "env" {
			source = envVars
		} else {
			source = params
		}

		value, ok := source[key]
		if !ok {
			firstErr = jnerrors.NewConfigValueError(fmt.Sprintf("%s.%s", namespace, key), "", "a defined template key",
				fmt.Errorf("undefined template placeholder ${%s.%s}", namespace, key))
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
