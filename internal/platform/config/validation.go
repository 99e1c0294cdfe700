package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate fails fast on invalid configuration; the service must not start
// with it. Every problem is reported, one per line.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}

		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	problems = append(problems, c.deploymentProblems()...)

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(problems, "\n  "))
}

// deploymentProblems catches combinations that pass the tags but break once
// more than one replica runs.
func (c *Config) deploymentProblems() []string {
	if c.App.Environment != "prod" {
		return nil
	}

	var problems []string

	if c.Store.Driver == "sqlite" {
		problems = append(problems, "store.driver sqlite is not supported in prod")
	}

	if c.Cache.Driver == "memory" {
		problems = append(problems, "cache.driver memory is not shared between replicas; use redis or none in prod")
	}

	return problems
}

func describe(fe validator.FieldError) string {
	field := formatFieldPath(fe.Namespace())
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return field + " is required when " + param
	case "min":
		return field + " must be at least " + param
	case "max":
		return field + " must be at most " + param
	case "ltefield":
		return field + " must not exceed " + strings.ToLower(param)
	case "oneof":
		return field + " must be one of: " + param
	default:
		return field + " failed validation: " + fe.Tag()
	}
}

// formatFieldPath converts "Config.Cache.TTL.RandomQuote" to "cache.ttl.randomquote".
func formatFieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}

	return strings.ToLower(namespace)
}
