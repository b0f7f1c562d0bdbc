package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParamError reports arguments that could not be decoded or failed validation.
type ParamError struct {
	Operation string
	Param     string
	Reason    string
}

func (e *ParamError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Param, e.Reason)
}

// decodeArgs merges defaults under args, rejects unknown keys and decodes the
// result into out, a pointer to a tagged struct.
func decodeArgs(op string, params []Param, args map[string]any, out any) error {
	merged := map[string]any{}
	known := map[string]bool{}
	for _, p := range params {
		known[p.Name] = true
		if p.Default != nil {
			merged[p.Name] = p.Default
		}
	}
	var unknown []string
	for k, v := range args {
		if !known[k] {
			unknown = append(unknown, k)
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		merged[k] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ParamError{Operation: op, Reason: "unknown parameters: " + strings.Join(unknown, ", ")}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(merged); err != nil {
		return &ParamError{Operation: op, Reason: err.Error()}
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ParamError{Operation: op, Param: paramName(params, fe.StructField()), Reason: describeTag(fe)}
		}
		return &ParamError{Operation: op, Reason: err.Error()}
	}
	return nil
}

// paramName maps a Go field name back to the snake_case argument name.
func paramName(params []Param, field string) string {
	want := strings.ToLower(field)
	for _, p := range params {
		if strings.ReplaceAll(p.Name, "_", "") == want {
			return p.Name
		}
	}
	return field
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s (got %v)", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s (got %v)", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s (got %v)", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s] (got %v)", fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
