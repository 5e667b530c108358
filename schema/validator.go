package schema

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

var (
	fieldValidator = validator.New(validator.WithRequiredStructEnabled())
	fieldKeyRe     = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

	datetimeLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		time.DateTime,
	}
)

// Validate checks data against a frozen field list and returns every
// violation found, in field order. Keys that the field list does not
// define are passed through without error.
func Validate(data models.MalleableData, fields []models.FieldDefinition) []string {
	var violations []string
	for _, f := range fields {
		v, ok := data.Get(f.Key)
		if !ok || v.IsEmpty() {
			if f.Required {
				violations = append(violations, fmt.Sprintf("%s is required", f.Key))
			}
			continue
		}
		if msg := checkType(f, v); msg != "" {
			violations = append(violations, fmt.Sprintf("%s %s", f.Key, msg))
		}
	}
	return violations
}

func checkType(f models.FieldDefinition, v models.Value) string {
	switch f.Type {
	case enum.FieldTypeText, enum.FieldTypeTextarea:
		if v.Kind == models.ValueKindList {
			return "must be a single value"
		}
	case enum.FieldTypeNumber:
		if v.Kind == models.ValueKindNumber {
			return ""
		}
		if v.Kind != models.ValueKindText {
			return "must be a number"
		}
		n, err := cast.ToFloat64E(strings.TrimSpace(v.Text))
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return "must be a number"
		}
	case enum.FieldTypeBoolean:
		if v.Kind == models.ValueKindList || v.Kind == models.ValueKindDate {
			return "must be true or false"
		}
		if _, err := cast.ToBoolE(v.Raw()); err != nil {
			return "must be true or false"
		}
	case enum.FieldTypeDate:
		if v.Kind == models.ValueKindDate {
			return ""
		}
		if v.Kind != models.ValueKindText {
			return "must be a date (YYYY-MM-DD)"
		}
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(v.Text)); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	case enum.FieldTypeDatetime:
		if v.Kind == models.ValueKindDate {
			return ""
		}
		if v.Kind != models.ValueKindText || !parsesAsDatetime(strings.TrimSpace(v.Text)) {
			return "must be a date and time"
		}
	case enum.FieldTypeSelect:
		if v.Kind == models.ValueKindList {
			return "must be a single option"
		}
		if !slices.Contains(f.Options, v.String()) {
			return fmt.Sprintf("must be one of [%s]", strings.Join(f.Options, ", "))
		}
	case enum.FieldTypeMultiselect:
		selected := v.List
		if v.Kind != models.ValueKindList {
			selected = []string{v.String()}
		}
		for _, s := range selected {
			if !slices.Contains(f.Options, s) {
				return fmt.Sprintf("contains %q which is not one of [%s]", s, strings.Join(f.Options, ", "))
			}
		}
	case enum.FieldTypeEmail:
		if v.Kind != models.ValueKindText || fieldValidator.Var(strings.TrimSpace(v.Text), "email") != nil {
			return "must be a valid email address"
		}
	case enum.FieldTypeURL:
		if v.Kind != models.ValueKindText || fieldValidator.Var(strings.TrimSpace(v.Text), "url") != nil {
			return "must be a valid URL"
		}
	default:
		return fmt.Sprintf("has unknown type %q", f.Type)
	}
	return ""
}

func parsesAsDatetime(s string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ValidateFields checks a field list before it is stored on a draft. locked
// maps keys that already exist to the type they were created with; such keys
// may be relabelled but not retyped.
func ValidateFields(fields []models.FieldDefinition, locked map[string]enum.FieldType) []string {
	var violations []string
	seen := make(map[string]struct{}, len(fields))

	for i, f := range fields {
		if err := fieldValidator.Struct(f); err != nil {
			violations = append(violations, fmt.Sprintf("field %d: key and type are required", i))
			continue
		}
		if !fieldKeyRe.MatchString(f.Key) {
			violations = append(violations, fmt.Sprintf("field %q: key must be lower snake case", f.Key))
		}
		if _, dup := seen[f.Key]; dup {
			violations = append(violations, fmt.Sprintf("field %q: duplicate key", f.Key))
		}
		seen[f.Key] = struct{}{}

		if !f.Type.IsValid() {
			violations = append(violations, fmt.Sprintf("field %q: unknown type %q", f.Key, f.Type))
			continue
		}
		if prev, ok := locked[f.Key]; ok && prev != f.Type {
			violations = append(violations, fmt.Sprintf("field %q: type is locked to %s", f.Key, prev))
		}

		switch {
		case f.Type.HasOptions() && len(f.Options) == 0:
			violations = append(violations, fmt.Sprintf("field %q: %s requires options", f.Key, f.Type))
		case !f.Type.HasOptions() && len(f.Options) > 0:
			violations = append(violations, fmt.Sprintf("field %q: options are only allowed for select and multiselect", f.Key))
		}
		if hasDuplicateOrBlank(f.Options) {
			violations = append(violations, fmt.Sprintf("field %q: options must be unique and non-empty", f.Key))
		}
	}
	return violations
}

func hasDuplicateOrBlank(options []string) bool {
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		if strings.TrimSpace(o) == "" {
			return true
		}
		if _, ok := seen[o]; ok {
			return true
		}
		seen[o] = struct{}{}
	}
	return false
}
