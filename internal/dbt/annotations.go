package dbt

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

// Recognized column meta keys.
const (
	MetaSemanticType   = "metabase.semantic_type"
	MetaVisibilityType = "metabase.visibility_type"
	MetaFKRef          = "metabase.fk_ref"

	// MetaSpecialType is the deprecated alias of MetaSemanticType.
	MetaSpecialType = "metabase.special_type"
)

// Annotations are the metabase.* keys of a column's meta map.
// Unknown keys are ignored; null values count as absent.
type Annotations struct {
	SemanticType   *string `mapstructure:"metabase.semantic_type"`
	VisibilityType *string `mapstructure:"metabase.visibility_type"`
	SpecialType    *string `mapstructure:"metabase.special_type"`
	FKRef          *string `mapstructure:"metabase.fk_ref"`
}

// DecodeAnnotations reads the recognized keys out of a column meta map.
// Keys match exactly. Scalar values are converted to strings; booleans
// become "true" or "false".
func DecodeAnnotations(meta map[string]any) (Annotations, error) {
	var a Annotations
	if len(meta) == 0 {
		return a, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &a,
		WeaklyTypedInput: true,
		DecodeHook:       boolToStringHook,
		MatchName:        func(mapKey, fieldName string) bool { return mapKey == fieldName },
	})
	if err != nil {
		return a, err
	}
	if err := dec.Decode(meta); err != nil {
		return Annotations{}, fmt.Errorf("invalid metabase annotations: %w", err)
	}
	return a, nil
}

// boolToStringHook keeps weak typing from turning true into "1".
func boolToStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.Bool && to.Kind() == reflect.String {
		return strconv.FormatBool(data.(bool)), nil
	}
	return data, nil
}

// HasDeprecated reports whether the deprecated special_type key is used.
func (a Annotations) HasDeprecated() bool {
	return a.SpecialType != nil
}

// resolveSemanticType picks the semantic type for a column.
// Order: semantic_type annotation, then the detected type, then the
// deprecated special_type annotation.
func resolveSemanticType(detected *string, a Annotations) *string {
	switch {
	case a.SemanticType != nil:
		return a.SemanticType
	case detected != nil:
		return detected
	default:
		return a.SpecialType
	}
}

// resolveFKTarget picks the referenced table for a relationships test.
// An explicit fk_ref annotation wins over the test's to expression.
func resolveFKTarget(to string, a Annotations) string {
	if a.FKRef != nil {
		return *a.FKRef
	}
	return ParseRef(to)
}
