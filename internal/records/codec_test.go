package records

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
)

func validStory() Payload {
	return Payload{
		"name":       "Asha",
		"program":    "MSc CS",
		"university": "UBC",
		"content":    "Great experience",
		"rating":     "5",
	}
}

func TestEncodeDecodeRoundTripsStructuredFields(t *testing.T) {
	codec := NewCodec()
	schema := storySchema()

	payload := validStory()
	payload["tags"] = []string{"visa", "scholarship", "housing"}

	stored, err := codec.Encode(schema, payload, ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, `["visa","scholarship","housing"]`, stored["tags"])

	view := codec.Decode(schema, stored)
	assert.Equal(t, []any{"visa", "scholarship", "housing"}, view["tags"])
}

func TestEncodeAcceptsListShapes(t *testing.T) {
	codec := NewCodec()
	schema := storySchema()

	cases := map[string]any{
		"json array":      []any{"a", "b"},
		"json string":     `["a","b"]`,
		"comma separated": "a, b",
		"repeated values": []string{"a", "b"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			payload := validStory()
			payload["tags"] = raw
			stored, err := codec.Encode(schema, payload, ModeCreate)
			require.NoError(t, err)
			assert.Equal(t, `["a","b"]`, stored["tags"])
		})
	}
}

func TestEncodeObjectListRoundTrip(t *testing.T) {
	codec := NewCodec()
	schema := &Schema{Collection: "team", Fields: []Field{
		{Name: "socialLinks", Kind: KindObjectList},
		{Name: "profile", Kind: KindObject},
	}}
	links := []any{
		map[string]any{"platform": "linkedin", "url": "https://linkedin.com/in/x"},
		map[string]any{"platform": "x", "url": "https://x.com/y"},
	}

	stored, err := codec.Encode(schema, Payload{"socialLinks": links, "profile": `{"years":4}`}, ModeCreate)
	require.NoError(t, err)

	view := codec.Decode(schema, stored)
	assert.Equal(t, links, view["socialLinks"])
	assert.Equal(t, map[string]any{"years": float64(4)}, view["profile"])
}

func TestEncodeReportsAllMissingFieldsSorted(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Encode(storySchema(), Payload{"name": "Asha", "program": "  "}, ModeCreate)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, []string{"content", "program", "rating", "university"}, typed.Fields())
	assert.Contains(t, typed.Message(), "content, program, rating, university")
}

func TestEncodeRejectsOutOfDomainValues(t *testing.T) {
	codec := NewCodec()
	payload := validStory()
	payload["rating"] = "6"
	payload["status"] = "published"

	_, err := codec.Encode(storySchema(), payload, ModeCreate)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, []string{"rating", "status"}, typed.Fields())
	assert.Contains(t, typed.Details(), "rating: must be at most 5")
}

func TestEncodeAppliesCreateDefaults(t *testing.T) {
	stored, err := NewCodec().Encode(storySchema(), validStory(), ModeCreate)
	require.NoError(t, err)

	assert.Equal(t, "pending", stored["status"])
	assert.Equal(t, "[]", stored["tags"])
	assert.Equal(t, int64(5), stored["rating"])
}

func TestEncodeUpdateOnlyReturnsPresentFields(t *testing.T) {
	stored, err := NewCodec().Encode(storySchema(), Payload{"status": "approved"}, ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "approved"}, stored)
}

func TestEncodeUpdateRejectsClearingRequiredField(t *testing.T) {
	_, err := NewCodec().Encode(storySchema(), Payload{"name": ""}, ModeUpdate)
	assert.Equal(t, []string{"name"}, pkgerrors.As(err).Fields())
}

func TestEncodeFailsOversizedStructuredField(t *testing.T) {
	schema := &Schema{Collection: "c", Fields: []Field{{Name: "items", Kind: KindList, MaxLen: 20}}}
	payload := Payload{"items": []any{strings.Repeat("x", 30)}}

	_, err := NewCodec().Encode(schema, payload, ModeCreate)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, []string{"items"}, typed.Fields())
}

func TestEncodeScalarKinds(t *testing.T) {
	schema := &Schema{Collection: "c", Fields: []Field{
		{Name: "email", Kind: KindEmail},
		{Name: "site", Kind: KindURL},
		{Name: "fee", Kind: KindDecimal},
		{Name: "deadline", Kind: KindDate},
		{Name: "featured", Kind: KindBool},
	}}
	codec := NewCodec()

	stored, err := codec.Encode(schema, Payload{
		"email":    "asha@example.com",
		"site":     "https://ubc.ca",
		"fee":      "185.5",
		"deadline": "2026-09-01",
		"featured": "on",
	}, ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, "185.50", stored["fee"])
	assert.Equal(t, "2026-09-01", stored["deadline"])
	assert.Equal(t, true, stored["featured"])

	_, err = codec.Encode(schema, Payload{
		"email":    "not-an-email",
		"site":     "nope",
		"fee":      "-1",
		"deadline": "01/09/2026",
		"featured": "maybe",
	}, ModeCreate)
	assert.Equal(t, []string{"deadline", "email", "featured", "fee", "site"}, pkgerrors.As(err).Fields())
}

func TestDecodeFailsSoft(t *testing.T) {
	view := NewCodec().Decode(storySchema(), map[string]any{
		"name":   "Asha",
		"rating": float64(4),
		"status": "archived",
		"tags":   "{not json",
	})

	assert.Equal(t, "Asha", view["name"])
	assert.Equal(t, int64(4), view["rating"])
	assert.Equal(t, "pending", view["status"])
	assert.Equal(t, []any{}, view["tags"])
}

func TestFormPayloadFlattensValues(t *testing.T) {
	p := FormPayload(map[string][]string{
		"name":   {"Asha"},
		"tags[]": {"a", "b"},
		"empty":  {},
	})
	assert.Equal(t, "Asha", p["name"])
	assert.Equal(t, []string{"a", "b"}, p["tags"])
	_, ok := p["empty"]
	assert.False(t, ok)
}

func TestFormPayloadMergesBracketKeysInStableOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		p := FormPayload(map[string][]string{
			"tags[]":   {"c", "d"},
			"tags":     {"a", "b"},
			"badges":   {"x"},
			"badges[]": {"y"},
		})
		require.Equal(t, []string{"a", "b", "c", "d"}, p["tags"])
		require.Equal(t, []string{"x", "y"}, p["badges"])
	}
}

func TestEncodeIntRejectsValuesOutsideInt64(t *testing.T) {
	schema := &Schema{Collection: "statistics", Fields: []Field{{Name: "value", Kind: KindInt}}}
	codec := NewCodec()

	for _, raw := range []any{1e19, -1e19, 9223372036854775808.0, 2.5} {
		_, err := codec.Encode(schema, Payload{"value": raw}, ModeCreate)
		require.Error(t, err, "%v", raw)
		assert.Equal(t, []string{"value"}, pkgerrors.As(err).Fields())
	}

	stored, err := codec.Encode(schema, Payload{"value": float64(-9223372036854775808)}, ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(-9223372036854775808), stored["value"])
}

func TestDecodeIntFromStoredNumber(t *testing.T) {
	schema := &Schema{Collection: "statistics", Fields: []Field{{Name: "value", Kind: KindInt}}}
	view := NewCodec().Decode(schema, map[string]any{"value": json.Number("9007199254740993")})
	assert.Equal(t, int64(9007199254740993), view["value"])

	view = NewCodec().Decode(schema, map[string]any{"value": 1e19})
	assert.Equal(t, 1e19, view["value"])
}
