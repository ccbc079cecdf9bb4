package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/studyabroad-backend/internal/records"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
)

func TestDefaultCatalogCoversEveryEntity(t *testing.T) {
	c := New()
	assert.Equal(t, []string{
		Countries, Gallery, NewsEvents, Resources, Statistics,
		Stories, Submissions, Team, Universities, VisaRequirements,
	}, c.Names())

	_, ok := c.Lookup("orders")
	assert.False(t, ok)
}

func TestSchemasAreConsistent(t *testing.T) {
	for _, s := range Default() {
		t.Run(s.Collection, func(t *testing.T) {
			seen := map[string]bool{}
			for _, f := range s.Fields {
				assert.False(t, seen[f.Name], "duplicate field %s", f.Name)
				seen[f.Name] = true
				if f.Kind == records.KindEnum {
					assert.Contains(t, f.Options, f.Default, "enum %s default", f.Name)
				}
			}
			for name, value := range s.PublicFilter {
				f, ok := s.Field(name)
				require.True(t, ok, "public filter field %s", name)
				assert.Contains(t, f.Options, value)
			}
			if s.HasMedia() {
				assert.Equal(t, s.Collection, s.Media.Bucket)
				assert.NotEmpty(t, s.Media.Groups)
			}
		})
	}
}

func TestBucketsListsMediaCollections(t *testing.T) {
	buckets := New().Buckets()
	assert.Contains(t, buckets, "gallery")
	assert.NotContains(t, buckets, Statistics)
	assert.NotContains(t, buckets, Submissions)
}

func TestRequiredFieldsMatchEntityRules(t *testing.T) {
	codec := records.NewCodec()
	cases := map[string][]string{
		Team:         {"description", "name", "position"},
		Stories:      {"content", "name", "program", "rating", "university"},
		Submissions:  {"email", "message", "name"},
		Universities: {"countryName", "name"},
	}
	c := New()
	for name, want := range cases {
		schema, ok := c.Lookup(name)
		require.True(t, ok)
		_, err := codec.Encode(schema, records.Payload{}, records.ModeCreate)
		assert.Equal(t, want, pkgerrors.As(err).Fields(), name)
	}
}

func TestUniversityDefaultsToPublished(t *testing.T) {
	schema, _ := New().Lookup(Universities)
	stored, err := records.NewCodec().Encode(schema, records.Payload{"name": "UBC", "countryName": "Canada"}, records.ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, "published", stored["status"])
	assert.Equal(t, "[]", stored["programs"])
}
