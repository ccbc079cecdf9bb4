// Package collections declares the typed schema of every managed entity.
package collections

import (
	"sort"

	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/internal/records"
)

// Collection names as they appear in routes.
const (
	Countries        = "countries"
	Universities     = "universities"
	Team             = "team"
	Stories          = "stories"
	NewsEvents       = "news-events"
	VisaRequirements = "visa-requirements"
	Resources        = "resources"
	Gallery          = "gallery"
	Statistics       = "statistics"
	Submissions      = "submissions"
)

var (
	images        = []media.MimeGroup{media.MimeGroupImages}
	imagesAndPDFs = []media.MimeGroup{media.MimeGroupImages, media.MimeGroupPDFs}

	publishStatus = []string{"draft", "published"}
	published     = map[string]string{"status": "published"}
)

// Catalog resolves collection names to schemas.
type Catalog struct {
	schemas map[string]*records.Schema
}

// New returns a catalog holding the given schemas, or the default set when
// none are given.
func New(schemas ...*records.Schema) *Catalog {
	if len(schemas) == 0 {
		schemas = Default()
	}
	c := &Catalog{schemas: make(map[string]*records.Schema, len(schemas))}
	for _, s := range schemas {
		c.schemas[s.Collection] = s
	}
	return c
}

// Lookup returns the schema registered under name.
func (c *Catalog) Lookup(name string) (*records.Schema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// Names lists registered collections in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Buckets lists the media buckets used by the catalog.
func (c *Catalog) Buckets() []string {
	seen := map[string]struct{}{}
	var buckets []string
	for _, s := range c.schemas {
		if !s.HasMedia() {
			continue
		}
		if _, ok := seen[s.Media.Bucket]; ok {
			continue
		}
		seen[s.Media.Bucket] = struct{}{}
		buckets = append(buckets, s.Media.Bucket)
	}
	sort.Strings(buckets)
	return buckets
}

// Default returns the schemas of every managed entity.
func Default() []*records.Schema {
	return []*records.Schema{
		countries(),
		universities(),
		team(),
		stories(),
		newsEvents(),
		visaRequirements(),
		resources(),
		gallery(),
		statistics(),
		submissions(),
	}
}

func imageMedia(bucket string) *records.MediaSpec {
	return &records.MediaSpec{Bucket: bucket, Groups: images, PreviewWidth: 800, PreviewHeight: 600}
}

func countries() *records.Schema {
	return &records.Schema{
		Collection: Countries,
		Fields: []records.Field{
			{Name: "name", Kind: records.KindString, Required: true, MaxLen: 120, Sortable: true},
			{Name: "description", Kind: records.KindText, Required: true, MaxLen: 5000},
			{Name: "capital", Kind: records.KindString, MaxLen: 120},
			{Name: "currency", Kind: records.KindString, MaxLen: 16},
			{Name: "livingCost", Kind: records.KindDecimal},
			{Name: "intakes", Kind: records.KindList},
			{Name: "highlights", Kind: records.KindList},
			{Name: "popularCourses", Kind: records.KindList},
			{Name: "order", Kind: records.KindInt, Min: records.IntPtr(0), Sortable: true},
			{Name: "status", Kind: records.KindEnum, Options: publishStatus, Default: "draft", Filterable: true},
		},
		Media:        imageMedia("countries"),
		PublicRead:   true,
		PublicFilter: published,
	}
}

func universities() *records.Schema {
	return &records.Schema{
		Collection: Universities,
		Fields: []records.Field{
			{Name: "name", Kind: records.KindString, Required: true, MaxLen: 200, Sortable: true},
			{Name: "countryName", Kind: records.KindString, Required: true, MaxLen: 120, Filterable: true, Sortable: true},
			{Name: "city", Kind: records.KindString, MaxLen: 120},
			{Name: "description", Kind: records.KindText, MaxLen: 5000},
			{Name: "website", Kind: records.KindURL},
			{Name: "ranking", Kind: records.KindInt, Min: records.IntPtr(1), Sortable: true},
			{Name: "tuitionFee", Kind: records.KindDecimal},
			{Name: "programs", Kind: records.KindList},
			{Name: "intakes", Kind: records.KindList},
			{Name: "featured", Kind: records.KindBool, Filterable: true},
			{Name: "status", Kind: records.KindEnum, Options: publishStatus, Default: "published", Filterable: true},
		},
		Media:        imageMedia("universities"),
		PublicRead:   true,
		PublicFilter: published,
	}
}

func team() *records.Schema {
	return &records.Schema{
		Collection: Team,
		Fields: []records.Field{
			{Name: "name", Kind: records.KindString, Required: true, MaxLen: 120, Sortable: true},
			{Name: "position", Kind: records.KindString, Required: true, MaxLen: 120},
			{Name: "description", Kind: records.KindText, Required: true, MaxLen: 2000},
			{Name: "email", Kind: records.KindEmail},
			{Name: "skills", Kind: records.KindList},
			{Name: "socialLinks", Kind: records.KindObjectList},
			{Name: "order", Kind: records.KindInt, Min: records.IntPtr(0), Sortable: true},
		},
		Media:      imageMedia("team"),
		PublicRead: true,
	}
}

func stories() *records.Schema {
	return &records.Schema{
		Collection: Stories,
		Fields: []records.Field{
			{Name: "name", Kind: records.KindString, Required: true, MaxLen: 120},
			{Name: "program", Kind: records.KindString, Required: true, MaxLen: 200},
			{Name: "university", Kind: records.KindString, Required: true, MaxLen: 200, Filterable: true},
			{Name: "country", Kind: records.KindString, MaxLen: 120, Filterable: true},
			{Name: "content", Kind: records.KindText, Required: true, MaxLen: 5000},
			{Name: "rating", Kind: records.KindInt, Required: true, Min: records.IntPtr(1), Max: records.IntPtr(5), Filterable: true, Sortable: true},
			{Name: "status", Kind: records.KindEnum, Options: []string{"pending", "approved", "rejected"}, Default: "pending", Filterable: true},
		},
		Media:        imageMedia("stories"),
		PublicRead:   true,
		PublicFilter: map[string]string{"status": "approved"},
	}
}

func newsEvents() *records.Schema {
	return &records.Schema{
		Collection: NewsEvents,
		Fields: []records.Field{
			{Name: "title", Kind: records.KindString, Required: true, MaxLen: 200, Sortable: true},
			{Name: "content", Kind: records.KindText, Required: true, MaxLen: 20000},
			{Name: "excerpt", Kind: records.KindString, MaxLen: 500},
			{Name: "type", Kind: records.KindEnum, Options: []string{"news", "event"}, Default: "news", Filterable: true},
			{Name: "eventDate", Kind: records.KindDate, Sortable: true},
			{Name: "location", Kind: records.KindString, MaxLen: 200},
			{Name: "tags", Kind: records.KindList},
			{Name: "status", Kind: records.KindEnum, Options: publishStatus, Default: "draft", Filterable: true},
		},
		Media:        imageMedia("news-events"),
		PublicRead:   true,
		PublicFilter: published,
	}
}

func visaRequirements() *records.Schema {
	return &records.Schema{
		Collection: VisaRequirements,
		Fields: []records.Field{
			{Name: "countryName", Kind: records.KindString, Required: true, MaxLen: 120, Filterable: true, Sortable: true},
			{Name: "visaType", Kind: records.KindString, Required: true, MaxLen: 120, Filterable: true},
			{Name: "processingTime", Kind: records.KindString, MaxLen: 120},
			{Name: "fee", Kind: records.KindDecimal},
			{Name: "description", Kind: records.KindText, MaxLen: 5000},
			{Name: "requirements", Kind: records.KindList},
			{Name: "documents", Kind: records.KindList},
		},
		Media:      &records.MediaSpec{Bucket: "visa-requirements", Groups: imagesAndPDFs, PreviewWidth: 800, PreviewHeight: 600},
		PublicRead: true,
	}
}

func resources() *records.Schema {
	return &records.Schema{
		Collection: Resources,
		Fields: []records.Field{
			{Name: "title", Kind: records.KindString, Required: true, MaxLen: 200, Sortable: true},
			{Name: "category", Kind: records.KindString, Required: true, MaxLen: 120, Filterable: true},
			{Name: "description", Kind: records.KindText, MaxLen: 5000},
			{Name: "link", Kind: records.KindURL},
			{Name: "tags", Kind: records.KindList},
			{Name: "status", Kind: records.KindEnum, Options: publishStatus, Default: "published", Filterable: true},
		},
		Media:        &records.MediaSpec{Bucket: "resources", Groups: imagesAndPDFs},
		PublicRead:   true,
		PublicFilter: published,
	}
}

func gallery() *records.Schema {
	return &records.Schema{
		Collection: Gallery,
		Fields: []records.Field{
			{Name: "title", Kind: records.KindString, Required: true, MaxLen: 200},
			{Name: "caption", Kind: records.KindString, MaxLen: 500},
			{Name: "category", Kind: records.KindString, MaxLen: 120, Filterable: true},
			{Name: "order", Kind: records.KindInt, Min: records.IntPtr(0), Sortable: true},
		},
		Media:      &records.MediaSpec{Bucket: "gallery", Groups: images, Required: true, PreviewWidth: 1200, PreviewHeight: 900},
		PublicRead: true,
	}
}

func statistics() *records.Schema {
	return &records.Schema{
		Collection: Statistics,
		Fields: []records.Field{
			{Name: "label", Kind: records.KindString, Required: true, MaxLen: 120},
			{Name: "value", Kind: records.KindString, Required: true, MaxLen: 40},
			{Name: "suffix", Kind: records.KindString, MaxLen: 10},
			{Name: "order", Kind: records.KindInt, Min: records.IntPtr(0), Sortable: true},
		},
		PublicRead: true,
	}
}

func submissions() *records.Schema {
	return &records.Schema{
		Collection: Submissions,
		Fields: []records.Field{
			{Name: "name", Kind: records.KindString, Required: true, MaxLen: 120},
			{Name: "email", Kind: records.KindEmail, Required: true},
			{Name: "phone", Kind: records.KindString, MaxLen: 40},
			{Name: "message", Kind: records.KindText, Required: true, MaxLen: 5000},
			{Name: "preferredCountry", Kind: records.KindString, MaxLen: 120},
			{Name: "kind", Kind: records.KindEnum, Options: []string{"contact", "consultation"}, Default: "contact", Filterable: true},
			{Name: "status", Kind: records.KindEnum, Options: []string{"new", "contacted", "closed"}, Default: "new", Filterable: true},
		},
		PublicCreate: true,
	}
}
