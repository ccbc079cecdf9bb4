package media

import (
	"fmt"
	"sort"
	"strings"
)

// MimeGroup names a family of accepted upload types.
type MimeGroup string

const (
	MimeGroupImages MimeGroup = "images"
	MimeGroupPDFs   MimeGroup = "pdfs"
)

var mimeGroupNames = map[MimeGroup]string{
	MimeGroupImages: "images",
	MimeGroupPDFs:   "PDFs",
}

var mimeGroupTypes = map[MimeGroup][]string{
	MimeGroupImages: {"image/png", "image/jpeg", "image/webp", "image/gif"},
	MimeGroupPDFs:   {"application/pdf"},
}

// AllowedTypes returns the sorted set of MIME types accepted by groups.
func AllowedTypes(groups []MimeGroup) []string {
	set := make(map[string]struct{})
	for _, group := range groups {
		for _, value := range mimeGroupTypes[group] {
			set[value] = struct{}{}
		}
	}
	list := make([]string, 0, len(set))
	for value := range set {
		list = append(list, value)
	}
	sort.Strings(list)
	return list
}

// Allows reports whether contentType belongs to one of groups.
func Allows(groups []MimeGroup, contentType string) bool {
	for _, group := range groups {
		for _, value := range mimeGroupTypes[group] {
			if value == contentType {
				return true
			}
		}
	}
	return false
}

// Describe renders groups for error messages, e.g. "images or PDFs".
func Describe(groups []MimeGroup) string {
	var descriptions []string
	for _, group := range groups {
		if name, ok := mimeGroupNames[group]; ok {
			descriptions = append(descriptions, name)
		}
	}
	if msg := humanReadableList(descriptions); msg != "" {
		return msg
	}
	return "the approved mime types"
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}
