package storage

import "testing"

func TestObjectName(t *testing.T) {
	if got := ObjectName("/team/", "abc.png"); got != "team/abc.png" {
		t.Fatalf("unexpected object name %q", got)
	}
}

func TestValidKey(t *testing.T) {
	valid := []string{"team", "news-events", "5f0c9a7e-1b2c.png", "a_b"}
	for _, key := range valid {
		if !ValidKey(key) {
			t.Fatalf("expected %q to be valid", key)
		}
	}
	invalid := []string{"", ".", "..", "../etc", "a/b", "a b", "x%2f"}
	for _, key := range invalid {
		if ValidKey(key) {
			t.Fatalf("expected %q to be invalid", key)
		}
	}
}

func TestNewAssetID(t *testing.T) {
	id := NewAssetID("image/png")
	if len(id) != 36+len(".png") || id[36:] != ".png" {
		t.Fatalf("expected uuid with .png extension, got %q", id)
	}
	if !ValidKey(id) {
		t.Fatalf("asset id %q should be a valid key", id)
	}
	if bare := NewAssetID("application/x-unknown-thing"); len(bare) != 36 {
		t.Fatalf("expected bare uuid for unknown type, got %q", bare)
	}
}
