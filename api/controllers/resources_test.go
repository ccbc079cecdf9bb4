package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
)

func decodeView(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var view map[string]any
	require.NoError(t, json.Unmarshal(body, &view))
	return view
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Code   string   `json:"code"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Code
}

func TestCreateStoryWithoutMedia(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/stories",
		`{"name":"Kofi","program":"MSc Data","university":"Toronto","content":"Great year","rating":5}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	view := decodeView(t, rec.Body.Bytes())
	assert.Equal(t, "pending", view["status"])
	assert.Equal(t, float64(5), view["rating"])
	assert.Nil(t, view["mediaUrl"])
	assert.NotEmpty(t, view["id"])

	update := h.do(jsonRequest(http.MethodPut, "/api/stories/"+view["id"].(string), `{"status":"approved"}`))
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	updated := decodeView(t, update.Body.Bytes())
	assert.Equal(t, "approved", updated["status"])
	assert.Equal(t, float64(5), updated["rating"])
	assert.Equal(t, "Kofi", updated["name"])
}

func TestCreateRejectsMissingRequiredFields(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/team", `{"name":"Ama"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload struct {
		Code   string   `json:"code"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeValidation), payload.Code)
	assert.Equal(t, []string{"description", "position"}, payload.Fields)
}

func TestUnknownCollectionIsNotFound(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/planets", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, rec.Body.Bytes()))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/team/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWithMediaResolvesSignedPreview(t *testing.T) {
	h := newHarness(t)

	rec := h.do(multipartRequest(t, http.MethodPost, "/api/team", map[string]string{
		"name":        "Ama",
		"position":    "Counsellor",
		"description": "Visa specialist",
		"skills":      "ielts,visa",
	}, pngBytes(t, 40, 20)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	view := decodeView(t, rec.Body.Bytes())
	assert.Equal(t, []any{"ielts", "visa"}, view["skills"])
	rawURL, ok := view["mediaUrl"].(string)
	require.True(t, ok, "mediaUrl should resolve")

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "800", u.Query().Get("w"))

	get := h.do(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "image/png", get.Header().Get("Content-Type"))
}

func TestUpdateReplacesMediaAndRemovesOldAsset(t *testing.T) {
	h := newHarness(t)

	rec := h.do(multipartRequest(t, http.MethodPost, "/api/team", map[string]string{
		"name": "Ama", "position": "Counsellor", "description": "Visa specialist",
	}, pngBytes(t, 8, 8)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeView(t, rec.Body.Bytes())
	oldRef := created["mediaRef"].(string)

	upd := h.do(multipartRequest(t, http.MethodPut, "/api/team/"+created["id"].(string), map[string]string{
		"position": "Lead Counsellor",
	}, pngBytes(t, 8, 8)))
	require.Equal(t, http.StatusOK, upd.Code, upd.Body.String())
	updated := decodeView(t, upd.Body.Bytes())

	assert.Equal(t, "Lead Counsellor", updated["position"])
	assert.Equal(t, "Ama", updated["name"])
	assert.NotEqual(t, oldRef, updated["mediaRef"])

	_, err := h.store.Open("team", oldRef)
	assert.Error(t, err, "previous asset should be deleted")
	f, err := h.store.Open("team", updated["mediaRef"].(string))
	require.NoError(t, err)
	_ = f.Close()
}

func TestUpdateHonoursIfMatch(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/statistics", `{"label":"Students","value":"1200"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeView(t, rec.Body.Bytes())
	id := created["id"].(string)

	stale := jsonRequest(http.MethodPut, "/api/statistics/"+id, `{"value":"1300"}`)
	stale.Header.Set("If-Match", time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano))
	conflict := h.do(stale)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, conflict.Body.Bytes()))

	fresh := jsonRequest(http.MethodPut, "/api/statistics/"+id, `{"value":"1300"}`)
	fresh.Header.Set("If-Match", `"`+created["updatedAt"].(string)+`"`)
	ok := h.do(fresh)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	assert.Equal(t, "1300", decodeView(t, ok.Body.Bytes())["value"])
}

func TestDeleteRemovesRecordAndAsset(t *testing.T) {
	h := newHarness(t)

	rec := h.do(multipartRequest(t, http.MethodPost, "/api/team", map[string]string{
		"name": "Ama", "position": "Counsellor", "description": "Visa specialist",
	}, pngBytes(t, 4, 4)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeView(t, rec.Body.Bytes())
	id := created["id"].(string)

	del := h.do(httptest.NewRequest(http.MethodDelete, "/api/team/"+id, nil))
	assert.Equal(t, http.StatusNoContent, del.Code)

	_, err := h.store.Open("team", created["mediaRef"].(string))
	assert.Error(t, err)

	get := h.do(httptest.NewRequest(http.MethodGet, "/api/team/"+id, nil))
	assert.Equal(t, http.StatusNotFound, get.Code)
	again := h.do(httptest.NewRequest(http.MethodDelete, "/api/team/"+id, nil))
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestListFiltersAndSorts(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{
		`{"name":"Toronto","countryName":"Canada","ranking":20}`,
		`{"name":"UBC","countryName":"Canada","ranking":5}`,
		`{"name":"Oxford","countryName":"UK","ranking":1}`,
	} {
		rec := h.do(jsonRequest(http.MethodPost, "/api/universities", body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/universities?countryName=Canada&sort=ranking", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Documents []map[string]any `json:"documents"`
		Total     int64            `json:"total"`
		Limit     int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 25, page.Limit)
	require.Len(t, page.Documents, 2)
	assert.Equal(t, "UBC", page.Documents[0]["name"])
	assert.Equal(t, "Toronto", page.Documents[1]["name"])

	bad := h.do(httptest.NewRequest(http.MethodGet, "/api/universities?city=Paris", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCreateRejectsUnsupportedFileType(t *testing.T) {
	h := newHarness(t)

	rec := h.do(multipartRequest(t, http.MethodPost, "/api/team", map[string]string{
		"name": "Ama", "position": "Counsellor", "description": "Visa specialist",
	}, []byte(strings.Repeat("plain text ", 20))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec.Body.Bytes()))
}
