package validators

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/internal/records"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
)

const (
	// FileField is the multipart part carrying the optional media file.
	FileField = "file"

	multipartMemory = 8 << 20
	formOverhead    = 1 << 20
)

// RecordRequest is a parsed create or update submission.
type RecordRequest struct {
	Payload records.Payload
	File    *media.File

	closeFile func() error
	form      *multipart.Form
}

// Close releases the uploaded file and any temporary form files.
func (rr *RecordRequest) Close() {
	if rr == nil {
		return
	}
	if rr.closeFile != nil {
		_ = rr.closeFile()
	}
	if rr.form != nil {
		_ = rr.form.RemoveAll()
	}
}

// RequestLimit is the largest record request body accepted for a given file
// cap: the file plus room for the multipart framing and scalar fields.
func RequestLimit(maxUpload int64) int64 {
	if maxUpload <= 0 {
		return 0
	}
	return maxUpload + formOverhead
}

// ParseRecordRequest reads a multipart form (scalar fields plus an optional
// "file" part), an urlencoded form or a JSON object. maxUpload bounds the
// request body; zero disables the bound.
func ParseRecordRequest(w http.ResponseWriter, r *http.Request, maxUpload int64) (*RecordRequest, error) {
	if limit := RequestLimit(maxUpload); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseMultipart(r, maxUpload)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err, maxUpload)
		}
		return &RecordRequest{Payload: records.FormPayload(r.PostForm)}, nil
	default:
		payload := records.Payload{}
		if err := DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return &RecordRequest{Payload: payload}, nil
	}
}

func parseMultipart(r *http.Request, maxUpload int64) (*RecordRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, bodyError(err, maxUpload)
	}
	rr := &RecordRequest{
		Payload: records.FormPayload(r.MultipartForm.Value),
		form:    r.MultipartForm,
	}

	file, header, err := r.FormFile(FileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return rr, nil
	case err != nil:
		rr.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file part").WithFields(FileField)
	}
	if header.Size == 0 {
		_ = file.Close()
		return rr, nil
	}
	rr.File = &media.File{Filename: header.Filename, Size: header.Size, Body: file}
	rr.closeFile = file.Close
	return rr, nil
}

func bodyError(err error, maxUpload int64) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return media.TooLarge(maxUpload)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body").WithDetails(err.Error())
}

// ParseIfMatch reads an optional If-Match precondition carrying the
// updatedAt timestamp a client last saw.
func ParseIfMatch(r *http.Request) (*time.Time, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	if raw == "" || raw == "*" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, pkgerrors.Validation("If-Match must be an RFC3339 timestamp", "If-Match")
	}
	return &t, nil
}
