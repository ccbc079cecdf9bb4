package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

// sniffLen matches the header size mimetype inspects by default.
const sniffLen = 3072

// File is an uploaded file as received from a request.
type File struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// ErrTooLarge is returned by the guarded upload body once it exceeds the limit.
var ErrTooLarge = errors.New("media: upload exceeds size limit")

// Prepare checks the declared size, sniffs the content type from the leading
// bytes and returns an Upload whose body re-yields those bytes. The body is
// capped at maxBytes so an understated size cannot bypass the limit.
func Prepare(file *File, groups []MimeGroup, maxBytes int64) (storage.Upload, error) {
	if file == nil || file.Body == nil {
		return storage.Upload{}, pkgerrors.Validation("file is required", "file")
	}
	if maxBytes > 0 && file.Size > maxBytes {
		return storage.Upload{}, TooLarge(maxBytes)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return storage.Upload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload").WithFields("file")
	}
	head = head[:n]
	if n == 0 {
		return storage.Upload{}, pkgerrors.Validation("file is empty", "file")
	}

	contentType := baseType(mimetype.Detect(head).String())
	if !Allows(groups, contentType) {
		return storage.Upload{}, pkgerrors.Validation(
			fmt.Sprintf("unsupported file type %s; expected %s (%s)", contentType, Describe(groups), strings.Join(AllowedTypes(groups), ", ")), "file",
		)
	}

	var body io.Reader = io.MultiReader(bytes.NewReader(head), file.Body)
	if maxBytes > 0 {
		body = &limitedReader{r: body, remaining: maxBytes}
	}
	return storage.Upload{
		Filename:    strings.TrimSpace(file.Filename),
		ContentType: contentType,
		Size:        file.Size,
		Body:        body,
	}, nil
}

// TooLarge builds the error returned for uploads over maxBytes.
func TooLarge(maxBytes int64) error {
	return pkgerrors.New(pkgerrors.CodeTooLarge, fmt.Sprintf("file exceeds %d bytes", maxBytes)).WithFields("file")
}

// baseType strips parameters such as "; charset=utf-8".
func baseType(value string) string {
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
