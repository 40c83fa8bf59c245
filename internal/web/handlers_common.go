package web

// handlers_common.go holds request parsing helpers shared by the handlers.

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/fleetimport/internal/core"
)

// multipartMemory is how much of a multipart form is kept in memory.
const multipartMemory = 8 << 20

var errInvalidOption = errors.New("invalid import option")

// uploadedFile is a file read from a multipart "file" field.
type uploadedFile struct {
	Name string
	Data []byte
}

// readUpload reads the "file" form field, enforcing the configured size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (uploadedFile, error) {
	maxSize := s.cfg.Import.MaxFileSize
	// Leave room for multipart boundaries and the other form fields.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return uploadedFile{}, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
		}
		return uploadedFile{}, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadedFile{}, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return uploadedFile{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return uploadedFile{}, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
	}
	return uploadedFile{Name: header.Filename, Data: data}, nil
}

// formPolicy parses the optional "policy" value. Empty means the service default.
func formPolicy(r *http.Request) (core.FailurePolicy, error) {
	p, err := core.ParsePolicy(r.FormValue("policy"), "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidOption, err)
	}
	return p, nil
}

// formBool parses an optional boolean form or query value. Nil means unset.
func formBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", errInvalidOption, name)
	}
	return &b, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
