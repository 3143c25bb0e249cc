package capture

import (
	"errors"
	"strings"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

var (
	ErrPatientNotFound   = errors.New("no patient found for the given search")
	ErrNoActivePatient   = errors.New("no active patient")
	ErrCameraBusy        = errors.New("a camera is already open")
	ErrCameraPermission  = errors.New("camera permission denied")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrNoFrame           = errors.New("no frame available yet")
	ErrInvalidState      = errors.New("operation not allowed in the current state")
	ErrInvalidCategory   = errors.New("unknown document category")
	ErrUnsupportedFile   = errors.New("only images and PDF files are accepted")
	ErrFileTooLarge      = errors.New("file exceeds the upload limit")
	ErrEmptyFile         = errors.New("file is empty")
	ErrArtifactNotFound  = errors.New("document not found")
	ErrSuperseded        = errors.New("search superseded by a newer one")
	ErrFlowClosed        = errors.New("capture flow closed")
)

// ValidationError is an input error the operator fixes in the form.
// Missing is set when a save lacks mandatory documents.
type ValidationError struct {
	Field   string
	Message string
	Missing []model.Category
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 0 {
		return e.Message
	}
	labels := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		labels[i] = c.Label()
	}
	return "missing required documents: " + strings.Join(labels, ", ")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
