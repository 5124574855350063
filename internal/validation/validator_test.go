package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
	"github.com/mirrordapp/mirrord-server/internal/validation"
)

type startRequest struct {
	SourceDir  string   `json:"source_dir" validate:"required"`
	TargetDir  string   `json:"target_dir" validate:"required"`
	Extensions []string `json:"extensions" validate:"required,min=1,dive,startswith=."`
}

func TestValidate_Success(t *testing.T) {
	v := validation.New()

	err := v.Validate(startRequest{
		SourceDir:  "/tmp/src",
		TargetDir:  "/tmp/dst",
		Extensions: []string{".gd", ".tscn"},
	})

	assert.NoError(t, err)
}

func TestValidate_MissingFields(t *testing.T) {
	v := validation.New()

	err := v.Validate(startRequest{})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
	assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

	// Field errors use JSON tag names.
	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "source_dir")
	assert.Contains(t, details, "target_dir")
	assert.Contains(t, details, "extensions")
}

func TestValidate_EmptyExtensionList(t *testing.T) {
	v := validation.New()

	err := v.Validate(startRequest{
		SourceDir:  "/tmp/src",
		TargetDir:  "/tmp/dst",
		Extensions: []string{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
