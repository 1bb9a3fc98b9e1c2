package utils

import (
	"testing"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/stretchr/testify/assert"
)

func TestValidate_BulkRequest(t *testing.T) {
	_, err := Validate(models.BulkRequest{EntityType: "Widget", PageSize: 50})
	assert.NoError(t, err)

	_, err = Validate(models.BulkRequest{PageSize: 50})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.ErrorContains(t, err, "EntityType")

	_, err = Validate(models.BulkRequest{EntityType: "Widget", PageSize: 5000})
	assert.ErrorContains(t, err, "max=1000")
}

func TestValidateSlice_PatchOperations(t *testing.T) {
	err := ValidateSlice([]patchpath.Operation{
		{Op: "set", Path: "/Name", Value: "x"},
		{Op: "rename", Path: "/Name"},
	})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.ErrorContains(t, err, "item 1")
}
