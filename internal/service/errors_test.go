package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestStoreErr(t *testing.T) {
	assert.Equal(t, ErrNotFound, storeErr("get exam", fmt.Errorf("scan: %w", repository.ErrNotFound)))

	err := storeErr("create institute", repository.ErrDuplicate)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
	assert.EqualError(t, err, "create institute: already exists")

	boom := errors.New("conn reset")
	err = storeErr("list events", boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicate)
}
