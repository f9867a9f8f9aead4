package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

func TestProofStorage_StoreAndRetrieve(t *testing.T) {
	s, err := NewProofStorage(t.TempDir(), 1)
	require.NoError(t, err)

	ctx := context.Background()
	ref, err := s.Store(ctx, strings.NewReader("квитанция о переводе"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "blake2b:"))

	again, err := s.Store(ctx, strings.NewReader("квитанция о переводе"))
	require.NoError(t, err)
	assert.Equal(t, ref, again, "одинаковое содержимое даёт одинаковую ссылку")

	rc, err := s.Retrieve(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "квитанция о переводе", string(data))
}

func TestProofStorage_RejectsOversizedAndEmpty(t *testing.T) {
	s, err := NewProofStorage(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = s.Store(context.Background(), bytes.NewReader(make([]byte, 1024*1024+1)))
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = s.Store(context.Background(), strings.NewReader(""))
	assert.True(t, apperror.IsValidation(err))
}

func TestProofStorage_RetrieveUnknownRef(t *testing.T) {
	s, err := NewProofStorage(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = s.Retrieve(context.Background(), "../../etc/passwd")
	assert.True(t, apperror.IsValidation(err))

	_, err = s.Retrieve(context.Background(), "blake2b:"+strings.Repeat("ab", 32))
	assert.True(t, apperror.IsNotFound(err))
}
