package store

import (
	"context"
	"errors"
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndOpen(t *testing.T) {
	errFake := errors.New("fake backend")
	Register("fake-open", func(context.Context, string) (port.Store, error) { return nil, errFake })

	_, err := Open(context.Background(), "fake-open", "dsn")
	require.ErrorIs(t, err, errFake)
	assert.Contains(t, Drivers(), "fake-open")
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), "nope", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")

	_, err = Open(context.Background(), "", "")
	require.Error(t, err)
}

func TestRegister_Panics(t *testing.T) {
	f := func(context.Context, string) (port.Store, error) { return nil, nil }
	Register("fake-dup", f)

	assert.Panics(t, func() { Register("fake-dup", f) })
	assert.Panics(t, func() { Register("", f) })
	assert.Panics(t, func() { Register("fake-nil", nil) })
}
