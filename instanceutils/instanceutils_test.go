package instanceutils

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type lookupFunc func(string) (int, error)

func (f lookupFunc) LookupUser(name string) (int, error) { return f(name) }

func TestEnsureUser_Existing(t *testing.T) {
	rec := &Recorder{}
	created, err := EnsureUser(context.Background(), lookupFunc(func(string) (int, error) { return 497, nil }), rec,
		Account{Name: "opscode"}, testLogger)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, rec.Commands())
}

func TestEnsureUser_Creates(t *testing.T) {
	rec := &Recorder{}
	missing := lookupFunc(func(string) (int, error) { return 0, errors.New("unknown user") })

	created, err := EnsureUser(context.Background(), missing, rec,
		Account{Name: "opscode", Home: "/opt/opscode/embedded", Shell: "/bin/sh"}, testLogger)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"useradd --system --home /opt/opscode/embedded --shell /bin/sh opscode"}, rec.Names())
}

func TestEnsureUser_Failure(t *testing.T) {
	rec := &Recorder{Fail: map[string]error{"useradd": errors.New("exit status 9")}}
	missing := lookupFunc(func(string) (int, error) { return 0, errors.New("unknown user") })

	_, err := EnsureUser(context.Background(), missing, rec, Account{Name: "opscode"}, testLogger)
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestExecRunner(t *testing.T) {
	r := NewExecRunner(testLogger)
	require.NoError(t, r.Run(context.Background(), Command{Name: "true"}))

	err := r.Run(context.Background(), Command{Name: "false"})
	assert.ErrorIs(t, err, ErrCommandFailed)

	err = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", `test "$PC_TEST" = yes`}, Env: []string{"PC_TEST=yes"}})
	assert.NoError(t, err)
}
