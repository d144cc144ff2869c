package a3interface

import (
	"errors"
	"strings"
	"testing"

	"github.com/OCAP2/coil/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDispatchResponse(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		err      error
		expected string
	}{
		{"version pair", []string{"0.0.1", "2026-02-01"}, nil, `["ok", ["0.0.1","2026-02-01"]]`},
		{"role string is not quoted twice", "primary", nil, `["ok", "primary"]`},
		{"session id", uint(3), nil, `["ok", 3]`},
		{"bool", true, nil, `["ok", true]`},
		{"nil result", nil, nil, `["ok"]`},
		{"tick result", map[string][]string{"resupply": {"ship1"}}, nil, `["ok", {"resupply":["ship1"]}]`},
		{"error", nil, errors.New("unknown platform"), `["error", "unknown platform"]`},
		{"error with quotes", nil, errors.New(`bad arg "x"`), `["error", "bad arg \"x\""]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDispatchResponse(":COIL:TEST:", tt.result, tt.err))
		})
	}
}

func TestFormatDispatchResponse_Unmarshalable(t *testing.T) {
	got := formatDispatchResponse(":COIL:TEST:", make(chan int), nil)
	assert.True(t, strings.HasPrefix(got, `["error", ":COIL:TEST: `), got)
}

func TestSplitCommand(t *testing.T) {
	name, args := splitCommand(":COIL:FIRE:|ship1|m1")
	assert.Equal(t, ":COIL:FIRE:", name)
	assert.Equal(t, []string{"ship1", "m1"}, args)

	name, args = splitCommand(":VERSION:")
	assert.Equal(t, ":VERSION:", name)
	assert.Empty(t, args)
}

func TestSetVersion(t *testing.T) {
	prev, _, _ := current.get()
	t.Cleanup(func() { SetVersion(prev) })

	SetVersion("1.2.3")
	v, _, _ := current.get()
	assert.Equal(t, "1.2.3", v)
}

func TestHandle(t *testing.T) {
	prev := GetDispatcher()
	t.Cleanup(func() { SetDispatcher(prev) })

	SetDispatcher(nil)
	assert.Equal(t, `["error", ":COIL:TICK:: no handler registered"]`, handle(":COIL:TICK:", nil))

	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	d.Register(":COIL:ECHO:", func(e dispatcher.Event) (any, error) {
		return e.Args, nil
	})
	d.Register(":COIL:FAIL:", func(dispatcher.Event) (any, error) {
		return nil, errors.New("boom")
	})
	SetDispatcher(d)
	errs := make(chan []string, 1)
	RegisterErrorChan(errs)
	t.Cleanup(func() { RegisterErrorChan(nil) })

	assert.Equal(t, `["ok", ["a","b"]]`, handle(":COIL:ECHO:", []string{"a", "b"}))
	assert.True(t, strings.HasPrefix(handle(":COIL:NOPE:", nil), `["error"`))

	assert.Equal(t, `["error", "boom"]`, handle(":COIL:FAIL:", nil))
	assert.Equal(t, []string{":COIL:FAIL:", "boom"}, <-errs)

	// a full error channel never blocks the call
	errs <- []string{"x"}
	assert.Equal(t, `["error", "boom"]`, handle(":COIL:FAIL:", nil))
}
