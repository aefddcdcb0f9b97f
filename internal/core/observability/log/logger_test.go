package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestLogger_FieldsReachZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core), LevelDebug)

	child := l.With(String("component", "replication"))
	child.Warn("unknown component",
		Uint64("component_type", 42),
		Int32("network_id", 7),
		Uint16("type_id", 3),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "replication", ctx["component"])
	require.EqualValues(t, 42, ctx["component_type"])
	require.EqualValues(t, 7, ctx["network_id"])
	require.EqualValues(t, 3, ctx["type_id"])
	require.Equal(t, "boom", ctx["error"])
}

func TestLogger_SetLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core), LevelInfo)

	l.Log(LevelDebug, "hidden")
	require.Equal(t, 0, logs.Len())

	l.SetLevel(LevelDebug)
	require.Equal(t, LevelDebug, l.GetLevel())
	l.Log(LevelDebug, "visible")
	require.Equal(t, 1, logs.Len())
}

func TestProvide_NeverNil(t *testing.T) {
	require.NotNil(t, Provide())
}
