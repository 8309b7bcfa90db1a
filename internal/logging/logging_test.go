package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, lvl := range []string{"trace", "DEBUG", "info", "warn", "error"} {
		t.Run(lvl, func(t *testing.T) {
			l, err := New(lvl)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}

	l, err := New("loud")
	assert.Error(t, err)
	assert.NotNil(t, l, "unknown levels still yield a usable logger")
}

func TestWithTagsComponent(t *testing.T) {
	l := Nop().With("content")
	assert.Equal(t, "[content] fetch %s", l.format("fetch %s"))
	assert.Equal(t, "plain", Nop().format("plain"))

	var nilLogger *Logger
	assert.NotNil(t, nilLogger.With("x"))
}
