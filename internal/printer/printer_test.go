package printer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	SetOutput(out, errOut)
	t.Cleanup(func() {
		SetOutput(nil, nil)
		color.NoColor = prev
	})
	return out, errOut
}

func TestError(t *testing.T) {
	t.Run("single suggestion", func(t *testing.T) {
		_, errOut := capture(t)

		err := Error("port in use", "Another process holds 6379.", []string{"Stop it"})
		require.Error(t, err)
		assert.Equal(t, "port in use", err.Error())
		assert.Equal(t, "port in use\n\nAnother process holds 6379.\n\nStop it\n", errOut.String())
	})

	t.Run("numbered suggestions", func(t *testing.T) {
		_, errOut := capture(t)

		Error("no acting member", "", []string{"Pass --as", "Set LABDESK_USER"})
		assert.Contains(t, errOut.String(), "Either:\n  1. Pass --as\n  2. Set LABDESK_USER\n")
	})
}

func TestErrorWithContext_SortsKeys(t *testing.T) {
	_, errOut := capture(t)

	err := ErrorWithContext("change not saved", "timeout", map[string]string{
		"Workspace": "lab",
		"Section":   "papers",
	}, nil)

	assert.Equal(t, "change not saved", err.Error())
	assert.Contains(t, errOut.String(), "  Section: papers\n  Workspace: lab\n")
}

func TestIsReported(t *testing.T) {
	capture(t)

	err := Error("boom", "details", nil)
	assert.True(t, IsReported(err))
	assert.True(t, IsReported(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsReported(fmt.Errorf("plain")))
}

func TestStatusLines(t *testing.T) {
	out, _ := capture(t)

	Success("Created todos #%d\n", 3)
	Warning("Redis slow\n")
	Success("✓ already prefixed\n")
	Step("Starting\n")

	assert.Equal(t, "✓ Created todos #3\n⚠️ Redis slow\n✓ already prefixed\n→ Starting\n", out.String())
}
