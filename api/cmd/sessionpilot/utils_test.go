package sessionpilot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/sessionpilot/api/pkg/config"
)

func TestGenerateEnvHelpText(t *testing.T) {
	text := generateEnvHelpText(&config.AcquireConfig{}, "")

	assert.Contains(t, text, " - Account")
	assert.Contains(t, text, "AMAZON_EMAIL: Account identifier used to sign in. (required)")
	assert.Contains(t, text, `ARTIFACT_KEY: Object key of the cookie jar. (default: "cookies.json")`)
	assert.Contains(t, text, `LOG_LEVEL: One of trace, debug, info, warn, error. (default: "info")`)
}

func TestRootCmd_Commands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"acquire", "serve", "version"})
}

func TestRootCmd_Help(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"acquire", "--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "MAX_OTP_ATTEMPTS")
	assert.Contains(t, out.String(), "7 on timeout")
}
