package coordination

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleChannel_PollForCode(t *testing.T) {
	color.NoColor = true

	in, writer := io.Pipe()
	defer writer.Close()
	out := &syncBuffer{}
	ch := NewConsoleChannel(in, out)
	ctx := context.Background()

	// nothing typed yet
	code, err := ch.PollForCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, code)

	go func() {
		_, _ = io.WriteString(writer, "12ab56\n\n 654321 \n")
	}()

	var codes []string
	assert.Eventually(t, func() bool {
		code, err := ch.PollForCode(ctx)
		require.NoError(t, err)
		if code != "" {
			codes = append(codes, code)
		}
		return len(codes) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"654321"}, codes)
	assert.Contains(t, out.String(), "Invalid code format")
	assert.Contains(t, out.String(), "Skipping manual code")
}

func TestConsoleChannel_Reports(t *testing.T) {
	color.NoColor = true

	out := &syncBuffer{}
	ch := NewConsoleChannel(bytes.NewReader(nil), out)
	ctx := context.Background()

	require.NoError(t, ch.ReportChallenge(ctx, types.MFAChallengeOneTimeCode, types.MFAChallengeOneTimeCode.Instruction()))
	require.NoError(t, ch.ReportChallenge(ctx, types.MFAChallengePushApproval, types.MFAChallengePushApproval.Instruction()))
	require.NoError(t, ch.ReportError(ctx, types.AuthErrorKindPushDenied, types.AuthErrorKindPushDenied.Message()))
	require.NoError(t, ch.ReportSuccess(ctx, &types.SuccessReport{CookieCount: 3, Location: "file://backend/cookies.json"}))

	confirmed, err := ch.PollForConfirmation(ctx)
	require.NoError(t, err)
	assert.False(t, confirmed)

	printed := out.String()
	assert.Contains(t, printed, "OTP (SMS/Voice) required")
	assert.Contains(t, printed, "Push Notification required")
	assert.Contains(t, printed, "PUSH_NOTIFICATION_DENIED")
	assert.Contains(t, printed, "3 cookies written to file://backend/cookies.json")
}

func TestIsManualCode(t *testing.T) {
	assert.True(t, isManualCode("000000"))
	assert.False(t, isManualCode("12345"))
	assert.False(t, isManualCode("1234567"))
	assert.False(t, isManualCode("12345a"))
}
