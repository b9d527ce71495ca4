package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/sessionpilot/api/pkg/pubsub"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

type published struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) last(t *testing.T) (string, types.CodeResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.messages)
	msg := p.messages[len(p.messages)-1]
	var resp types.CodeResponse
	require.NoError(t, json.Unmarshal(msg.payload, &resp))
	return msg.topic, resp
}

func TestStore_CreateAndGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(nil, clock)

	acq := store.Create("user@example.com")
	assert.Regexp(t, `^acq_[0-9a-f]{32}$`, acq.ID)
	assert.Equal(t, types.AcquisitionStatusPending, acq.Status)
	assert.Equal(t, "now", acq.Age)

	clock.Advance(3 * time.Minute)
	got, err := store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", got.Email)
	assert.Equal(t, "3 minutes ago", got.Age)

	_, err = store.Get("acq_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListIsOldestFirst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(nil, clock)

	first := store.Create("a@example.com")
	clock.Advance(time.Second)
	second := store.Create("b@example.com")
	clock.Advance(time.Second)
	third := store.Ensure("acq_external")

	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	store.Delete(second.ID)
	assert.Len(t, store.List(), 2)
}

func TestStore_EnsureKeepsExisting(t *testing.T) {
	store := NewStore(nil, clockwork.NewFakeClock())

	acq := store.Create("user@example.com")
	again := store.Ensure(acq.ID)
	assert.Equal(t, types.AcquisitionStatusPending, again.Status)
	assert.Equal(t, "user@example.com", again.Email)

	external := store.Ensure("acq_external")
	assert.Equal(t, types.AcquisitionStatusRunning, external.Status)
}

func TestStore_UpdatesRequireKnownID(t *testing.T) {
	store := NewStore(nil, clockwork.NewFakeClock())

	assert.ErrorIs(t, store.SetStatus("acq_missing", types.AcquisitionStatusRunning), ErrNotFound)
	assert.ErrorIs(t, store.ClearCode("acq_missing"), ErrNotFound)
	_, err := store.CodeResponse("acq_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// a failed update must not leave a zero value behind
	assert.Empty(t, store.List())
}

func TestStore_ChallengeAndCodeLifecycle(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	store := NewStore(publisher, clockwork.NewFakeClock())
	acq := store.Create("user@example.com")

	require.NoError(t, store.ReportChallenge(acq.ID, &types.ChallengeUpdate{
		Method:  types.MFAChallengeOneTimeCode,
		Message: types.MFAChallengeOneTimeCode.Instruction(),
	}))
	got, err := store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusAwaiting, got.Status)
	assert.Equal(t, types.MFAChallengeOneTimeCode, got.Method)

	assert.ErrorIs(t, store.SubmitCode(ctx, acq.ID, "   "), ErrCodeRequired)

	require.NoError(t, store.SubmitCode(ctx, acq.ID, " 123456 "))
	resp, err := store.CodeResponse(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, "123456", resp.OTP)
	assert.False(t, resp.UserConfirmed2FA)

	topic, pushed := publisher.last(t)
	assert.Equal(t, pubsub.GetCodeSubject(acq.ID), topic)
	assert.Equal(t, "123456", pushed.OTP)

	require.NoError(t, store.ReportError(acq.ID, &types.ErrorReport{
		Error:   types.AuthErrorKindOTPInvalid,
		Message: types.AuthErrorKindOTPInvalid.Message(),
	}))
	require.NoError(t, store.ClearCode(acq.ID))

	got, err = store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusAwaiting, got.Status, "a rejected code is not terminal")
	assert.Equal(t, 1, got.OTPAttempts)
	assert.Empty(t, got.OTP)

	require.NoError(t, store.Confirm(ctx, acq.ID))
	_, pushed = publisher.last(t)
	assert.True(t, pushed.UserConfirmed2FA)

	require.NoError(t, store.ReportSuccess(acq.ID, &types.SuccessReport{CookieCount: 7, Location: "mem://cookies.json"}))
	got, err = store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusSucceeded, got.Status)
	assert.Equal(t, 7, got.CookieCount)
	assert.Equal(t, types.AuthErrorKindNone, got.ErrorKind)
	assert.Empty(t, got.ErrorMessage)
}

func TestStore_TerminalErrors(t *testing.T) {
	store := NewStore(nil, clockwork.NewFakeClock())
	acq := store.Create("user@example.com")

	require.NoError(t, store.ReportError(acq.ID, &types.ErrorReport{
		Error:   types.AuthErrorKindPushDenied,
		Message: types.AuthErrorKindPushDenied.Message(),
	}))
	got, err := store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusFailed, got.Status)
	assert.Equal(t, types.AuthErrorKindPushDenied, got.ErrorKind)
}

func TestStore_CancelledIsSticky(t *testing.T) {
	store := NewStore(nil, clockwork.NewFakeClock())
	acq := store.Create("user@example.com")

	require.NoError(t, store.SetStatus(acq.ID, types.AcquisitionStatusCancelled))
	require.NoError(t, store.ReportError(acq.ID, &types.ErrorReport{
		Error:   types.AuthErrorKindGeneric,
		Message: types.AuthErrorKindGeneric.Message(),
	}))
	require.NoError(t, store.Finish(acq.ID, &types.Outcome{Err: types.NewAuthError(types.AuthErrorKindGeneric, "")}))

	got, err := store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusCancelled, got.Status)
}

func TestStore_Finish(t *testing.T) {
	store := NewStore(nil, clockwork.NewFakeClock())

	ok := store.Create("user@example.com")
	require.NoError(t, store.Finish(ok.ID, &types.Outcome{Artifact: &types.SessionArtifact{}}))
	got, err := store.Get(ok.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusSucceeded, got.Status)

	failed := store.Create("user@example.com")
	require.NoError(t, store.Finish(failed.ID, &types.Outcome{Err: types.NewAuthError(types.AuthErrorKindTimeout, "")}))
	got, err = store.Get(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusFailed, got.Status)
	assert.Equal(t, types.AuthErrorKindTimeout, got.ErrorKind)
	assert.Equal(t, types.AuthErrorKindTimeout.Message(), got.ErrorMessage)
}

func TestStore_HandleEvent(t *testing.T) {
	store := NewStore(nil, clockwork.NewFakeClock())

	require.NoError(t, store.HandleEvent(&types.AcquisitionEvent{
		RequestID: "acq_bus",
		Type:      types.AcquisitionEventChallenge,
		Challenge: &types.ChallengeUpdate{Method: types.MFAChallengePushApproval},
	}))
	got, err := store.Get("acq_bus")
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusAwaiting, got.Status)

	require.NoError(t, store.HandleEvent(&types.AcquisitionEvent{
		RequestID: "acq_bus",
		Type:      types.AcquisitionEventSuccess,
		Success:   &types.SuccessReport{CookieCount: 3},
	}))
	got, err = store.Get("acq_bus")
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusSucceeded, got.Status)

	assert.Error(t, store.HandleEvent(&types.AcquisitionEvent{Type: types.AcquisitionEventCodeCleared}))
	assert.Error(t, store.HandleEvent(&types.AcquisitionEvent{RequestID: "acq_bus", Type: types.AcquisitionEventError}))
	assert.Error(t, store.HandleEvent(&types.AcquisitionEvent{RequestID: "acq_bus", Type: "bogus"}))
}

func TestLocalChannel(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, clockwork.NewFakeClock())
	acq := store.Create("user@example.com")
	channel := NewLocalChannel(store, acq.ID)

	require.NoError(t, channel.ReportChallenge(ctx, types.MFAChallengeEmailCode, "check your inbox"))
	code, err := channel.PollForCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, code)

	require.NoError(t, store.SubmitCode(ctx, acq.ID, "654321"))
	code, err = channel.PollForCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "654321", code)

	require.NoError(t, channel.ClearCode(ctx))
	code, err = channel.PollForCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, code)

	require.NoError(t, store.Confirm(ctx, acq.ID))
	confirmed, err := channel.PollForConfirmation(ctx)
	require.NoError(t, err)
	assert.True(t, confirmed)

	require.NoError(t, channel.ReportError(ctx, types.AuthErrorKindTimeout, types.AuthErrorKindTimeout.Message()))
	got, err := store.Get(acq.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AcquisitionStatusFailed, got.Status)
	assert.Equal(t, types.MFAChallengeEmailCode, got.Method)
}
