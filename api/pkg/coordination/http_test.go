package coordination

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

func TestHTTPChannel(t *testing.T) {
	var (
		challenge types.ChallengeUpdate
		report    types.ErrorReport
		success   types.SuccessReport
		cleared   atomic.Int32
		polls     atomic.Int32
	)

	router := mux.NewRouter()
	internal := router.PathPrefix("/api/internal").Subrouter()
	internal.HandleFunc("/2fa-update/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acq_1", mux.Vars(r)["id"])
		require.NoError(t, json.NewDecoder(r.Body).Decode(&challenge))
	}).Methods(http.MethodPost)
	internal.HandleFunc("/get-otp/{id}", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_ = json.NewEncoder(w).Encode(&types.CodeResponse{OTP: " 123456 ", UserConfirmed2FA: true})
	}).Methods(http.MethodGet)
	internal.HandleFunc("/clear-otp/{id}", func(w http.ResponseWriter, r *http.Request) {
		cleared.Add(1)
	}).Methods(http.MethodPost)
	internal.HandleFunc("/auth-error/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
	}).Methods(http.MethodPost)
	internal.HandleFunc("/auth-success/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&success))
	}).Methods(http.MethodPost)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx := context.Background()
	ch := NewHTTPChannel(srv.URL+"/", "acq_1", 0)

	require.NoError(t, ch.ReportChallenge(ctx, types.MFAChallengeOneTimeCode, "enter the code"))
	assert.Equal(t, types.MFAChallengeOneTimeCode, challenge.Method)
	assert.Equal(t, "enter the code", challenge.Message)

	code, err := ch.PollForCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	confirmed, err := ch.PollForConfirmation(ctx)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, int32(2), polls.Load())

	require.NoError(t, ch.ClearCode(ctx))
	assert.Equal(t, int32(1), cleared.Load())

	require.NoError(t, ch.ReportError(ctx, types.AuthErrorKindOTPInvalid, "bad code"))
	assert.Equal(t, types.AuthErrorKindOTPInvalid, report.Error)

	require.NoError(t, ch.ReportSuccess(ctx, &types.SuccessReport{CookieCount: 12, Location: "file://backend/cookies.json"}))
	assert.Equal(t, 12, success.CookieCount)
}

func TestHTTPChannel_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "acquisition not found", http.StatusNotFound)
	}))
	defer srv.Close()

	ch := NewHTTPChannel(srv.URL, "acq_missing", 3)
	_, err := ch.PollForCode(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "acquisition not found")
}
