package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/janitor"
	"github.com/helixml/sessionpilot/api/pkg/system"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

// Server is the companion host API. The public routes are for the person
// resolving 2FA, the internal routes are what sessions report to.
type Server struct {
	cfg     config.WebServer
	store   *Store
	runner  *Runner
	janitor *janitor.Janitor
}

func NewServer(cfg config.WebServer, store *Store, runner *Runner, j *janitor.Janitor) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if j == nil {
		j = janitor.NewJanitor(janitor.JanitorOptions{})
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		janitor: j,
	}, nil
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		WriteTimeout:      time.Minute,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: time.Second * 10,
		IdleTimeout:       time.Minute * 5,
		Handler:           s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down http server")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("companion host listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	s.janitor.InjectMiddleware(router)

	public := router.PathPrefix(system.APISubPath).Subrouter()
	public.HandleFunc("/acquisitions", system.Wrapper(s.listAcquisitions)).Methods(http.MethodGet)
	public.HandleFunc("/acquisitions", system.Wrapper(s.createAcquisition)).Methods(http.MethodPost)
	public.HandleFunc("/acquisitions/{id}", system.Wrapper(s.getAcquisition)).Methods(http.MethodGet)
	public.HandleFunc("/acquisitions/{id}", system.Wrapper(s.cancelAcquisition)).Methods(http.MethodDelete)
	public.HandleFunc("/acquisitions/{id}/otp", system.Wrapper(s.submitCode)).Methods(http.MethodPost)
	public.HandleFunc("/acquisitions/{id}/confirm", system.Wrapper(s.confirm)).Methods(http.MethodPost)

	internal := router.PathPrefix(system.InternalSubPath).Subrouter()
	internal.HandleFunc("/2fa-update/{id}", system.Wrapper(s.reportChallenge)).Methods(http.MethodPost)
	internal.HandleFunc("/get-otp/{id}", system.WrapperWithConfig(s.getCode, system.WrapperConfig{SilenceErrors: true})).Methods(http.MethodGet)
	internal.HandleFunc("/clear-otp/{id}", system.Wrapper(s.clearCode)).Methods(http.MethodPost)
	internal.HandleFunc("/auth-error/{id}", system.Wrapper(s.reportError)).Methods(http.MethodPost)
	internal.HandleFunc("/auth-success/{id}", system.Wrapper(s.reportSuccess)).Methods(http.MethodPost)

	return router
}

func (s *Server) listAcquisitions(_ http.ResponseWriter, _ *http.Request) ([]types.Acquisition, *system.HTTPError) {
	return s.store.List(), nil
}

func (s *Server) createAcquisition(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	if s.runner == nil {
		return nil, system.NewHTTPError409("this host does not run acquisitions")
	}
	var req types.CreateAcquisitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, system.NewHTTPError400(fmt.Sprintf("invalid request body: %s", err))
	}
	acq, err := s.runner.Start(&req)
	if err != nil {
		return nil, system.NewHTTPError400(err.Error())
	}
	return &acq, nil
}

func (s *Server) getAcquisition(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	acq, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &acq, nil
}

func (s *Server) cancelAcquisition(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := mux.Vars(r)["id"]
	if s.runner == nil {
		return nil, system.NewHTTPError409("this host does not run acquisitions")
	}
	if err := s.runner.Cancel(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, system.NewHTTPError404("acquisition is not running on this host")
		}
		return nil, system.NewHTTPError(err)
	}
	return s.acquisition(id)
}

func (s *Server) submitCode(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := mux.Vars(r)["id"]
	var req types.SubmitOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, system.NewHTTPError400(fmt.Sprintf("invalid request body: %s", err))
	}
	if err := s.store.SubmitCode(r.Context(), id, req.OTP); err != nil {
		return nil, toHTTPError(err)
	}
	return s.acquisition(id)
}

func (s *Server) confirm(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := mux.Vars(r)["id"]
	if err := s.store.Confirm(r.Context(), id); err != nil {
		return nil, toHTTPError(err)
	}
	return s.acquisition(id)
}

func (s *Server) reportChallenge(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := s.ensure(r)
	var update types.ChallengeUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, system.NewHTTPError400(fmt.Sprintf("invalid request body: %s", err))
	}
	if err := s.store.ReportChallenge(id, &update); err != nil {
		return nil, toHTTPError(err)
	}
	log.Info().Str("request_id", id).Str("method", string(update.Method)).Msg("2FA challenge reported")
	return s.acquisition(id)
}

func (s *Server) getCode(_ http.ResponseWriter, r *http.Request) (*types.CodeResponse, *system.HTTPError) {
	resp, err := s.store.CodeResponse(s.ensure(r))
	if err != nil {
		return nil, toHTTPError(err)
	}
	return resp, nil
}

func (s *Server) clearCode(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := s.ensure(r)
	if err := s.store.ClearCode(id); err != nil {
		return nil, toHTTPError(err)
	}
	return s.acquisition(id)
}

func (s *Server) reportError(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := s.ensure(r)
	var report types.ErrorReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		return nil, system.NewHTTPError400(fmt.Sprintf("invalid request body: %s", err))
	}
	if _, err := types.ValidateAuthErrorKind(string(report.Error)); err != nil {
		return nil, system.NewHTTPError400(err.Error())
	}
	if err := s.store.ReportError(id, &report); err != nil {
		return nil, toHTTPError(err)
	}
	log.Info().Str("request_id", id).Str("kind", string(report.Error)).Msg("auth error reported")
	return s.acquisition(id)
}

func (s *Server) reportSuccess(_ http.ResponseWriter, r *http.Request) (*types.Acquisition, *system.HTTPError) {
	id := s.ensure(r)
	var report types.SuccessReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		return nil, system.NewHTTPError400(fmt.Sprintf("invalid request body: %s", err))
	}
	if err := s.store.ReportSuccess(id, &report); err != nil {
		return nil, toHTTPError(err)
	}
	log.Info().Str("request_id", id).Int("cookies", report.CookieCount).Msg("auth success reported")
	return s.acquisition(id)
}

// ensure registers the id of a session the host did not start
func (s *Server) ensure(r *http.Request) string {
	id := mux.Vars(r)["id"]
	s.store.Ensure(id)
	return id
}

func (s *Server) acquisition(id string) (*types.Acquisition, *system.HTTPError) {
	acq, err := s.store.Get(id)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &acq, nil
}

func toHTTPError(err error) *system.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return system.NewHTTPError404(err.Error())
	case errors.Is(err, ErrCodeRequired):
		return system.NewHTTPError400(err.Error())
	}
	return system.NewHTTPError500(err.Error())
}
