package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/pubsub"
	"github.com/helixml/sessionpilot/api/pkg/system"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

var (
	ErrNotFound     = errors.New("acquisition not found")
	ErrCodeRequired = errors.New("code is required")
)

// Store holds the host side record of every acquisition, keyed by
// correlation id. Codes typed by the human are also published so sessions
// listening on the bus receive them without polling.
type Store struct {
	acquisitions *xsync.MapOf[string, types.Acquisition]
	publisher    pubsub.Publisher
	clock        clockwork.Clock
}

func NewStore(publisher pubsub.Publisher, clock clockwork.Clock) *Store {
	if publisher == nil {
		publisher = pubsub.NewNoop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		acquisitions: xsync.NewMapOf[string, types.Acquisition](),
		publisher:    publisher,
		clock:        clock,
	}
}

func (s *Store) Create(email string) types.Acquisition {
	now := s.clock.Now()
	acq := types.Acquisition{
		ID:      system.GenerateAcquisitionID(),
		Email:   email,
		Status:  types.AcquisitionStatusPending,
		Created: now,
		Updated: now,
	}
	s.acquisitions.Store(acq.ID, acq)
	return s.withAge(acq)
}

// Ensure registers id if the host has not seen it yet. Sessions started
// outside the host report under ids it never created.
func (s *Store) Ensure(id string) types.Acquisition {
	acq, _ := s.acquisitions.LoadOrCompute(id, func() types.Acquisition {
		now := s.clock.Now()
		log.Debug().Str("request_id", id).Msg("registering unknown acquisition")
		return types.Acquisition{
			ID:      id,
			Status:  types.AcquisitionStatusRunning,
			Created: now,
			Updated: now,
		}
	})
	return s.withAge(acq)
}

func (s *Store) Get(id string) (types.Acquisition, error) {
	acq, ok := s.acquisitions.Load(id)
	if !ok {
		return types.Acquisition{}, ErrNotFound
	}
	return s.withAge(acq), nil
}

// List returns every acquisition, oldest first
func (s *Store) List() []types.Acquisition {
	var res []types.Acquisition
	s.acquisitions.Range(func(_ string, acq types.Acquisition) bool {
		res = append(res, s.withAge(acq))
		return true
	})
	sort.Slice(res, func(i, j int) bool {
		return res[i].Created.Before(res[j].Created)
	})
	return res
}

func (s *Store) Delete(id string) {
	s.acquisitions.Delete(id)
}

func (s *Store) SetStatus(id string, status types.AcquisitionStatus) error {
	return s.update(id, func(acq *types.Acquisition) {
		acq.Status = status
	})
}

func (s *Store) ReportChallenge(id string, update *types.ChallengeUpdate) error {
	return s.update(id, func(acq *types.Acquisition) {
		acq.Status = types.AcquisitionStatusAwaiting
		acq.Method = update.Method
		acq.Message = update.Message
	})
}

// ReportError records a classified error. A rejected code leaves the
// acquisition waiting for the next one, everything else is terminal.
func (s *Store) ReportError(id string, report *types.ErrorReport) error {
	return s.update(id, func(acq *types.Acquisition) {
		acq.ErrorKind = report.Error
		acq.ErrorMessage = report.Message
		if report.Error == types.AuthErrorKindOTPInvalid {
			acq.OTPAttempts++
			return
		}
		if acq.Status != types.AcquisitionStatusCancelled {
			acq.Status = types.AcquisitionStatusFailed
		}
	})
}

func (s *Store) ReportSuccess(id string, report *types.SuccessReport) error {
	return s.update(id, func(acq *types.Acquisition) {
		acq.Status = types.AcquisitionStatusSucceeded
		acq.CookieCount = report.CookieCount
		acq.Location = report.Location
		acq.ErrorKind = types.AuthErrorKindNone
		acq.ErrorMessage = ""
	})
}

// Finish records the outcome of a session run by this host
func (s *Store) Finish(id string, outcome *types.Outcome) error {
	return s.update(id, func(acq *types.Acquisition) {
		switch {
		case acq.Status == types.AcquisitionStatusCancelled:
		case outcome.Success():
			acq.Status = types.AcquisitionStatusSucceeded
		default:
			acq.Status = types.AcquisitionStatusFailed
			acq.ErrorKind = outcome.Kind()
			acq.ErrorMessage = outcome.Err.Message
		}
	})
}

func (s *Store) SubmitCode(ctx context.Context, id, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrCodeRequired
	}
	if err := s.update(id, func(acq *types.Acquisition) {
		acq.OTP = code
	}); err != nil {
		return err
	}
	return s.publishCode(ctx, id)
}

func (s *Store) Confirm(ctx context.Context, id string) error {
	if err := s.update(id, func(acq *types.Acquisition) {
		acq.Confirmed2FA = true
	}); err != nil {
		return err
	}
	return s.publishCode(ctx, id)
}

func (s *Store) ClearCode(id string) error {
	return s.update(id, func(acq *types.Acquisition) {
		acq.OTP = ""
	})
}

func (s *Store) CodeResponse(id string) (*types.CodeResponse, error) {
	acq, ok := s.acquisitions.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &types.CodeResponse{
		OTP:              acq.OTP,
		UserConfirmed2FA: acq.Confirmed2FA,
	}, nil
}

// HandleEvent applies a report received over the message bus
func (s *Store) HandleEvent(event *types.AcquisitionEvent) error {
	if event.RequestID == "" {
		return errors.New("event has no request id")
	}
	s.Ensure(event.RequestID)

	switch event.Type {
	case types.AcquisitionEventChallenge:
		if event.Challenge == nil {
			return errors.New("challenge event without payload")
		}
		return s.ReportChallenge(event.RequestID, event.Challenge)
	case types.AcquisitionEventError:
		if event.Error == nil {
			return errors.New("error event without payload")
		}
		return s.ReportError(event.RequestID, event.Error)
	case types.AcquisitionEventSuccess:
		if event.Success == nil {
			return errors.New("success event without payload")
		}
		return s.ReportSuccess(event.RequestID, event.Success)
	case types.AcquisitionEventCodeCleared:
		return s.ClearCode(event.RequestID)
	}
	return errors.New("unknown event type: " + string(event.Type))
}

func (s *Store) publishCode(ctx context.Context, id string) error {
	resp, err := s.CodeResponse(id)
	if err != nil {
		return err
	}
	bts, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, pubsub.GetCodeSubject(id), bts)
}

func (s *Store) update(id string, fn func(acq *types.Acquisition)) error {
	found := false
	s.acquisitions.Compute(id, func(acq types.Acquisition, loaded bool) (types.Acquisition, bool) {
		if !loaded {
			// delete the zero value Compute would otherwise insert
			return acq, true
		}
		found = true
		fn(&acq)
		acq.Updated = s.clock.Now()
		return acq, false
	})
	if !found {
		return ErrNotFound
	}
	return nil
}

func (s *Store) withAge(acq types.Acquisition) types.Acquisition {
	acq.Age = humanize.RelTime(acq.Created, s.clock.Now(), "ago", "from now")
	return acq
}
