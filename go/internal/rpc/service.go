package rpc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/fixtures"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
)

// TrackingApp defines what the service layer needs from the tracking backend.
type TrackingApp interface {
	ClaimMatchTracking(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) (lock.ClaimResult, error)
	ReleaseMatchTracking(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) error
	UpdateTrackingActivity(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) error
	GetFixture(ctx context.Context, fixtureID uuid.UUID) (models.Fixture, bool, error)
	PeriodTiming(ctx context.Context, fixtureID, periodID uuid.UUID) (models.PeriodTiming, error)
	ActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]models.OnFieldPlayer, error)
	StartPeriod(ctx context.Context, fixtureID uuid.UUID, periodNumber int, startedAt time.Time) (models.PeriodTiming, error)
	EndPeriod(ctx context.Context, fixtureID, periodID uuid.UUID, endedAt time.Time) error
	ReopenPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error
	DeletePeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error
	AddPausedSeconds(ctx context.Context, fixtureID, periodID uuid.UUID, seconds int) error
	SetFixtureStatus(ctx context.Context, fixtureID uuid.UUID, status models.FixtureStatus) error
	RecordMatchEvent(ctx context.Context, event models.MatchEvent) (models.MatchEvent, error)
	DeleteMatchEvent(ctx context.Context, fixtureID, eventID uuid.UUID) error
	RecordSubstitution(ctx context.Context, sub models.Substitution) (models.Substitution, error)
	DeleteSubstitution(ctx context.Context, fixtureID, substitutionID uuid.UUID) error
}

// Service serves the tracking procedures.
type Service struct {
	app TrackingApp
}

func NewService(app TrackingApp) *Service {
	return &Service{app: app}
}

// Handler returns the path prefix and handler to mount on a mux.
func (s *Service) Handler() (string, http.Handler) {
	mux := http.NewServeMux()
	opts := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}

	handle(mux, ClaimMatchTrackingProcedure, opts, func(ctx context.Context, req *TrackerRequest) (*lock.ClaimResult, error) {
		res, err := s.app.ClaimMatchTracking(ctx, req.FixtureID, identity(req))
		return &res, err
	})
	handle(mux, ReleaseMatchTrackingProcedure, opts, func(ctx context.Context, req *TrackerRequest) (*Empty, error) {
		return &Empty{}, s.app.ReleaseMatchTracking(ctx, req.FixtureID, identity(req))
	})
	handle(mux, UpdateTrackingActivityProcedure, opts, func(ctx context.Context, req *TrackerRequest) (*Empty, error) {
		return &Empty{}, s.app.UpdateTrackingActivity(ctx, req.FixtureID, identity(req))
	})
	handle(mux, GetFixtureProcedure, opts, func(ctx context.Context, req *FixtureRequest) (*models.Fixture, error) {
		fixture, found, err := s.app.GetFixture(ctx, req.FixtureID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fixtures.ErrFixtureNotFound
		}
		return &fixture, nil
	})
	handle(mux, GetPeriodTimingProcedure, opts, func(ctx context.Context, req *PeriodRequest) (*models.PeriodTiming, error) {
		period, err := s.app.PeriodTiming(ctx, req.FixtureID, req.PeriodID)
		return &period, err
	})
	handle(mux, ListActivePlayersProcedure, opts, func(ctx context.Context, req *PeriodRequest) (*ActivePlayersResponse, error) {
		players, err := s.app.ActivePlayers(ctx, req.FixtureID, req.PeriodID)
		return &ActivePlayersResponse{Players: players}, err
	})
	handle(mux, StartPeriodProcedure, opts, func(ctx context.Context, req *StartPeriodRequest) (*models.PeriodTiming, error) {
		period, err := s.app.StartPeriod(ctx, req.FixtureID, req.PeriodNumber, req.StartedAt)
		return &period, err
	})
	handle(mux, EndPeriodProcedure, opts, func(ctx context.Context, req *EndPeriodRequest) (*Empty, error) {
		return &Empty{}, s.app.EndPeriod(ctx, req.FixtureID, req.PeriodID, req.EndedAt)
	})
	handle(mux, ReopenPeriodProcedure, opts, func(ctx context.Context, req *PeriodRequest) (*Empty, error) {
		return &Empty{}, s.app.ReopenPeriod(ctx, req.FixtureID, req.PeriodID)
	})
	handle(mux, DeletePeriodProcedure, opts, func(ctx context.Context, req *PeriodRequest) (*Empty, error) {
		return &Empty{}, s.app.DeletePeriod(ctx, req.FixtureID, req.PeriodID)
	})
	handle(mux, AddPausedSecondsProcedure, opts, func(ctx context.Context, req *AddPausedSecondsRequest) (*Empty, error) {
		return &Empty{}, s.app.AddPausedSeconds(ctx, req.FixtureID, req.PeriodID, req.Seconds)
	})
	handle(mux, SetFixtureStatusProcedure, opts, func(ctx context.Context, req *SetFixtureStatusRequest) (*Empty, error) {
		return &Empty{}, s.app.SetFixtureStatus(ctx, req.FixtureID, req.Status)
	})
	handle(mux, RecordMatchEventProcedure, opts, func(ctx context.Context, req *models.MatchEvent) (*models.MatchEvent, error) {
		event, err := s.app.RecordMatchEvent(ctx, *req)
		return &event, err
	})
	handle(mux, DeleteMatchEventProcedure, opts, func(ctx context.Context, req *RecordRequest) (*Empty, error) {
		return &Empty{}, s.app.DeleteMatchEvent(ctx, req.FixtureID, req.RecordID)
	})
	handle(mux, RecordSubstitutionProcedure, opts, func(ctx context.Context, req *models.Substitution) (*models.Substitution, error) {
		sub, err := s.app.RecordSubstitution(ctx, *req)
		return &sub, err
	})
	handle(mux, DeleteSubstitutionProcedure, opts, func(ctx context.Context, req *RecordRequest) (*Empty, error) {
		return &Empty{}, s.app.DeleteSubstitution(ctx, req.FixtureID, req.RecordID)
	})

	return "/" + ServiceName + "/", mux
}

func handle[Req, Res any](mux *http.ServeMux, procedure string, opts []connect.HandlerOption, fn func(context.Context, *Req) (*Res, error)) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, req.Msg)
		if err != nil {
			code := errorCode(err)
			if code == connect.CodeInternal {
				log.Error().Err(err).Str("procedure", procedure).Msg("tracking procedure failed")
			}
			return nil, connect.NewError(code, err)
		}
		return connect.NewResponse(res), nil
	}, opts...))
}

func errorCode(err error) connect.Code {
	switch {
	case errors.Is(err, fixtures.ErrFixtureNotFound),
		errors.Is(err, fixtures.ErrPeriodNotFound),
		errors.Is(err, fixtures.ErrRecordNotFound):
		return connect.CodeNotFound
	case errors.Is(err, fixtures.ErrNotHolder):
		return connect.CodePermissionDenied
	case errors.Is(err, fixtures.ErrInvalid):
		return connect.CodeInvalidArgument
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

func identity(req *TrackerRequest) lock.Identity {
	return lock.Identity{UserID: req.TrackerID, InstanceID: req.InstanceID}
}
