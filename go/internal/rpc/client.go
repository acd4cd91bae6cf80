package rpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
)

// Client calls the tracking backend. It satisfies every backend-facing interface of a
// tracking session.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
}

func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       []connect.ClientOption{connect.WithCodec(jsonCodec{})},
	}
}

func call[Req, Res any](ctx context.Context, c *Client, procedure string, req *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, c.opts...)
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func trackerRequest(fixtureID uuid.UUID, who lock.Identity) *TrackerRequest {
	return &TrackerRequest{FixtureID: fixtureID, TrackerID: who.UserID, InstanceID: who.InstanceID}
}

func (c *Client) ClaimMatchTracking(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) (lock.ClaimResult, error) {
	res, err := call[TrackerRequest, lock.ClaimResult](ctx, c, ClaimMatchTrackingProcedure, trackerRequest(fixtureID, who))
	if err != nil {
		return lock.ClaimResult{}, err
	}
	return *res, nil
}

func (c *Client) ReleaseMatchTracking(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) error {
	_, err := call[TrackerRequest, Empty](ctx, c, ReleaseMatchTrackingProcedure, trackerRequest(fixtureID, who))
	return err
}

func (c *Client) UpdateTrackingActivity(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) error {
	_, err := call[TrackerRequest, Empty](ctx, c, UpdateTrackingActivityProcedure, trackerRequest(fixtureID, who))
	return err
}

// GetFixture reports a missing fixture as found == false rather than an error.
func (c *Client) GetFixture(ctx context.Context, fixtureID uuid.UUID) (models.Fixture, bool, error) {
	res, err := call[FixtureRequest, models.Fixture](ctx, c, GetFixtureProcedure, &FixtureRequest{FixtureID: fixtureID})
	if connect.CodeOf(err) == connect.CodeNotFound {
		return models.Fixture{}, false, nil
	}
	if err != nil {
		return models.Fixture{}, false, err
	}
	return *res, true, nil
}

func (c *Client) FixtureStatus(ctx context.Context, fixtureID uuid.UUID) (models.FixtureStatus, bool, error) {
	fixture, found, err := c.GetFixture(ctx, fixtureID)
	if err != nil || !found {
		return "", found, err
	}
	return fixture.Status, true, nil
}

func (c *Client) PeriodTiming(ctx context.Context, fixtureID, periodID uuid.UUID) (models.PeriodTiming, error) {
	res, err := call[PeriodRequest, models.PeriodTiming](ctx, c, GetPeriodTimingProcedure, &PeriodRequest{FixtureID: fixtureID, PeriodID: periodID})
	if err != nil {
		return models.PeriodTiming{}, err
	}
	return *res, nil
}

func (c *Client) ActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]models.OnFieldPlayer, error) {
	res, err := call[PeriodRequest, ActivePlayersResponse](ctx, c, ListActivePlayersProcedure, &PeriodRequest{FixtureID: fixtureID, PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	return res.Players, nil
}

func (c *Client) StartPeriod(ctx context.Context, fixtureID uuid.UUID, periodNumber int, startedAt time.Time) (models.PeriodTiming, error) {
	res, err := call[StartPeriodRequest, models.PeriodTiming](ctx, c, StartPeriodProcedure, &StartPeriodRequest{
		FixtureID:    fixtureID,
		PeriodNumber: periodNumber,
		StartedAt:    startedAt,
	})
	if err != nil {
		return models.PeriodTiming{}, err
	}
	return *res, nil
}

func (c *Client) EndPeriod(ctx context.Context, fixtureID, periodID uuid.UUID, endedAt time.Time) error {
	_, err := call[EndPeriodRequest, Empty](ctx, c, EndPeriodProcedure, &EndPeriodRequest{FixtureID: fixtureID, PeriodID: periodID, EndedAt: endedAt})
	return err
}

func (c *Client) ReopenPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error {
	_, err := call[PeriodRequest, Empty](ctx, c, ReopenPeriodProcedure, &PeriodRequest{FixtureID: fixtureID, PeriodID: periodID})
	return err
}

func (c *Client) DeletePeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error {
	_, err := call[PeriodRequest, Empty](ctx, c, DeletePeriodProcedure, &PeriodRequest{FixtureID: fixtureID, PeriodID: periodID})
	return err
}

func (c *Client) AddPausedSeconds(ctx context.Context, fixtureID, periodID uuid.UUID, seconds int) error {
	_, err := call[AddPausedSecondsRequest, Empty](ctx, c, AddPausedSecondsProcedure, &AddPausedSecondsRequest{
		FixtureID: fixtureID,
		PeriodID:  periodID,
		Seconds:   seconds,
	})
	return err
}

func (c *Client) SetFixtureStatus(ctx context.Context, fixtureID uuid.UUID, status models.FixtureStatus) error {
	_, err := call[SetFixtureStatusRequest, Empty](ctx, c, SetFixtureStatusProcedure, &SetFixtureStatusRequest{FixtureID: fixtureID, Status: status})
	return err
}

func (c *Client) RecordMatchEvent(ctx context.Context, event models.MatchEvent) (models.MatchEvent, error) {
	res, err := call[models.MatchEvent, models.MatchEvent](ctx, c, RecordMatchEventProcedure, &event)
	if err != nil {
		return models.MatchEvent{}, err
	}
	return *res, nil
}

func (c *Client) DeleteMatchEvent(ctx context.Context, fixtureID, eventID uuid.UUID) error {
	_, err := call[RecordRequest, Empty](ctx, c, DeleteMatchEventProcedure, &RecordRequest{FixtureID: fixtureID, RecordID: eventID})
	return err
}

func (c *Client) RecordSubstitution(ctx context.Context, sub models.Substitution) (models.Substitution, error) {
	res, err := call[models.Substitution, models.Substitution](ctx, c, RecordSubstitutionProcedure, &sub)
	if err != nil {
		return models.Substitution{}, err
	}
	return *res, nil
}

func (c *Client) DeleteSubstitution(ctx context.Context, fixtureID, substitutionID uuid.UUID) error {
	_, err := call[RecordRequest, Empty](ctx, c, DeleteSubstitutionProcedure, &RecordRequest{FixtureID: fixtureID, RecordID: substitutionID})
	return err
}
