// Package rpc exposes the tracking backend over Connect with a JSON codec and provides the
// matching client used by tracker hosts.
package rpc

import (
	"encoding/json"
)

// ServiceName prefixes every procedure path.
const ServiceName = "matchday.tracking.v1.TrackingService"

const (
	ClaimMatchTrackingProcedure     = "/" + ServiceName + "/ClaimMatchTracking"
	ReleaseMatchTrackingProcedure   = "/" + ServiceName + "/ReleaseMatchTracking"
	UpdateTrackingActivityProcedure = "/" + ServiceName + "/UpdateTrackingActivity"
	GetFixtureProcedure             = "/" + ServiceName + "/GetFixture"
	GetPeriodTimingProcedure        = "/" + ServiceName + "/GetPeriodTiming"
	ListActivePlayersProcedure      = "/" + ServiceName + "/ListActivePlayers"
	StartPeriodProcedure            = "/" + ServiceName + "/StartPeriod"
	EndPeriodProcedure              = "/" + ServiceName + "/EndPeriod"
	ReopenPeriodProcedure           = "/" + ServiceName + "/ReopenPeriod"
	DeletePeriodProcedure           = "/" + ServiceName + "/DeletePeriod"
	AddPausedSecondsProcedure       = "/" + ServiceName + "/AddPausedSeconds"
	SetFixtureStatusProcedure       = "/" + ServiceName + "/SetFixtureStatus"
	RecordMatchEventProcedure       = "/" + ServiceName + "/RecordMatchEvent"
	DeleteMatchEventProcedure       = "/" + ServiceName + "/DeleteMatchEvent"
	RecordSubstitutionProcedure     = "/" + ServiceName + "/RecordSubstitution"
	DeleteSubstitutionProcedure     = "/" + ServiceName + "/DeleteSubstitution"
)

// jsonCodec marshals plain Go structs; the service has no protobuf schema.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
