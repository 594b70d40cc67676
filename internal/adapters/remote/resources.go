package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/robodash/internal/domain/model"
)

// RawFetcher returns undecoded bodies. *Client implements it.
type RawFetcher interface {
	Fetch(ctx context.Context, key model.ResourceKey) ([]byte, error)
}

// Resources decodes raw payloads into domain values per resource kind:
//
//	vitals    -> model.RobotInfo
//	commands  -> []model.CommandRecord
//	telemetry -> []model.PoseSample (most recent first, as served)
//	logs      -> []model.LogLine
type Resources struct {
	raw RawFetcher
}

// NewResources wraps raw.
func NewResources(raw RawFetcher) *Resources {
	return &Resources{raw: raw}
}

// Fetch fetches and decodes key.
func (r *Resources) Fetch(ctx context.Context, key model.ResourceKey) (any, error) {
	data, err := r.raw.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decode(key.Kind, data)
}

// Decode turns a raw body into the domain value for kind.
func Decode(kind model.ResourceKind, data []byte) (any, error) {
	const op = "remote.decode"

	switch kind {
	case model.KindVitals:
		var info model.RobotInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, model.NewDecodeFailure(op, err)
		}
		return info, nil

	case model.KindCommands:
		records := []model.CommandRecord{}
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, model.NewDecodeFailure(op, err)
		}
		return records, nil

	case model.KindTelemetry:
		var samples []model.TelemetrySample
		if err := json.Unmarshal(data, &samples); err != nil {
			return nil, model.NewDecodeFailure(op, err)
		}
		poses := make([]model.PoseSample, len(samples))
		for i, s := range samples {
			poses[i] = s.Pose()
		}
		return poses, nil

	case model.KindLogs:
		lines := []model.LogLine{}
		if err := json.Unmarshal(data, &lines); err != nil {
			return nil, model.NewDecodeFailure(op, err)
		}
		return lines, nil
	}

	return nil, model.NewDecodeFailure(op, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind))
}
