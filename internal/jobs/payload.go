package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gvsdash/internal/api"
)

// DecodePayload turns a stored JSON payload into the request type the kind
// submits. An empty payload yields the zero request.
func DecodePayload(kind Kind, raw []byte) (interface{}, error) {
	var target interface{}
	switch kind {
	case KindTrain:
		target = &api.TrainRequest{}
	case KindForecast:
		target = &api.ForecastRequest{}
	case KindAnomalyScan:
		target = &api.AnomalyScanRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPayloadMismatch, kind, err)
		}
	}

	switch req := target.(type) {
	case *api.TrainRequest:
		return *req, nil
	case *api.ForecastRequest:
		return *req, nil
	case *api.AnomalyScanRequest:
		return *req, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
