package pishock

import (
	"encoding/json"
	"errors"
	"fmt"
)

type linkOperateWarning struct {
	Active bool `json:"Active"`
	Min    int  `json:"Min"`
	Max    int  `json:"Max"`
}

// linkOperatePayload is the ID_KEY body. UserId and Token are always sent as null.
type linkOperatePayload struct {
	Intensity int                `json:"Intensity"`
	Duration  int                `json:"Duration"`
	ID        string             `json:"Id"`
	Key       string             `json:"Key"`
	Op        string             `json:"Op"`
	Hold      bool               `json:"Hold"`
	Username  string             `json:"Username"`
	Warning   linkOperateWarning `json:"Warning"`
	UserID    *string            `json:"UserId"`
	Token     *string            `json:"Token"`
}

// apiOperatePayload is the API_SHARECODE body. It has no warning fields.
type apiOperatePayload struct {
	Username  string `json:"Username"`
	Name      string `json:"Name"`
	Code      string `json:"Code"`
	Intensity int    `json:"Intensity"`
	Duration  int    `json:"Duration"`
	APIKey    string `json:"Apikey"`
	Op        int    `json:"Op"`
}

var ErrNoAuth = errors.New("pishock: no auth method")

// encodePayload builds the JSON body for req's auth variant.
func encodePayload(req DispatchRequest) ([]byte, error) {
	var v any
	switch a := req.Auth.(type) {
	case IDKey:
		v = linkOperatePayload{
			Intensity: req.Operation.Intensity,
			Duration:  req.Operation.Duration,
			ID:        a.ID,
			Key:       a.Key,
			Op:        req.Operation.Kind.LetterCode(),
			Hold:      false,
			Username:  req.DisplayName,
			Warning: linkOperateWarning{
				Active: req.Warning.Active,
				Min:    req.Warning.MinDelay,
				Max:    req.Warning.MaxDelay,
			},
		}
	case APIShareCode:
		v = apiOperatePayload{
			Username:  a.Username,
			Name:      req.DisplayName,
			Code:      a.ShareCode,
			Intensity: req.Operation.Intensity,
			Duration:  req.Operation.Duration,
			APIKey:    a.APIKey,
			Op:        req.Operation.Kind.NumericCode(),
		}
	case nil:
		return nil, ErrNoAuth
	default:
		return nil, fmt.Errorf("pishock: unsupported auth method %T", req.Auth)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return b, nil
}
