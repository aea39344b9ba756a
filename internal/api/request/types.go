package request

import (
	"encoding/json"

	"github.com/mcoot/geoseek/internal/model"
)

// CreateSessionRequest is the request body for creating a session.
// Coordinates accept either JSON numbers or numeric strings.
type CreateSessionRequest struct {
	Name              string       `json:"name"`
	IsPrivate         bool         `json:"isPrivate"`
	Password          string       `json:"password"`
	DisplayName       string       `json:"displayName"`
	Longitude         *json.Number `json:"longitude"`
	Latitude          *json.Number `json:"latitude"`
	Radius            *json.Number `json:"radius"`
	StartDelaySeconds int          `json:"startDelaySeconds"`
	DurationSeconds   int          `json:"durationSeconds"`
	StartPolicy       string       `json:"startPolicy,omitempty"`
}

// Params converts the request into registry create parameters
func (r CreateSessionRequest) Params() (model.CreateParams, error) {
	lon, err := toFloat(r.Longitude)
	if err != nil {
		return model.CreateParams{}, err
	}
	lat, err := toFloat(r.Latitude)
	if err != nil {
		return model.CreateParams{}, err
	}
	radius, err := toFloat(r.Radius)
	if err != nil {
		return model.CreateParams{}, err
	}
	return model.CreateParams{
		Name:              r.Name,
		IsPrivate:         r.IsPrivate,
		Password:          r.Password,
		DisplayName:       r.DisplayName,
		Longitude:         lon,
		Latitude:          lat,
		Radius:            radius,
		StartDelaySeconds: r.StartDelaySeconds,
		DurationSeconds:   r.DurationSeconds,
		StartPolicy:       model.StartPolicy(r.StartPolicy),
	}, nil
}

func toFloat(n *json.Number) (*float64, error) {
	if n == nil {
		return nil, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, model.ErrInvalidFields
	}
	return &f, nil
}
