package validate

import (
	"context"
	"errors"

	"trackhistory/internal/app/ports"
	"trackhistory/internal/domain/history"
)

const (
	DefaultWarningLimit int64 = 3000
	DefaultErrorLimit   int64 = 15000

	TypeWarning = "warning"
	TypeError   = "error"
)

var ErrInvalidRequest = errors.New("invalid validate request")

// UseCase sizes a history window before it is loaded. Windows at or above
// ErrorLimit are rejected, windows at or above WarningLimit are flagged.
type UseCase struct {
	Sizer        ports.DatasetSizer
	WarningLimit int64
	ErrorLimit   int64
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	if len(req.Devices) == 0 || req.End < req.Start {
		return Response{}, ErrInvalidRequest
	}
	size, err := u.Sizer.CountHistory(ctx, history.Query{Devices: req.Devices, Start: req.Start, End: req.End})
	if err != nil {
		return Response{}, err
	}

	warning, limit := u.limits()
	out := Response{IsValid: true, Size: size}
	switch {
	case size >= limit:
		out.IsValid = false
		out.Type = TypeError
	case size >= warning:
		out.Type = TypeWarning
	}
	return out, nil
}

func (u UseCase) limits() (int64, int64) {
	warning, limit := u.WarningLimit, u.ErrorLimit
	if warning <= 0 {
		warning = DefaultWarningLimit
	}
	if limit <= 0 {
		limit = DefaultErrorLimit
	}
	return warning, limit
}
