package dispatch

import "errors"

var ErrInvalidPlan = errors.New("invalid plan")
