package domain

import "errors"

// ErrInvalidResult indicates that an experiment result contains invalid data.
var ErrInvalidResult = errors.New("invalid experiment result")

// ErrInvalidInput indicates that an input record contains invalid data.
var ErrInvalidInput = errors.New("invalid input data")
