package domain

import "errors"

var ErrSourceQuery = errors.New("issue source query failed")
var ErrUnresolvedSprint = errors.New("sprint window is not resolved")
var ErrMalformedDuration = errors.New("malformed worklog duration")
