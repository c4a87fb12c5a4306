package model

import "errors"

// ErrNotFound is returned when an entity, concept, cluster or bookmark
// does not exist for the requesting user. Callers map it to a
// 404-equivalent at the boundary; check with errors.Is.
var ErrNotFound = errors.New("not found")
