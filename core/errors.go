package core

import "errors"

// ErrMalformedPlan indicates a plan violating its structural invariants
// (cursor out of range, missing or duplicate task ids). This is a contract
// violation and is fatal to the run.
var ErrMalformedPlan = errors.New("malformed plan")
