package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods when a value
// that must be a power of two is not
var PowerOfTwoError error = errors.New("number must be a power of two")
