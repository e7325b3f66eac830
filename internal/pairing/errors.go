package pairing

import "errors"

var (
	ErrSelfPair      = errors.New("pairing: cannot pair a user with itself")
	ErrInvalidMode    = errors.New("pairing: invalid mode")
	ErrAlreadyPaired  = errors.New("pairing: user already paired")
	ErrNotPaired      = errors.New("pairing: users are not paired with each other")
)
