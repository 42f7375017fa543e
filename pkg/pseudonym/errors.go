package pseudonym

import "errors"

var (
	ErrCapacityExceeded          = errors.New("label pool capacity exceeded")
	ErrMissingKey                = errors.New("secret key required for keyed hashing")
	ErrNonUniqueIdentifyingTuple = errors.New("identifying fields are not unique")
	ErrLabelCollision            = errors.New("label collision")

	ErrUnknownColumn          = errors.New("unknown column")
	ErrOverlappingColumns     = errors.New("column is both identifying and payload")
	ErrAmbiguousCanonicalForm = errors.New("identifying field contains canonical separator")
	ErrInvalidTruncation      = errors.New("invalid truncation length")
	ErrRaggedRow              = errors.New("row width does not match header")
	ErrUnknownStrategy        = errors.New("unknown strategy")
	ErrUnknownAlgorithm       = errors.New("unknown hash algorithm")
)
