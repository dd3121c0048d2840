package commitment

import "errors"

var (
	// ErrQuantityOutOfRange is thrown when a quantity does not fit the
	// representable range [0, 2^RangeBits).
	ErrQuantityOutOfRange = errors.New("quantity out of representable range")
	// ErrSplitQuantityMismatch is thrown when the quantities of a split do
	// not sum up to the source quantity. This is an invariant violation on
	// the caller side, never a condition to retry.
	ErrSplitQuantityMismatch = errors.New("split quantities must sum up to the source quantity")
	// ErrNullSplitQuantities ...
	ErrNullSplitQuantities = errors.New("split quantities must not be null or empty")
	// ErrNullStreamID ...
	ErrNullStreamID = errors.New("stream id must not be null")
	// ErrInvalidBlindingFactor ...
	ErrInvalidBlindingFactor = errors.New("blinding factor is not a valid scalar")
	// ErrInvalidCommitment ...
	ErrInvalidCommitment = errors.New("commitment is not a valid curve point")
)
