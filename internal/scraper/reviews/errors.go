package reviews

import (
	"errors"
	"fmt"
)

// ErrInteraction is matched by every InteractionError.
var ErrInteraction = errors.New("interaction failed")

// InteractionError reports a load-more control that was found but could not be clicked.
type InteractionError struct {
	Selector string
	Err      error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("click load-more control %q: %v", e.Selector, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

func (e *InteractionError) Is(target error) bool { return target == ErrInteraction }
