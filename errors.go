package docgo

import (
	"errors"
	"fmt"
)

// ErrNotFound is the match target for all not-found errors returned by the
// OrFail read/update variants.
var ErrNotFound = errors.New("not found")

// DocumentNotFoundError is returned by FindByIDOrFail and UpdateOrFail when
// the target id does not exist. The plain variants return nil instead.
//
// It satisfies `errors.Is(err, ErrNotFound)`.
type DocumentNotFoundError struct {
	Model string
	ID    string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Model, e.ID)
}

func (e *DocumentNotFoundError) Is(target error) bool { return target == ErrNotFound }
