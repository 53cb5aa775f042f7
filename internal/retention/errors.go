package retention

import (
	"errors"
	"fmt"

	"github.com/dray-io/circular/internal/codec"
)

// InputFault reports a failed read from the input source. It is transient:
// the engine logs it and waits for the next chunk.
type InputFault struct {
	Err error
}

func (e *InputFault) Error() string {
	return fmt.Sprintf("retention: input read failed: %v", e.Err)
}

func (e *InputFault) Unwrap() error {
	return e.Err
}

// errStall is wrapped in a codec fault when a codec step neither consumes
// nor produces although it has room to do both.
var errStall = errors.New("no progress")

// stallFault builds the fault for a stuck codec step.
func stallFault(name, op string) error {
	return &codec.Fault{Codec: name, Op: op, Err: errStall}
}

// IsFatal reports whether err leaves the engine unusable.
func IsFatal(err error) bool {
	return errors.Is(err, codec.ErrFault)
}
