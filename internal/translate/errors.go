package translate

import (
	"errors"
	"fmt"
)

// ErrTranslation matches every *Error via errors.Is.
var ErrTranslation = errors.New("translation failed")

// Translation stages reported in Error.Stage.
const (
	StageInput   = "input"
	StagePrompt  = "prompt"
	StageModel   = "model"
	StageParse   = "parse"
	StageExecute = "execute"
)

// Error reports a failed natural language translation. Err keeps the cause,
// so provider errors from the ai package stay reachable with errors.As.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("translation failed (%s): %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrTranslation }
