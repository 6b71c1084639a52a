package transcribe

import (
	"errors"
	"fmt"
)

// Category classifies one failed dispatch attempt. The dispatch state
// machine keys its retry/escalation decision on this value.
type Category string

const (
	// CategoryQuota means the service signalled rate or quota limiting.
	// Retrying the same model inside the rate window is pointless.
	CategoryQuota Category = "quota"
	// CategoryTransient covers any other service-side or network failure.
	CategoryTransient Category = "transient"
	// CategoryMalformed means the response did not satisfy the declared
	// output schema. Retried the same way as a transient failure.
	CategoryMalformed Category = "malformed"
)

// RequestError is a classified failure of one transcription attempt.
type RequestError struct {
	Category Category
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func quotaErr(format string, args ...any) error {
	return &RequestError{Category: CategoryQuota, Err: fmt.Errorf(format, args...)}
}

func transientErr(format string, args ...any) error {
	return &RequestError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

func malformedErr(format string, args ...any) error {
	return &RequestError{Category: CategoryMalformed, Err: fmt.Errorf(format, args...)}
}

// ClassifyError extracts the category from an attempt error. Unclassified
// errors (including context cancellation bubbling up through the HTTP
// client) default to transient; the dispatch loop checks the context itself
// before sleeping or retrying.
func ClassifyError(err error) Category {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryTransient
}
