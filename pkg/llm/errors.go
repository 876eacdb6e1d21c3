package llm

import "errors"

// ErrMalformed marks responses the backend delivered but that could not
// be parsed into the expected structure (bad JSON, empty body). Callers
// use errors.Is to separate these from transport failures.
var ErrMalformed = errors.New("malformed response")
