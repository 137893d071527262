package counter

import "errors"

// ErrDocumentNotFound is returned when the counter document has not been created
var ErrDocumentNotFound = errors.New("counter document not found")
