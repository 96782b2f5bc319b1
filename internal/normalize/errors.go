package normalize

import "errors"

// ErrNotJSON is returned by ExtractJSON. Classify never surfaces it; parse
// failures there degrade to ShapeRawText.
var ErrNotJSON = errors.New("not a JSON document")
