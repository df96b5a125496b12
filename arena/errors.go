package arena

import "github.com/pkg/errors"

// OutOfMemoryError is the error returned from Acquire, AcquireZeroed, or Resize when
// no free run in the heap is large enough to satisfy the request. The heap is left
// exactly as it was, so the caller may release memory and retry.
var OutOfMemoryError error = errors.New("no free run is large enough to satisfy the request")
