package repository

import "errors"

// errNoRows is a package-internal sentinel distinguishing "zero rows
// scanned" from a real driver error; callers translate it into
// queue.NotFoundError with the right Kind/ID.
var errNoRows = errors.New("repository: no rows")
