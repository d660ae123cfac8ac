// SPDX-License-Identifier: MIT

package coordinator

import "errors"

// ErrNoHandle is returned by Focus when the pool holds no handle for the
// requested id.
var ErrNoHandle = errors.New("coordinator: no ready handle for id")
