// Package crash is the single fatal-error path for memkit containers.
//
// Containers call Fatal when a precondition is violated (allocation failure,
// shrink below used, out-of-bounds index, reuse of a live pool slot, an
// unimplemented operation). Fatal logs the failure with its source location,
// runs the installed Handler, and panics with a *types.Error. It never returns.
package crash

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/pkg/types"
)

// Handler observes a fatal error before the panic is raised. A host
// application can install one to flush state or exit with its own status.
type Handler func(err *types.Error)

var handler atomic.Pointer[Handler]

// SetHandler installs h and returns the previously installed handler.
// A nil h removes the current handler.
func SetHandler(h Handler) Handler {
	var prev *Handler
	if h == nil {
		prev = handler.Swap(nil)
	} else {
		prev = handler.Swap(&h)
	}
	if prev == nil {
		return nil
	}
	return *prev
}

// Fatal reports a fatal error of the given kind raised by its caller.
func Fatal(kind types.ErrKind, format string, args ...any) {
	raise(2, kind, fmt.Sprintf(format, args...))
}

// Assert calls Fatal with kind when cond is false.
func Assert(cond bool, kind types.ErrKind, format string, args ...any) {
	if cond {
		return
	}
	raise(2, kind, fmt.Sprintf(format, args...))
}

// Unimplemented reports that the calling operation is deliberately not supported.
func Unimplemented(op string) {
	raise(2, types.ErrKindUnimplemented, op+" is not implemented")
}

func raise(skip int, kind types.ErrKind, msg string) {
	err := &types.Error{
		Kind: kind,
		Msg:  msg,
		Err:  types.Sentinel(kind),
	}
	if pc, file, line, ok := runtime.Caller(skip); ok {
		err.File = filepath.Base(file)
		err.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			err.Func = filepath.Base(fn.Name())
		}
	}

	logger.Error("fatal",
		"kind", kind.String(),
		"msg", msg,
		"at", err.Location(),
	)

	if h := handler.Load(); h != nil {
		(*h)(err)
	}
	panic(err)
}

// Catch runs fn and returns the fatal error it raised, or nil if fn returned
// normally. Panics that did not come from Fatal are re-raised.
func Catch(fn func()) (err *types.Error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(*types.Error); ok {
			err = e
			return
		}
		panic(r)
	}()
	fn()
	return nil
}
