package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"fairsengine/pkg/utils"
)

// Recovery catches a panicking handler, logs it with a stack trace, and
// returns 500 instead of taking the HTTP surface down with it.
func Recovery(next http.Handler) http.Handler {
	log := utils.L().WithComponent("api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic in handler",
					utils.Any("panic", err),
					utils.String("stack", string(debug.Stack())),
				)
				http.Error(w, fmt.Sprintf("internal server error: %v", err), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
