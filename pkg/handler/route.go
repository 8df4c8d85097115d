package handler

import (
	"net/http"
)

// Route type
type Route string

const (
	// RouteGetState mounts a form and returns its state
	RouteGetState Route = "getState"
	// RouteSetState replaces the whole form state
	RouteSetState Route = "setState"
	// RouteSetValues replaces the form values
	RouteSetValues Route = "setValues"
	// RouteFlush commits a pending write
	RouteFlush Route = "flush"
)

// route resolves the method and the action path segment following the form name
func route(method, action string) (Route, bool) {
	switch {
	case method == http.MethodGet && (action == "" || action == "state"):
		return RouteGetState, true
	case method == http.MethodPost && action == "state":
		return RouteSetState, true
	case method == http.MethodPost && action == "values":
		return RouteSetValues, true
	case method == http.MethodPost && action == "flush":
		return RouteFlush, true
	default:
		return "", false
	}
}
