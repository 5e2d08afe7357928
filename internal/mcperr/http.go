package mcperr

import "net/http"

// HTTPStatus maps an error's Kind to the status code the HTTP surface
// must return for it: Validation->400, NotFound->404, Process->409,
// everything else->500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Process:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
