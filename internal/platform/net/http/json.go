package http

import (
	"net/http"

	"contribot/internal/platform/net/http/bind"
)

// PostJSON mounts a handler that binds and validates a T body before calling h
func PostJSON[T any](r Router, path string, h func(*http.Request, T) Response) {
	r.Post(path, Handle(func(req *http.Request) Response {
		in, err := bind.ParseJSON[T](req, bind.JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true, AllowEmptyBody: true})
		if err != nil {
			return Error(err)
		}
		return h(req, in)
	}))
}

// GetJSON mounts a return-style GET handler
func GetJSON(r Router, path string, h func(*http.Request) Response) {
	r.Get(path, Handle(h))
}
