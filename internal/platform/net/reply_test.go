package net

import (
	"context"
	"net/http"
	"testing"

	perr "contribot/internal/platform/errors"
	kit "contribot/internal/platform/testkit"
)

func TestReplyAndError(t *testing.T) {
	t.Parallel()

	status, w := Reply(http.StatusAccepted, map[string]int{"n": 1}, "r1")
	kit.MustEqual(t, status, http.StatusAccepted, "status")
	kit.MustEqual(t, w.Status, "Accepted", "status text")

	status, w = Error(perr.Unauthorizedf("bad key"), "r2")
	kit.MustEqual(t, status, http.StatusUnauthorized, "status")
	kit.MustEqual(t, w.Code, perr.ErrorCodeUnauthorized, "code")
	kit.MustEqual(t, w.Error, "bad key", "message")
	kit.MustEqual(t, w.RequestID, "r2", "request id")
}

func TestContextValues(t *testing.T) {
	t.Parallel()
	ctx := WithCaller(WithRequest(context.Background(), "req-7"), "scheduler")
	kit.MustEqual(t, RequestID(ctx), "req-7", "request id")
	kit.MustEqual(t, Caller(ctx), "scheduler", "caller")
	kit.MustEqual(t, Caller(context.Background()), "", "empty caller")
}
