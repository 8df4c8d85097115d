package client

import (
	"context"
)

type transport interface {
	call(ctx context.Context, method, path string, request, response interface{}) error
	shutdown()
}
