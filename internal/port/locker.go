package port

import "context"

type Locker interface {
	// Lock blocks until key is held by the caller or ctx is done. The returned
	// func releases the key and is safe to call more than once.
	Lock(ctx context.Context, key string) (func(), error)
}
