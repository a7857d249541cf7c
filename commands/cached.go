package commands

import (
	"context"
	"strings"
	"time"

	"github.com/cyberinferno/telnetd/cacher"
)

// Cached wraps a handler whose output only depends on its arguments. The
// output of fn is stored in cache under key plus the arguments and reused
// for ttl.
//
// Parameters:
//   - cache: Where output is stored
//   - ttl: How long output is reused
//   - key: Cache key prefix, usually the command name
//   - fn: Produces the output text for the given arguments
//
// Returns:
//   - A HandlerFunc that prints the cached or freshly produced output
func Cached(cache cacher.Cacher[string], ttl time.Duration, key string, fn func(ctx context.Context, args []string) (string, error)) HandlerFunc {
	return func(c Client, args []string) error {
		k := key
		if len(args) > 0 {
			k += ":" + strings.Join(args, " ")
		}

		out, err := cache.GetOrFetch(context.Background(), k, ttl, func(ctx context.Context) (string, error) {
			return fn(ctx, args)
		})
		if err != nil {
			return err
		}

		_, err = c.Write([]byte(out))
		return err
	}
}
