package syncer

import (
	"context"
	"errors"
	"fmt"
)

// pageHandler processes one page and reports whether the walk must stop.
type pageHandler[R any] func(ctx context.Context, page Page[R]) (stop bool, err error)

// walk drives cursor pagination until the handler stops it, the marketplace
// has no more pages, slots run out or maxDepth pages have been fetched.
func walk[R any](
	ctx context.Context,
	maxDepth int,
	cursor string,
	slots *allocator,
	fetch func(ctx context.Context, cursor string) (Page[R], error),
	handle pageHandler[R],
) (pages int, err error) {
	for depth := 0; slots.Available(); depth++ {
		if depth >= maxDepth {
			return pages, fmt.Errorf("%w (%d)", ErrRunawayPagination, maxDepth)
		}
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return pages, upstream(err)
		}
		if len(page.Records) == 0 {
			return pages, nil
		}
		// A run cancelled during the fetch must not commit the page.
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		stop, err := handle(ctx, page)
		if err != nil {
			return pages, err
		}
		pages++

		if stop || !page.HasMore {
			return pages, nil
		}
		cursor = page.NextCursor
	}
	return pages, nil
}

// upstream tags a fetch failure. Cancellation of the run itself is passed through.
func upstream(err error) error {
	if errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
