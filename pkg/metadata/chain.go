package metadata

import (
	"fmt"
)

// Chain links a document into a strictly ordered sequence.
// Wire form: [ height ] for the chain head (height zero, no predecessor)
// or [ height, docref ] for every later link.
type Chain struct {
	Height int64
	Ref    *DocumentRef
}

func (c *Chain) String() string {
	if c.Ref == nil {
		return fmt.Sprintf("height: %d", c.Height)
	}
	return fmt.Sprintf("height: %d, ref: [%s]", c.Height, c.Ref)
}

func (c *Chain) toWire() []any {
	if c.Ref == nil {
		return []any{c.Height}
	}
	return []any{c.Height, c.Ref.toWire()}
}

func chainFromWire(v any) (*Chain, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("chain: expected array, got %T", v)
	}
	if len(arr) != 1 && len(arr) != 2 {
		return nil, fmt.Errorf("chain: expected 1 or 2 items, found %d", len(arr))
	}
	height, err := wireInt(arr[0])
	if err != nil {
		return nil, fmt.Errorf("chain: height: %w", err)
	}
	if height < 0 {
		return nil, fmt.Errorf("chain: height must not be negative, got %d", height)
	}
	c := &Chain{Height: height}
	if len(arr) == 2 {
		ref, err := refFromWire(arr[1])
		if err != nil {
			return nil, fmt.Errorf("chain: %w", err)
		}
		c.Ref = &ref
	}
	return c, nil
}

func wireInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > 1<<62 {
			return 0, fmt.Errorf("integer out of range: %d", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
