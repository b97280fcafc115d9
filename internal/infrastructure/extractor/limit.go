package extractor

import (
	"fmt"
	"io"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

// DefaultMaxSourceBytes matches the default upload limit.
const DefaultMaxSourceBytes int64 = 25 << 20

// ReadLimited reads all of r, failing with domain.ErrInvalidInput when r holds more than limit
// bytes. A non-positive limit means DefaultMaxSourceBytes.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxSourceBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read source", fmt.Errorf("source exceeds %d bytes", limit))
	}
	return raw, nil
}
