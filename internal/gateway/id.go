package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewDocumentID returns "<epoch millis>_<9 hex chars>". Uniqueness is
// probabilistic.
func NewDocumentID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d_%s", now.UnixMilli(), hex[:9])
}
