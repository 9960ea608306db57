package shared

// Listing defaults and caps for account-scoped list endpoints.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ClampPage normalises raw limit and offset query values.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
