package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "tixmarket:v1"

func KeyEvent(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s", ns, eventID)
}

func KeyApprovedEvents() string {
	return ns + ":events:approved"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

// KeyIdemPurchase scopes a client supplied Idempotency-Key to the caller so
// that two callers reusing the same key never see each other's results.
func KeyIdemPurchase(caller, idemKey string) string {
	return fmt.Sprintf("%s:idem:purchase:%s:%s", ns, caller, idemKey)
}

func ChannelCatalogChanged() string {
	return ns + ":catalog:changed"
}
