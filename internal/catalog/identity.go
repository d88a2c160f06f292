package catalog

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// idNamespace seeds deterministic instrument ids. Changing it would
// re-key every instrument, so it is fixed forever.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("catalog.instrument"))

// identityKey normalizes (exchange, token) into the map key used for
// identity resolution. The exchange is upper-cased; tokens are exact.
func identityKey(exchange, token string) string {
	return strings.ToUpper(exchange) + ":" + token
}

// newInstrumentID derives the stable id for an (exchange, token) pair:
// a namespaced SHA1 UUID of "EXCHANGE:token". Deterministic, so the same
// pair always produces the same id regardless of when it is imported.
func newInstrumentID(exchange, token string) string {
	u := uuid.NewSHA1(idNamespace, []byte(identityKey(exchange, token)))
	return "ins_" + hex.EncodeToString(u[:])
}

// identityResolver maps (exchange, token) pairs to stable instrument ids.
// It is preloaded once per import so repeated tokens within one file
// resolve consistently without per-row storage round-trips.
type identityResolver struct {
	ids map[string]string
}

// Resolve returns the id for the pair, deriving and remembering a new one
// when the pair has not been seen before.
func (r *identityResolver) Resolve(exchange, token string) string {
	key := identityKey(exchange, token)
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := newInstrumentID(exchange, token)
	r.ids[key] = id
	return id
}

// loadIdentityResolver preloads every stored (exchange, token) -> id
// mapping from the store.
func (s *Service) loadIdentityResolver(ctx context.Context) (*identityResolver, error) {
	rows, err := s.store.IdentityRows(ctx)
	if err != nil {
		return nil, storagef("load identity map", err)
	}
	ids := make(map[string]string, len(rows))
	for _, r := range rows {
		ids[identityKey(r.Exchange, r.Token)] = r.ID
	}
	return &identityResolver{ids: ids}, nil
}
