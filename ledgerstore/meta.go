package ledgerstore

import "github.com/google/uuid"

// NodeIDSeed returns the persisted node-id seed, generating and storing
// a fresh one on first open.
func (s *Store) NodeIDSeed() (uuid.UUID, error) {
	v, err := s.meta.Get(metaKeyNodeID)
	if err != nil {
		if !s.meta.IsNotFound(err) {
			return uuid.UUID{}, err
		}
		v = nil
	}
	if len(v) == 16 {
		var id uuid.UUID
		copy(id[:], v)
		return id, nil
	}
	id := uuid.New()
	if err := s.meta.Put(metaKeyNodeID, id[:]); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}
