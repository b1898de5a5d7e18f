package cache

import "fmt"

// SetLayoutVersionForTest overwrites the recorded layout version.
func (s *Store) SetLayoutVersionForTest(version int) error {
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}
