package docgo

// Close flushes pending changes and releases the database. It must not be
// used afterwards.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	return db.store.Close()
}
