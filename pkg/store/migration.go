package store

// createTables creates the documents, document_versions and
// document_shares tables if they don't exist. Versions and shares
// cascade on document delete.
func (s *PostgresDocumentStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		id VARCHAR(36) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		owner_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_owner_id ON documents(owner_id);
	CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at);

	CREATE TABLE IF NOT EXISTS document_versions (
		id VARCHAR(36) PRIMARY KEY,
		document_id VARCHAR(36) NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		label VARCHAR(255),
		created_by VARCHAR(36) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		UNIQUE (document_id, version_number)
	);

	CREATE INDEX IF NOT EXISTS idx_document_versions_document_id
		ON document_versions(document_id, version_number DESC);

	CREATE TABLE IF NOT EXISTS document_shares (
		id VARCHAR(36) PRIMARY KEY,
		document_id VARCHAR(36) NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		owner_id VARCHAR(36) NOT NULL,
		share_token VARCHAR(64) NOT NULL UNIQUE,
		permission VARCHAR(10) NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_document_shares_token ON document_shares(share_token);
	`

	_, err := s.db.Exec(query)
	return err
}
