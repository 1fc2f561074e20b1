package schemamodel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// ComputeFingerprint hashes the canonical JSON encoding of db (with its own
// Fingerprint field blanked out first, so the hash doesn't depend on
// itself). Grounded on richcatalog.Snapshot's "marshal after sorting, hash
// the bytes" checksum technique.
func ComputeFingerprint(db *Database) string {
	cp := *db
	cp.Fingerprint = ""
	b, err := json.Marshal(cp)
	if err != nil {
		// Database only contains marshalable fields; a failure here means a
		// programming error, not a runtime condition callers can act on.
		panic(fmt.Sprintf("schemamodel: marshal for fingerprint: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// WriteJSON writes db to path as indented JSON, matching the schema.json
// contract (spec §6). Adapted from pg_lineage.ExportJSON.
func WriteJSON(db *Database, path string) error {
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("schemamodel: marshal: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("schemamodel: write %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a schema.json document previously written by WriteJSON or
// produced by the Introspector. Adapted from pg_lineage.LoadCatalogFromJSON.
func LoadJSON(path string) (*Database, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemamodel: read %s: %w", path, err)
	}
	var db Database
	if err := json.Unmarshal(b, &db); err != nil {
		return nil, fmt.Errorf("schemamodel: unmarshal %s: %w", path, err)
	}
	return &db, nil
}
