// Package storage defines the offline mutation store: locally staged
// creates/updates/deletes waiting for the reconciliation engine to replay
// them against the remote endpoint. All access is keyed by an explicit site
// identifier so cross-site state never mixes.
package storage

import "context"

// OfflineEntry is one pending glossary-entry creation staged while offline.
// Identity is (SiteID, GlossaryID, Concept, TimeCreated); saving again under
// the same identity replaces the previous pending edit.
type OfflineEntry struct {
	SiteID               string
	GlossaryID           int64
	CourseID             int64
	UserID               int64
	Concept              string
	Definition           string
	DefinitionFormat     int
	Options              map[string]string
	AttachmentItemID     int64
	StoredFiles          string
	TimeCreated          int64
	BaselineTimeModified int64
}

// GlossaryOfflineStorage stores pending glossary entries.
type GlossaryOfflineStorage interface {
	// SaveEntry upserts a pending entry by its identity tuple.
	// The last local edit wins; nothing queues behind it.
	SaveEntry(ctx context.Context, entry *OfflineEntry) error

	// GetEntry retrieves one pending entry.
	// Returns ErrEntryNotFound if nothing is pending under that identity.
	GetEntry(ctx context.Context, siteID string, glossaryID int64, concept string, timeCreated int64) (*OfflineEntry, error)

	// GetGlossaryEntries returns the pending entries of one glossary,
	// ordered by concept. Empty slice when nothing is pending.
	GetGlossaryEntries(ctx context.Context, siteID string, glossaryID int64) ([]*OfflineEntry, error)

	// GetAllEntries returns every pending entry for the site across
	// glossaries, used by the whole-site sync sweep.
	GetAllEntries(ctx context.Context, siteID string) ([]*OfflineEntry, error)

	// DeleteEntry removes a pending entry. Idempotent: deleting a
	// non-existent entry is not an error.
	DeleteEntry(ctx context.Context, siteID string, glossaryID int64, concept string, timeCreated int64) error

	// IsConceptUsed reports whether another pending entry in the glossary
	// already uses the concept, excluding the one identified by
	// excludingTimeCreated (0 excludes nothing).
	IsConceptUsed(ctx context.Context, siteID string, glossaryID int64, concept string, excludingTimeCreated int64) (bool, error)
}
