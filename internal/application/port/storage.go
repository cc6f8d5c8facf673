package port

import "github.com/garyjia/ledger-consolidation/internal/domain/entity"

// Exporter writes computed candidates to a file for audit or offline review
type Exporter interface {
	ExportMappings(path string, candidates []entity.MappingCandidate) error
	ExportEliminations(path string, candidates []entity.EliminationCandidate) error
}

// MappingImporter reads pre-approved mappings. skipped counts rows that were
// dropped because they name no target account.
type MappingImporter interface {
	ImportMappings(path string) (mappings []entity.MappingCandidate, skipped int, err error)
}
