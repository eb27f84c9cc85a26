package models

import (
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/cyclecount_backend/utils"
	"github.com/sirupsen/logrus"
)

const mappingFileName = "mapping.json"

// ColumnMapping declares which reference-table columns correspond to the
// physical-key fields. ExpectedCol is the only required column; an unset
// optional column means "not usable as a match key".
type ColumnMapping struct {
	SheetName   string `json:"sheet_name" binding:"required"`
	HeaderRow   int    `json:"header_row"`
	ExpectedCol string `json:"expected_col" binding:"required"`
	PalletCol   string `json:"pallet_col"`
	LocationCol string `json:"location_col"`
	SkuCol      string `json:"sku_col"`
	LotCol      string `json:"lot_col"`
}

// columnFor returns the mapped reference-table column for a physical-key
// field, or "" when the field is not mapped.
func (m *ColumnMapping) columnFor(field string) string {
	switch field {
	case "pallet_col":
		return m.PalletCol
	case "location_col":
		return m.LocationCol
	case "sku_col":
		return m.SkuCol
	case "lot_col":
		return m.LotCol
	}
	return ""
}

// MappingStore owns the single active column mapping. Save overwrites
// wholesale; mappings are never merged.
type MappingStore struct {
	mu     sync.Mutex
	file   *utils.FileStore
	logger *logrus.Logger
}

func NewMappingStore(dir string, logger *logrus.Logger) *MappingStore {
	return &MappingStore{
		file:   utils.NewFileStore(dir, mappingFileName),
		logger: logger,
	}
}

// Save validates and persists the mapping, replacing any previous one.
func (s *MappingStore) Save(m ColumnMapping) error {
	if strings.TrimSpace(m.ExpectedCol) == "" {
		return utils.NewValidationError("expected_col", "is required")
	}
	if m.HeaderRow < 0 {
		return utils.NewValidationError("header_row", "must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := utils.MarshalJSONIndent(m)
	if err != nil {
		return err
	}
	return s.file.Write(data)
}

// Load returns the active mapping, or nil when none has been saved.
// A corrupt mapping file degrades to nil (logged), never to an error.
func (s *MappingStore) Load() *ColumnMapping {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists, err := s.file.Read()
	if err != nil || !exists {
		return nil
	}
	var m ColumnMapping
	if err := utils.UnmarshalJSON(data, &m); err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "mapping",
			"path":   s.file.Path,
		}).Warn("mapping record unparseable; treating as unset: " + err.Error())
		return nil
	}
	return &m
}
