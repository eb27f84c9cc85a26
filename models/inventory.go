package models

import (
	"bytes"
	"sync"

	"bitbucket.org/mmdatafocus/cyclecount_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const referenceFileName = "inventory.xlsx"

// ReferenceTable is a parsed view of the uploaded reference spreadsheet:
// rows keyed by the column names of a caller-selected header row.
type ReferenceTable struct {
	Columns []string
	Rows    []map[string]string
}

func (t *ReferenceTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

func (t *ReferenceTable) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ReferenceStore holds the uploaded spreadsheet bytes verbatim and
// re-parses them on demand. Parse failures degrade to empty results:
// callers treat an empty table as "preview unavailable", never a crash.
type ReferenceStore struct {
	mu     sync.Mutex
	file   *utils.FileStore
	logger *logrus.Logger
}

func NewReferenceStore(dir string, logger *logrus.Logger) *ReferenceStore {
	return &ReferenceStore{
		file:   utils.NewFileStore(dir, referenceFileName),
		logger: logger,
	}
}

// SaveBlob stores the raw upload, replacing any previous reference table.
func (s *ReferenceStore) SaveBlob(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Write(data)
}

func (s *ReferenceStore) HasBlob() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Exists()
}

func (s *ReferenceStore) open() *excelize.File {
	data, exists, err := s.file.Read()
	if err != nil || !exists {
		return nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "inventory",
			"path":   s.file.Path,
		}).Warn("reference blob unreadable: " + err.Error())
		return nil
	}
	return f
}

// ListSheets enumerates sheet names, empty when no blob or bad bytes.
func (s *ReferenceStore) ListSheets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.open()
	if f == nil {
		return nil
	}
	defer f.Close()
	return f.GetSheetList()
}

// LoadTable parses the named sheet using headerRow (0-based) as the
// column-name row. Unknown sheet, out-of-range header row or unreadable
// bytes all yield an empty table.
func (s *ReferenceStore) LoadTable(sheet string, headerRow int) *ReferenceTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if headerRow < 0 {
		return &ReferenceTable{}
	}
	f := s.open()
	if f == nil {
		return &ReferenceTable{}
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil || headerRow >= len(rows) {
		return &ReferenceTable{}
	}

	columns := make([]string, 0, len(rows[headerRow]))
	for _, name := range rows[headerRow] {
		columns = append(columns, name)
	}

	table := &ReferenceTable{Columns: columns}
	for _, raw := range rows[headerRow+1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if _, seen := row[col]; seen {
				// duplicate column names: first occurrence wins
				continue
			}
			if i < len(raw) {
				row[col] = raw[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
