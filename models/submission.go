package models

import (
	"bytes"
	"encoding/csv"
	"os"
	"sync"

	"bitbucket.org/mmdatafocus/cyclecount_backend/utils"
	"github.com/sirupsen/logrus"
)

// Issue types a counter can report. IssueTypeMissing is a sentinel used
// by reconciliation passes, never entered by a counter.
const (
	IssueTypeMatch     = "Match"
	IssueTypeOver      = "Over"
	IssueTypeShort     = "Short"
	IssueTypeMisplaced = "Misplaced"
	IssueTypeDamaged   = "Damaged"
	IssueTypeOther     = "Other"
	IssueTypeMissing   = "MISSING"
)

var IssueTypeOptions = []string{
	IssueTypeMatch, IssueTypeOver, IssueTypeShort,
	IssueTypeMisplaced, IssueTypeDamaged, IssueTypeOther,
}

// SubmissionColumns is the current log schema, in exact column order.
// actual_pallet was added after the first release; EnsureSchema migrates
// older logs forward.
var SubmissionColumns = []string{
	"timestamp", "user", "location", "sku", "lot",
	"expected_qty", "counted_qty", "issue_type", "actual_pallet", "note",
}

const submissionsFileName = "submissions.csv"

// Submission is one immutable completed-count record. All fields are
// plain strings on disk; consumers coerce quantities as needed.
type Submission struct {
	Timestamp    string `json:"timestamp"`
	User         string `json:"user"`
	Location     string `json:"location"`
	SKU          string `json:"sku"`
	Lot          string `json:"lot"`
	ExpectedQty  string `json:"expected_qty"`
	CountedQty   string `json:"counted_qty"`
	IssueType    string `json:"issue_type"`
	ActualPallet string `json:"actual_pallet"`
	Note         string `json:"note"`
}

func (s Submission) toMap() map[string]string {
	return map[string]string{
		"timestamp":     s.Timestamp,
		"user":          s.User,
		"location":      s.Location,
		"sku":           s.SKU,
		"lot":           s.Lot,
		"expected_qty":  s.ExpectedQty,
		"counted_qty":   s.CountedQty,
		"issue_type":    s.IssueType,
		"actual_pallet": s.ActualPallet,
		"note":          s.Note,
	}
}

func submissionFromMap(m map[string]string) Submission {
	return Submission{
		Timestamp:    m["timestamp"],
		User:         m["user"],
		Location:     m["location"],
		SKU:          m["sku"],
		Lot:          m["lot"],
		ExpectedQty:  m["expected_qty"],
		CountedQty:   m["counted_qty"],
		IssueType:    m["issue_type"],
		ActualPallet: m["actual_pallet"],
		Note:         m["note"],
	}
}

// record normalizes a submission to the current schema: every current
// column is present (missing values are empty strings), anything else
// is dropped.
func (s Submission) record() []string {
	m := s.toMap()
	out := make([]string, len(SubmissionColumns))
	for i, col := range SubmissionColumns {
		out[i] = m[col]
	}
	return out
}

// SubmissionLog owns the append-only completed-count record. Assumed
// single-writer; the mutex only serializes handlers within this process.
type SubmissionLog struct {
	mu     sync.Mutex
	file   *utils.FileStore
	logger *logrus.Logger
}

func NewSubmissionLog(dir string, logger *logrus.Logger) *SubmissionLog {
	return &SubmissionLog{
		file:   utils.NewFileStore(dir, submissionsFileName),
		logger: logger,
	}
}

// EnsureSchema makes the log readable and appendable under the current
// schema. Absent file: created with the header. Header drift: rows are
// re-materialized under the current schema (previously-unmapped fields
// become empty strings) and the file is replaced atomically. A
// headerless or unparseable file is quarantined and replaced fresh.
func (l *SubmissionLog) EnsureSchema() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureSchemaLocked()
}

func (l *SubmissionLog) ensureSchemaLocked() error {
	data, exists, err := l.file.Read()
	if err != nil {
		return err
	}
	if !exists {
		return l.writeFresh(nil)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		quarantined, qErr := l.file.Quarantine()
		fields := logrus.Fields{
			"module": "submission",
			"path":   l.file.Path,
		}
		if qErr == nil {
			fields["quarantined"] = quarantined
		}
		l.logger.WithFields(fields).Warn("submission log headerless or unparseable; replaced with a fresh log")
		return l.writeFresh(nil)
	}

	header := rows[0]
	if equalColumns(header, SubmissionColumns) {
		return nil
	}

	// Header drift: re-key every existing row by its original header and
	// carry it into the current schema. Row count must not change.
	migrated := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		byCol := map[string]string{}
		for i, col := range header {
			if i < len(row) {
				byCol[col] = row[i]
			}
		}
		out := make([]string, len(SubmissionColumns))
		for i, col := range SubmissionColumns {
			out[i] = byCol[col]
		}
		migrated = append(migrated, out)
	}

	l.logger.WithFields(logrus.Fields{
		"module":     "submission",
		"path":       l.file.Path,
		"old_header": header,
		"rows":       len(migrated),
	}).Warn("submission log schema drift; migrating to current schema")

	return l.writeFresh(migrated)
}

// writeFresh replaces the log with a correctly-headed file holding rows.
// Atomic: the original is untouched until the rename.
func (l *SubmissionLog) writeFresh(rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(SubmissionColumns); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return l.file.ReplaceAtomic(buf.Bytes())
}

// Append normalizes row to the current schema and writes one line.
func (l *SubmissionLog) Append(row Submission) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureSchemaLocked(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.file.Path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row.record()); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// ReadAll returns every submission in append order.
func (l *SubmissionLog) ReadAll() ([]Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureSchemaLocked(); err != nil {
		return nil, err
	}

	data, _, err := l.file.Read()
	if err != nil {
		return nil, err
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	header := rows[0]
	out := make([]Submission, 0, len(rows)-1)
	for _, row := range rows[1:] {
		byCol := map[string]string{}
		for i, col := range header {
			if i < len(row) {
				byCol[col] = row[i]
			}
		}
		out = append(out, submissionFromMap(byCol))
	}
	return out, nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
