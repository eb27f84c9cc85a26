package models

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/cyclecount_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	AssignmentStatusAssigned  = "assigned"
	AssignmentStatusCompleted = "completed"
)

const DefaultLockMinutes = 20

const assignmentsFileName = "assignments.json"

// Assignment is one supervisor-issued count task bound to a pallet and
// location. Records are never deleted; completion only flips the status.
type Assignment struct {
	ID          string    `json:"id"`
	Assignee    string    `json:"assignee"`
	PalletID    string    `json:"pallet_id"`
	Location    string    `json:"location"`
	ExpectedQty int       `json:"expected_qty"`
	SKU         string    `json:"sku"`
	Lot         string    `json:"lot"`
	CreatedAt   time.Time `json:"created_at"`
	LockedUntil time.Time `json:"locked_until"`
	Status      string    `json:"status"`
	Holder      string    `json:"holder,omitempty"`
}

// AssignmentStore owns the assignment table. All access goes through the
// store; the in-memory slice is mirrored to disk as an ordered JSON array
// on every mutation (full rewrite, not crash-atomic — a truncated file is
// quarantined on the next load).
type AssignmentStore struct {
	mu      sync.Mutex
	records []*Assignment
	byID    map[string]*Assignment
	file    *utils.FileStore
	logger  *logrus.Logger
	lockTTL time.Duration
	enforce bool
	nowFn   func() time.Time
}

// NewAssignmentStore loads the persisted table from dir. An absent file
// starts the store empty; an unparseable file is quarantined and logged,
// then the store starts empty.
func NewAssignmentStore(dir string, lockMinutes int, enforceClaims bool, logger *logrus.Logger) *AssignmentStore {
	if lockMinutes <= 0 {
		lockMinutes = DefaultLockMinutes
	}
	s := &AssignmentStore{
		byID:    map[string]*Assignment{},
		file:    utils.NewFileStore(dir, assignmentsFileName),
		logger:  logger,
		lockTTL: time.Duration(lockMinutes) * time.Minute,
		enforce: enforceClaims,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	s.load()
	return s
}

func (s *AssignmentStore) load() {
	data, exists, err := s.file.Read()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "assignment",
			"path":   s.file.Path,
		}).Warn("could not read assignment table; starting empty: " + err.Error())
		return
	}
	if !exists {
		return
	}

	var records []*Assignment
	if err := utils.UnmarshalJSON(data, &records); err != nil {
		quarantined, qErr := s.file.Quarantine()
		fields := logrus.Fields{
			"module": "assignment",
			"path":   s.file.Path,
		}
		if qErr == nil {
			fields["quarantined"] = quarantined
		}
		s.logger.WithFields(fields).Warn("assignment table unparseable; quarantined and reset: " + err.Error())
		return
	}

	s.records = records
	for _, a := range records {
		s.byID[a.ID] = a
	}
}

// persist must be called with s.mu held.
func (s *AssignmentStore) persist() error {
	data, err := utils.MarshalJSONIndent(s.records)
	if err != nil {
		return err
	}
	return s.file.Write(data)
}

// Create validates, generates a unique id and persists the full table
// before returning. The uuid suffix keeps ids unique even for identical
// arguments within the same second.
func (s *AssignmentStore) Create(assignee, palletID, location string, expectedQty int) (string, error) {
	assignee = strings.TrimSpace(assignee)
	palletID = strings.TrimSpace(palletID)
	location = strings.TrimSpace(location)

	if assignee == "" {
		return "", utils.NewValidationError("assignee", "is required")
	}
	if palletID == "" {
		return "", utils.NewValidationError("pallet_id", "is required")
	}
	if location == "" {
		return "", utils.NewValidationError("location", "is required")
	}
	if expectedQty < 0 {
		return "", utils.NewValidationError("expected_qty", "must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	id := fmt.Sprintf("%s-%s-%d-%s", assignee, palletID, now.Unix(), uuid.NewString()[:8])
	a := &Assignment{
		ID:          id,
		Assignee:    assignee,
		PalletID:    palletID,
		Location:    location,
		ExpectedQty: expectedQty,
		CreatedAt:   now,
		LockedUntil: now.Add(s.lockTTL),
		Status:      AssignmentStatusAssigned,
	}
	s.records = append(s.records, a)
	s.byID[id] = a

	if err := s.persist(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *AssignmentStore) Get(id string) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return Assignment{}, utils.ErrorRecordNotFound
	}
	return *a, nil
}

// ListActiveForUser returns the user's still-assigned records in
// insertion order.
func (s *AssignmentStore) ListActiveForUser(user string) []Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Assignment
	for _, a := range s.records {
		if a.Assignee == user && a.Status == AssignmentStatusAssigned {
			out = append(out, *a)
		}
	}
	return out
}

// IsLocked reports whether the display TTL is still running. It is shown
// to counters but never gates a submission.
func (s *AssignmentStore) IsLocked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	return ok && s.nowFn().Before(a.LockedUntil)
}

// TryClaim is a compare-and-set on the holder field. It succeeds iff the
// assignment is still assigned and unheld (or held by the same holder).
func (s *AssignmentStore) TryClaim(id, holder string) (bool, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return false, utils.NewValidationError("holder", "is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false, utils.ErrorRecordNotFound
	}
	if a.Status != AssignmentStatusAssigned {
		return false, nil
	}
	if a.Holder != "" && a.Holder != holder {
		return false, nil
	}
	a.Holder = holder

	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// Complete marks the assignment completed and persists immediately.
// Completing an unknown id is a no-op (logged, not an error) and
// completing twice is idempotent. When claim enforcement is on, holder
// must match the current claim.
func (s *AssignmentStore) Complete(id, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"module":        "assignment",
			"assignment_id": id,
		}).Warn("complete called for unknown assignment id; ignoring")
		return nil
	}
	if s.enforce && a.Holder != "" && a.Holder != strings.TrimSpace(holder) {
		return utils.NewValidationError("holder", "assignment is claimed by another counter")
	}
	if a.Status == AssignmentStatusCompleted {
		return nil
	}
	a.Status = AssignmentStatusCompleted

	return s.persist()
}
