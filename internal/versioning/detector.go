// Package versioning detects new, updated and obsolete editions of source
// documents and tracks which edition of each document family is current.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/extract"
	"github.com/dgallion1/regingest/internal/keylock"
	"github.com/dgallion1/regingest/internal/store"
)

// Status is the outcome of comparing a document against its stored version.
type Status string

const (
	StatusNew       Status = "new"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusObsolete  Status = "obsolete"
)

// Change markers reported by Check.
const (
	ChangeContent     = "content_changed"
	ChangeVersionDate = "version_date_changed"
	ChangeYear        = "year_of_assessment_changed"
	ChangeOlderYear   = "older_year_of_assessment"
)

// DefaultStaleAfter is how long a current document may go without an
// update before Scan recommends reviewing it.
const DefaultStaleAfter = 365 * 24 * time.Hour

// Update is the result of Check.
type Update struct {
	Status   Status                 `json:"status"`
	Changes  []string               `json:"changes,omitempty"`
	Previous *store.DocumentVersion `json:"previous,omitempty"`
}

// Conflict is a family with more than one current edition.
type Conflict struct {
	Family string   `json:"family"`
	Files  []string `json:"files"`
	Reason string   `json:"reason"`
}

const reasonMultipleCurrent = "multiple_current_versions"

// Detector compares documents against the version store and registers new
// editions. It is safe for concurrent use.
type Detector struct {
	store      store.Versions
	locks      keylock.Locks
	log        *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewDetector returns a Detector over s. A non-positive staleAfter uses
// DefaultStaleAfter.
func NewDetector(s store.Versions, staleAfter time.Duration, log *slog.Logger) *Detector {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = slog.Default()
	}
	return &Detector{store: s, log: log, staleAfter: staleAfter, now: time.Now}
}

// Check classifies doc against the stored record for its filename. Obsolete
// replaces Updated only when both years of assessment are known and the new
// one is older.
func (d *Detector) Check(ctx context.Context, doc *doctree.Document, meta extract.Metadata) (Update, error) {
	prev, err := d.store.GetVersion(ctx, doc.Filename)
	if errors.Is(err, store.ErrNotFound) {
		return Update{Status: StatusNew}, nil
	}
	if err != nil {
		return Update{}, fmt.Errorf("get version %s: %w", doc.Filename, err)
	}

	if prev.ContentHash == doc.ContentHash() {
		return Update{Status: StatusUnchanged, Previous: &prev}, nil
	}

	changes := []string{ChangeContent}
	if diff := doc.ByteSize() - prev.FileSize; diff > 0 {
		changes = append(changes, fmt.Sprintf("size_increased_%d_bytes", diff))
	} else if diff < 0 {
		changes = append(changes, fmt.Sprintf("size_decreased_%d_bytes", -diff))
	}
	if meta.VersionDate() != prev.VersionDate {
		changes = append(changes, ChangeVersionDate)
	}
	year := yearString(meta)
	if year != prev.YearOfAssessment {
		changes = append(changes, ChangeYear)
	}

	if older(year, prev.YearOfAssessment) {
		return Update{Status: StatusObsolete, Changes: append(changes, ChangeOlderYear), Previous: &prev}, nil
	}
	return Update{Status: StatusUpdated, Changes: changes, Previous: &prev}, nil
}

// Register records doc as the current edition for its filename. The record
// it replaces is archived with IsCurrent=false. Supersedes is taken from
// the document's own supersedes marker, else the replaced filename. When
// the stored record already has doc's content hash it is returned as is,
// so re-running an unchanged file neither archives a copy nor undoes Retire.
func (d *Detector) Register(ctx context.Context, doc *doctree.Document, meta extract.Metadata, documentType string) (store.DocumentVersion, error) {
	unlock := d.locks.Lock(doc.Filename)
	defer unlock()

	v := store.DocumentVersion{
		Filename:         doc.Filename,
		Family:           Family(doc.Filename),
		ContentHash:      doc.ContentHash(),
		FileSize:         doc.ByteSize(),
		LastModified:     doc.ModTime,
		VersionDate:      meta.VersionDate(),
		YearOfAssessment: yearString(meta),
		DocumentType:     documentType,
		Supersedes:       meta.Supersedes,
		IsCurrent:        true,
		RegisteredAt:     d.now().UTC(),
	}
	if v.LastModified.IsZero() {
		v.LastModified = v.RegisteredAt
	}

	prev, err := d.store.GetVersion(ctx, doc.Filename)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return store.DocumentVersion{}, fmt.Errorf("get version %s: %w", doc.Filename, err)
	case prev.ContentHash == v.ContentHash:
		return prev, nil
	default:
		if v.Supersedes == "" {
			v.Supersedes = prev.Filename
		}
		prev.IsCurrent = false
		if err := d.store.ArchiveVersion(ctx, prev); err != nil {
			return store.DocumentVersion{}, fmt.Errorf("archive version %s: %w", doc.Filename, err)
		}
	}

	if err := d.store.PutVersion(ctx, v); err != nil {
		return store.DocumentVersion{}, fmt.Errorf("put version %s: %w", doc.Filename, err)
	}
	d.log.Debug("registered version", "file", v.Filename, "family", v.Family, "year", v.YearOfAssessment)
	return v, nil
}

// Retire marks filename as no longer current, resolving a conflict by hand.
func (d *Detector) Retire(ctx context.Context, filename string) error {
	unlock := d.locks.Lock(filename)
	defer unlock()

	v, err := d.store.GetVersion(ctx, filename)
	if err != nil {
		return fmt.Errorf("get version %s: %w", filename, err)
	}
	if !v.IsCurrent {
		return nil
	}
	v.IsCurrent = false
	if err := d.store.PutVersion(ctx, v); err != nil {
		return fmt.Errorf("put version %s: %w", filename, err)
	}
	return nil
}

// Conflicts lists families with more than one current record, ordered by
// family name.
func (d *Detector) Conflicts(ctx context.Context) ([]Conflict, error) {
	all, err := d.store.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	byFamily := map[string][]string{}
	for _, v := range all {
		if v.IsCurrent {
			fam := familyOf(v)
			byFamily[fam] = append(byFamily[fam], v.Filename)
		}
	}

	conflicts := []Conflict{}
	for fam, files := range byFamily {
		if len(files) < 2 {
			continue
		}
		slices.Sort(files)
		conflicts = append(conflicts, Conflict{Family: fam, Files: files, Reason: reasonMultipleCurrent})
	}
	slices.SortFunc(conflicts, func(a, b Conflict) int { return strings.Compare(a.Family, b.Family) })
	return conflicts, nil
}

// History returns every known edition in name's family, current and
// archived, newest first by version date then registration time.
func (d *Detector) History(ctx context.Context, name string) ([]store.DocumentVersion, error) {
	fam := Family(name)
	all, err := d.store.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	archived, err := d.store.ListArchived(ctx, fam)
	if err != nil {
		return nil, fmt.Errorf("list archived: %w", err)
	}

	var history []store.DocumentVersion
	for _, v := range all {
		if familyOf(v) == fam {
			history = append(history, v)
		}
	}
	history = append(history, archived...)
	slices.SortStableFunc(history, newestFirst)
	return history, nil
}

// Current returns the record for name when it is a registered filename,
// otherwise the newest current edition in its family.
func (d *Detector) Current(ctx context.Context, name string) (store.DocumentVersion, error) {
	v, err := d.store.GetVersion(ctx, name)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.DocumentVersion{}, fmt.Errorf("get version %s: %w", name, err)
	}

	history, err := d.History(ctx, name)
	if err != nil {
		return store.DocumentVersion{}, err
	}
	for _, h := range history {
		if h.IsCurrent {
			return h, nil
		}
	}
	return store.DocumentVersion{}, store.ErrNotFound
}

func familyOf(v store.DocumentVersion) string {
	if v.Family != "" {
		return v.Family
	}
	return Family(v.Filename)
}

func newestFirst(a, b store.DocumentVersion) int {
	ta, oka := ParseDate(a.VersionDate)
	tb, okb := ParseDate(b.VersionDate)
	switch {
	case oka && okb && !ta.Equal(tb):
		return tb.Compare(ta)
	case oka != okb:
		if oka {
			return -1
		}
		return 1
	}
	return b.RegisteredAt.Compare(a.RegisteredAt)
}

var dateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2-Jan-2006",
	"2 January, 2006",
}

// ParseDate parses the date formats found in version markers.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func yearString(meta extract.Metadata) string {
	y, ok := meta.LatestYear()
	if !ok {
		return ""
	}
	return strconv.Itoa(y)
}

// older reports whether year is strictly before stored; false unless both
// parse.
func older(year, stored string) bool {
	a, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	b, err := strconv.Atoi(stored)
	if err != nil {
		return false
	}
	return a < b
}
