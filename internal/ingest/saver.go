package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scoring"
	"github.com/google/uuid"
)

var (
	ErrEmptyRecord   = errors.New("empty record")
	ErrTitleTooShort = errors.New("no title longer than 10 characters")
)

// OpportunityStore is the persistence the Saver needs. FindByExternalID
// returns models.ErrNotFound when no row matches; InsertOpportunity returns
// models.ErrDuplicate when the (source_name, external_id) key already exists.
type OpportunityStore interface {
	FindByExternalID(ctx context.Context, sourceName, externalID string) (*models.Opportunity, error)
	InsertOpportunity(ctx context.Context, opp *models.Opportunity) error
	UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error
}

type SaverOptions struct {
	Profile   scoring.Profile
	Extractor ExtractorConfig
	Logger    *slog.Logger
	Now       Clock
}

// Saver normalizes, scores and upserts raw records for one source at a time.
type Saver struct {
	store   OpportunityStore
	engine  *scoring.Engine
	profile scoring.Profile
	extCfg  ExtractorConfig
	logger  *slog.Logger
	now     Clock
}

func NewSaver(store OpportunityStore, engine *scoring.Engine, opts SaverOptions) *Saver {
	s := &Saver{
		store:   store,
		engine:  engine,
		profile: opts.Profile,
		extCfg:  opts.Extractor,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.extCfg.Now == nil {
		s.extCfg.Now = func() time.Time { return s.now() }
	}
	return s
}

// normalized is one record after extraction, before persistence.
type normalized struct {
	opp             models.Opportunity
	postedDefaulted bool
}

// Save processes records in order. Per-record failures are counted and the
// loop continues; the returned error is non-nil only when the batch had to
// stop (context done or store unavailable).
func (s *Saver) Save(ctx context.Context, src SourceConfig, records []RawRecord) (SaveResult, error) {
	var res SaveResult
	ext := s.extractorFor(src)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("batch interrupted after %d records: %w", res.Processed, err)
		}
		res.Processed++

		outcome, err := s.saveOne(ctx, src, ext, rec)
		if err != nil {
			res.fail(fmt.Sprintf("record %d: %v", i, err))
			if isFatal(err) {
				return res, err
			}
			s.logger.Warn("record failed", "source", src.Name, "index", i, "error", err)
			continue
		}

		switch outcome {
		case outcomeAdded:
			res.Added++
		case outcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}

	return res, nil
}

func isFatal(err error) bool {
	return errors.Is(err, models.ErrStoreUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Saver) extractorFor(src SourceConfig) *Extractor {
	cfg := s.extCfg
	cfg.Overrides = src.Fields
	return NewExtractor(cfg)
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeAdded
	outcomeUpdated
)

func (s *Saver) saveOne(ctx context.Context, src SourceConfig, ext *Extractor, rec RawRecord) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalize panic: %v", r)
		}
	}()

	n, err := s.normalize(src, ext, rec)
	if err != nil {
		return outcomeUnchanged, err
	}
	now := s.now().UTC()

	existing, err := s.store.FindByExternalID(ctx, n.opp.SourceName, n.opp.ExternalID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		n.opp.ID = uuid.New()
		n.opp.CreatedAt = now
		n.opp.UpdatedAt = now
		s.score(&n)

		err = s.store.InsertOpportunity(ctx, &n.opp)
		if err == nil {
			return outcomeAdded, nil
		}
		if !errors.Is(err, models.ErrDuplicate) {
			return outcomeUnchanged, fmt.Errorf("insert %s: %w", n.opp.ExternalID, err)
		}
		// another sync inserted the same key first; fall through to the update path
		existing, err = s.store.FindByExternalID(ctx, n.opp.SourceName, n.opp.ExternalID)
		if err != nil {
			return outcomeUnchanged, fmt.Errorf("reload %s after conflict: %w", n.opp.ExternalID, err)
		}
	case err != nil:
		return outcomeUnchanged, fmt.Errorf("lookup %s: %w", n.opp.ExternalID, err)
	}

	if !trackedFieldsDiffer(existing, &n.opp) {
		return outcomeUnchanged, nil
	}

	n.opp.ID = existing.ID
	n.opp.CreatedAt = existing.CreatedAt
	n.opp.UpdatedAt = now
	if n.postedDefaulted && existing.PostedDate != nil {
		n.opp.PostedDate = existing.PostedDate
	}
	s.score(&n)

	if err := s.store.UpdateOpportunity(ctx, &n.opp); err != nil {
		return outcomeUnchanged, fmt.Errorf("update %s: %w", n.opp.ExternalID, err)
	}
	return outcomeUpdated, nil
}

func (s *Saver) score(n *normalized) {
	s.engine.Score(scoring.FromOpportunity(n.opp), s.profile).Apply(&n.opp)
}

func (s *Saver) normalize(src SourceConfig, ext *Extractor, rec RawRecord) (normalized, error) {
	if len(rec) == 0 {
		return normalized{}, ErrEmptyRecord
	}

	title := ext.Title(rec)
	if !title.OK && !src.AllowPlaceholderTitle {
		return normalized{}, ErrTitleTooShort
	}

	desc := ext.fullDescription(rec)
	opp := models.Opportunity{
		SourceName:   src.Name,
		SourceType:   src.Type,
		Title:        title.Value,
		Description:  TruncateText(desc.Value, descriptionMaxLen),
		AgencyName:   ext.Agency(rec, src).Value,
		Location:     ext.Location(rec).Value,
		ContactInfo:  ext.Contact(rec).Value,
		ContactEmail: ext.ContactEmail(rec).Value,
		Category:     ext.Category(rec).Value,
		SetAside:     ext.SetAside(rec).Value,
		SourceURL:    ext.SourceURL(rec).Value,
	}
	opp.FullDescription = fullText(desc.Value)

	if id := ext.ExternalID(rec); id.OK {
		opp.ExternalID = id.Value
	} else {
		opp.ExternalID = StableHash(rec)
	}

	if v := ext.Value(rec); v.OK {
		val := v.Value
		opp.EstimatedValue = &val
	}
	if d := ext.DueDate(rec); d.OK {
		due := d.Value
		opp.DueDate = &due
	}
	posted := ext.PostedDate(rec)
	if !posted.Value.IsZero() {
		p := posted.Value
		opp.PostedDate = &p
	}

	opp.Status = deriveStatus(ext.Status(rec).Value, opp.DueDate, src.Type, ext.Today())

	return normalized{
		opp:             opp,
		postedDefaulted: !posted.OK,
	}, nil
}

// fullText is the value persisted in full_description: empty when the
// truncated description already holds all of it.
func fullText(desc string) string {
	desc = TruncateText(desc, fullDescriptionMaxLen)
	if desc == TruncateText(desc, descriptionMaxLen) {
		return ""
	}
	return desc
}

// StableHash derives an external id from the record contents for sources
// without a natural key. encoding/json sorts map keys, so equal records hash
// equally.
func StableHash(rec RawRecord) string {
	data, err := json.Marshal(rec)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", map[string]any(rec)))
	}
	sum := sha256.Sum256(data)
	return "hash:" + hex.EncodeToString(sum[:16])
}

func trackedFieldsDiffer(old, cur *models.Opportunity) bool {
	return old.Title != cur.Title ||
		old.Description != cur.Description ||
		old.FullDescription != cur.FullDescription ||
		!sameDate(old.DueDate, cur.DueDate) ||
		!sameAmount(old.EstimatedValue, cur.EstimatedValue) ||
		old.Status != cur.Status ||
		old.ContactEmail != cur.ContactEmail ||
		old.SourceURL != cur.SourceURL
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameAmount(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) < 0.005
}
