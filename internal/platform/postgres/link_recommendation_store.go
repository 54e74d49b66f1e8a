package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// recommendationPayload is the JSON document stored in the data column.
type recommendationPayload struct {
	Links []domain.LinkRecommendationLink `json:"links"`
	Meta  domain.LinkRecommendationMeta   `json:"meta"`
}

// PostgresLinkRecommendationStore implements store.LinkRecommendationStore
// using a PostgreSQL database as the storage backend. Reads go to the
// replica unless the caller passes store.ReadLatest; writes always go to
// the primary.
type PostgresLinkRecommendationStore struct {
	primary  store.DBTX
	replica  store.DBTX
	pages    wiki.PageStore
	resolver wiki.TitleResolver
	logger   *slog.Logger
}

// NewPostgresLinkRecommendationStore creates a new PostgreSQL implementation
// of the LinkRecommendationStore interface. replica may equal primary when
// no replica is configured. If logger is nil, a default logger will be used.
func NewPostgresLinkRecommendationStore(
	primary, replica store.DBTX,
	pages wiki.PageStore,
	resolver wiki.TitleResolver,
	log *slog.Logger,
) *PostgresLinkRecommendationStore {
	if primary == nil {
		panic("primary db cannot be nil")
	}
	if replica == nil {
		replica = primary
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresLinkRecommendationStore{
		primary:  primary,
		replica:  replica,
		pages:    pages,
		resolver: resolver,
		logger:   log.With(slog.String("component", "link_recommendation_store")),
	}
}

// Ensure PostgresLinkRecommendationStore implements the store interface
var _ store.LinkRecommendationStore = (*PostgresLinkRecommendationStore)(nil)

// db selects the connection a read is served from.
func (s *PostgresLinkRecommendationStore) db(flags store.ReadFlags) store.DBTX {
	if flags == store.ReadLatest {
		return s.primary
	}
	return s.replica
}

// GetByRevID implements store.LinkRecommendationStore.GetByRevID.
func (s *PostgresLinkRecommendationStore) GetByRevID(
	ctx context.Context,
	flags store.ReadFlags,
	revID int64,
) (*domain.LinkRecommendation, error) {
	query := `
		SELECT page_id, revision_id, data
		FROM link_recommendations
		WHERE revision_id = $1
	`
	return s.scanOne(s.db(flags).QueryRowContext(ctx, query, revID))
}

// GetByPageID implements store.LinkRecommendationStore.GetByPageID.
// When several revisions of the page carry recommendations, the newest wins.
func (s *PostgresLinkRecommendationStore) GetByPageID(
	ctx context.Context,
	flags store.ReadFlags,
	pageID int64,
) (*domain.LinkRecommendation, error) {
	query := `
		SELECT page_id, revision_id, data
		FROM link_recommendations
		WHERE page_id = $1
		ORDER BY revision_id DESC
		LIMIT 1
	`
	return s.scanOne(s.db(flags).QueryRowContext(ctx, query, pageID))
}

// GetByLinkTarget implements store.LinkRecommendationStore.GetByLinkTarget.
func (s *PostgresLinkRecommendationStore) GetByLinkTarget(
	ctx context.Context,
	flags store.ReadFlags,
	title string,
	allowOldRevision bool,
) (*domain.LinkRecommendation, error) {
	page, err := s.pages.GetPageByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", store.ErrPageNotFound, title)
	}

	rec, err := s.GetByPageID(ctx, flags, page.ID)
	if err != nil {
		return nil, err
	}

	if !allowOldRevision && rec.RevisionID != page.LatestRevID {
		// A recommendation for a superseded revision is invalid for
		// display; it lingers in storage until explicitly deleted.
		return nil, store.ErrRecommendationNotFound
	}

	return rec, nil
}

// ListAll implements store.LinkRecommendationStore.ListAll.
func (s *PostgresLinkRecommendationStore) ListAll(
	ctx context.Context,
	limit int,
	fromPageID *int64,
) ([]*domain.LinkRecommendation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 100
	}
	from := int64(0)
	if fromPageID != nil {
		from = *fromPageID
	}

	query := `
		SELECT page_id, revision_id, data
		FROM link_recommendations
		WHERE page_id > $1
		ORDER BY page_id ASC
		LIMIT $2
	`

	rows, err := s.db(store.ReadNormal).QueryContext(ctx, query, from, limit)
	if err != nil {
		log.Error("failed to list link recommendations",
			slog.Int64("from_page_id", from),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var recs []*domain.LinkRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if fromPageID != nil {
		if len(recs) < limit {
			*fromPageID = store.ListExhausted
		} else {
			*fromPageID = recs[len(recs)-1].PageID
		}
	}

	return recs, nil
}

// FilterPageIDs implements store.LinkRecommendationStore.FilterPageIDs.
// The >= freshness comparison tolerates replication lag; see the interface
// contract.
func (s *PostgresLinkRecommendationStore) FilterPageIDs(
	ctx context.Context,
	pageIDs []int64,
) ([]int64, error) {
	if len(pageIDs) == 0 {
		return nil, nil
	}

	placeholders, args := int64Placeholders(pageIDs)
	query := fmt.Sprintf(`
		SELECT page_id, MAX(revision_id)
		FROM link_recommendations
		WHERE page_id IN (%s)
		GROUP BY page_id
	`, placeholders)

	rows, err := s.db(store.ReadNormal).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	storedRevs := make(map[int64]int64)
	for rows.Next() {
		var pageID, revID int64
		if err := rows.Scan(&pageID, &revID); err != nil {
			return nil, err
		}
		storedRevs[pageID] = revID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	latest, err := s.pages.GetLatestRevisions(ctx, pageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest revisions: %w", err)
	}

	var fresh []int64
	for _, pageID := range pageIDs {
		storedRev, ok := storedRevs[pageID]
		if !ok {
			continue
		}
		latestRev, ok := latest[pageID]
		if !ok {
			continue
		}
		if storedRev >= latestRev {
			fresh = append(fresh, pageID)
		}
	}

	return fresh, nil
}

// Insert implements store.LinkRecommendationStore.Insert.
// Idempotent per (page, revision): rows are keyed on revision_id and a
// repeated insert replaces the earlier payload.
func (s *PostgresLinkRecommendationStore) Insert(
	ctx context.Context,
	rec *domain.LinkRecommendation,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rec.Validate(); err != nil {
		log.Warn("link recommendation validation failed during insert",
			slog.String("error", err.Error()),
			slog.Int64("page_id", rec.PageID),
			slog.Int64("revision_id", rec.RevisionID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	data, err := json.Marshal(recommendationPayload{Links: rec.Links, Meta: rec.Meta})
	if err != nil {
		return fmt.Errorf("failed to serialize recommendation payload: %w", err)
	}

	query := `
		INSERT INTO link_recommendations (page_id, revision_id, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (revision_id)
		DO UPDATE SET page_id = EXCLUDED.page_id, data = EXCLUDED.data
	`

	if _, err := s.primary.ExecContext(ctx, query,
		rec.PageID, rec.RevisionID, data, time.Now().UTC(),
	); err != nil {
		log.Error("failed to insert link recommendation",
			slog.Int64("page_id", rec.PageID),
			slog.Int64("revision_id", rec.RevisionID),
			slog.String("error", err.Error()))
		return mapWriteError(err, "link_recommendation", "insert")
	}

	log.Info("link recommendation stored",
		slog.Int64("page_id", rec.PageID),
		slog.Int64("revision_id", rec.RevisionID),
		slog.Int("link_count", len(rec.Links)))
	return nil
}

// DeleteByPageIDs implements store.LinkRecommendationStore.DeleteByPageIDs.
func (s *PostgresLinkRecommendationStore) DeleteByPageIDs(
	ctx context.Context,
	pageIDs []int64,
) (int64, error) {
	if len(pageIDs) == 0 {
		return 0, nil
	}

	placeholders, args := int64Placeholders(pageIDs)
	query := fmt.Sprintf(`DELETE FROM link_recommendations WHERE page_id IN (%s)`, placeholders)

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapWriteError(err, "link_recommendation", "delete")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// DeleteByLinkTarget implements store.LinkRecommendationStore.DeleteByLinkTarget.
func (s *PostgresLinkRecommendationStore) DeleteByLinkTarget(
	ctx context.Context,
	title string,
) (int64, error) {
	page, err := s.pages.GetPageByTitle(ctx, title)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", store.ErrPageNotFound, title)
	}
	return s.DeleteByPageIDs(ctx, []int64{page.ID})
}

// GetExcludedLinkIDs implements store.LinkRecommendationStore.GetExcludedLinkIDs.
func (s *PostgresLinkRecommendationStore) GetExcludedLinkIDs(
	ctx context.Context,
	pageID int64,
	limit int,
) ([]int64, error) {
	query := `
		SELECT target_id
		FROM link_submissions
		WHERE page_id = $1 AND feedback = $2
		GROUP BY target_id
		HAVING COUNT(*) >= $3
	`

	rows, err := s.db(store.ReadNormal).QueryContext(ctx, query,
		pageID, string(domain.FeedbackRejected), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var excluded []int64
	for rows.Next() {
		var targetID int64
		if err := rows.Scan(&targetID); err != nil {
			return nil, err
		}
		excluded = append(excluded, targetID)
	}
	return excluded, rows.Err()
}

// RecordSubmission implements store.LinkRecommendationStore.RecordSubmission.
// One row is appended per decided target. Target IDs that no longer resolve
// to a link of rec are logged and dropped; the rest of the batch is written.
func (s *PostgresLinkRecommendationStore) RecordSubmission(
	ctx context.Context,
	userID int64,
	rec *domain.LinkRecommendation,
	accepted, rejected, skipped []int64,
	editRevID *int64,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	allIDs := make([]int64, 0, len(accepted)+len(rejected)+len(skipped))
	allIDs = append(allIDs, accepted...)
	allIDs = append(allIDs, rejected...)
	allIDs = append(allIDs, skipped...)
	if len(allIDs) == 0 {
		return nil
	}

	// One batch round-trip resolves every target ID back to its canonical
	// title, which is the key the stored links are matched on.
	titlesByID, err := s.resolver.ResolvePageIDs(ctx, allIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve submission targets: %w", err)
	}

	now := time.Now().UTC()
	var submissions []*domain.Submission

	appendBatch := func(targetIDs []int64, feedback domain.SubmissionFeedback) {
		for _, targetID := range targetIDs {
			title, ok := titlesByID[targetID]
			var link *domain.LinkRecommendationLink
			if ok {
				link = rec.LinkByTarget(title)
			}
			if link == nil {
				// The target moved or was deleted between UI load and
				// submit. Dropping just this target keeps the rest of
				// the user's decision intact.
				log.Warn("submission target no longer resolves to a recommended link",
					slog.Int64("target_id", targetID),
					slog.Int64("page_id", rec.PageID),
					slog.Int64("revision_id", rec.RevisionID))
				continue
			}
			submissions = append(submissions, &domain.Submission{
				PageID:         rec.PageID,
				RevisionID:     rec.RevisionID,
				EditRevisionID: editRevID,
				UserID:         userID,
				TargetID:       targetID,
				Feedback:       feedback,
				AnchorOffset:   link.WikitextOffset,
				AnchorLength:   len(link.Text),
				CreatedAt:      now,
			})
		}
	}

	appendBatch(accepted, domain.FeedbackAccepted)
	appendBatch(rejected, domain.FeedbackRejected)
	appendBatch(skipped, domain.FeedbackSkipped)

	if len(submissions) == 0 {
		log.Warn("no submission target resolved; nothing recorded",
			slog.Int64("page_id", rec.PageID),
			slog.Int64("revision_id", rec.RevisionID))
		return nil
	}

	for _, sub := range submissions {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}

	values := make([]string, 0, len(submissions))
	args := make([]any, 0, len(submissions)*9)
	for i, sub := range submissions {
		base := i * 9
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		var editRev sql.NullInt64
		if sub.EditRevisionID != nil {
			editRev = sql.NullInt64{Int64: *sub.EditRevisionID, Valid: true}
		}
		args = append(args,
			sub.PageID, sub.RevisionID, editRev, sub.UserID, sub.TargetID,
			string(sub.Feedback), sub.AnchorOffset, sub.AnchorLength, sub.CreatedAt)
	}

	query := `
		INSERT INTO link_submissions
			(page_id, revision_id, edit_revision_id, user_id, target_id,
			 feedback, anchor_offset, anchor_length, created_at)
		VALUES ` + strings.Join(values, ", ")

	if _, err := s.primary.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to record submission batch",
			slog.Int64("page_id", rec.PageID),
			slog.Int64("revision_id", rec.RevisionID),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		return mapWriteError(err, "link_submission", "insert")
	}

	log.Info("submission recorded",
		slog.Int64("page_id", rec.PageID),
		slog.Int64("revision_id", rec.RevisionID),
		slog.Int64("user_id", userID),
		slog.Int("row_count", len(submissions)))
	return nil
}

// HasSubmission implements store.LinkRecommendationStore.HasSubmission.
func (s *PostgresLinkRecommendationStore) HasSubmission(
	ctx context.Context,
	rec *domain.LinkRecommendation,
	flags store.ReadFlags,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM link_submissions WHERE revision_id = $1
		)
	`

	var exists bool
	if err := s.db(flags).QueryRowContext(ctx, query, rec.RevisionID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CountSubmissionsSince implements store.LinkRecommendationStore.CountSubmissionsSince.
// Batches are counted by distinct recommendation revision, so one decision
// covering several links counts once.
func (s *PostgresLinkRecommendationStore) CountSubmissionsSince(
	ctx context.Context,
	userID int64,
	since time.Time,
) (int, error) {
	query := `
		SELECT COUNT(DISTINCT revision_id)
		FROM link_submissions
		WHERE user_id = $1 AND created_at >= $2
	`

	var count int
	if err := s.db(store.ReadLatest).QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// scanOne decodes a single-row recommendation query.
func (s *PostgresLinkRecommendationStore) scanOne(row *sql.Row) (*domain.LinkRecommendation, error) {
	rec, err := scanRecommendation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecommendationNotFound
		}
		return nil, err
	}
	return rec, nil
}

// scanRecommendation decodes one recommendation row via the given scan
// function. An undecodable payload is a persistence bug and surfaces as
// store.ErrDataCorrupted.
func scanRecommendation(scan func(dest ...any) error) (*domain.LinkRecommendation, error) {
	var pageID, revID int64
	var data []byte

	if err := scan(&pageID, &revID, &data); err != nil {
		return nil, err
	}

	var payload recommendationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: revision %d: %v", store.ErrDataCorrupted, revID, err)
	}

	return &domain.LinkRecommendation{
		PageID:     pageID,
		RevisionID: revID,
		Links:      payload.Links,
		Meta:       payload.Meta,
	}, nil
}

// int64Placeholders renders $1..$n placeholders and the matching args for
// an IN clause.
func int64Placeholders(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}
