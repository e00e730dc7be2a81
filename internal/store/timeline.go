package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

const timelineSelect = `SELECT te.id, te.title, te.description, te.event_date, te.event_type,
	te.location, te.associated_member_id, te.image_url, te.created_by, te.created_at,
	te.updated_at, fm.first_name, fm.last_name
	FROM timeline_events te
	LEFT JOIN family_members fm ON te.associated_member_id = fm.id`

// ListTimeline returns every event, most recent first.
func (s *Store) ListTimeline(ctx context.Context) ([]model.TimelineEvent, error) {
	events := []model.TimelineEvent{}
	if err := selectAll(ctx, s.db, &events, timelineSelect+" ORDER BY te.event_date DESC"); err != nil {
		return nil, wrap("list timeline", err)
	}
	return events, nil
}

// ListTimelineRange returns events between start and end (inclusive ISO
// dates) in chronological order.
func (s *Store) ListTimelineRange(ctx context.Context, start, end string) ([]model.TimelineEvent, error) {
	events := []model.TimelineEvent{}
	q := timelineSelect + " WHERE te.event_date BETWEEN ? AND ? ORDER BY te.event_date ASC"
	if err := selectAll(ctx, s.db, &events, q, start, end); err != nil {
		return nil, wrap("list timeline range", err)
	}
	return events, nil
}

// ListTimelineByType returns events of one type, most recent first.
func (s *Store) ListTimelineByType(ctx context.Context, eventType string) ([]model.TimelineEvent, error) {
	events := []model.TimelineEvent{}
	q := timelineSelect + " WHERE te.event_type = ? ORDER BY te.event_date DESC"
	if err := selectAll(ctx, s.db, &events, q, eventType); err != nil {
		return nil, wrap("list timeline by type", err)
	}
	return events, nil
}

// GetTimelineEvent returns an event by id.
func (s *Store) GetTimelineEvent(ctx context.Context, id string) (*model.TimelineEvent, error) {
	var ev model.TimelineEvent
	if err := get(ctx, s.db, &ev, timelineSelect+" WHERE te.id = ?", id); err != nil {
		return nil, wrap("get timeline event", err)
	}
	return &ev, nil
}

// CreateTimelineEvent inserts an event.
func (s *Store) CreateTimelineEvent(ctx context.Context, in model.TimelineInput, createdBy string) (*model.TimelineEvent, error) {
	id := uuid.NewString()
	t := now()
	_, err := exec(ctx, s.db, `INSERT INTO timeline_events
		(id, title, description, event_date, event_type, location, associated_member_id,
		 image_url, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Description, in.EventDate, in.EventType, in.Location,
		in.AssociatedMemberID, in.ImageURL, createdBy, t, t)
	if err != nil {
		return nil, wrap("insert timeline event", err)
	}
	return s.GetTimelineEvent(ctx, id)
}

// UpdateTimelineEvent rewrites an event.
func (s *Store) UpdateTimelineEvent(ctx context.Context, id string, in model.TimelineInput) (*model.TimelineEvent, error) {
	res, err := exec(ctx, s.db, `UPDATE timeline_events
		SET title = ?, description = ?, event_date = ?, event_type = ?, location = ?,
		    associated_member_id = ?, image_url = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, in.Description, in.EventDate, in.EventType, in.Location,
		in.AssociatedMemberID, in.ImageURL, now(), id)
	if err != nil {
		return nil, wrap("update timeline event", err)
	}
	if err := requireRows("update timeline event", res); err != nil {
		return nil, err
	}
	return s.GetTimelineEvent(ctx, id)
}

// DeleteTimelineEvent removes an event.
func (s *Store) DeleteTimelineEvent(ctx context.Context, id string) error {
	res, err := exec(ctx, s.db, "DELETE FROM timeline_events WHERE id = ?", id)
	if err != nil {
		return wrap("delete timeline event", err)
	}
	return requireRows("delete timeline event", res)
}
