package storage

import (
	"context"
	"database/sql"

	"github.com/fcamachol/chatflow/pkg/models"
)

// CreateTask inserts a rule-produced task and its EntityChange row
// atomically (spec §4.6 create_task).
func (g *Gateway) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	const op = "storage.CreateTask"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	meta := map[string]any{
		"source":     t.SourceMetadata.Source,
		"emoji":      t.SourceMetadata.Emoji,
		"rule_id":    t.SourceMetadata.RuleID,
		"message_id": t.SourceMetadata.MessageID,
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO tasks (task_id, space_id, title, description, priority, due_date,
		                    tags, assignee, status, source_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING task_id, space_id, title, description, priority, due_date, tags,
		          assignee, status, created_at`,
		t.TaskID, t.SpaceID, t.Title, t.Description, orDefault(t.Priority, "medium"), t.DueDate,
		t.Tags, t.Assignee, orDefault(t.Status, "open"), toJSONB(meta))

	var out models.Task
	if err := row.Scan(&out.TaskID, &out.SpaceID, &out.Title, &out.Description,
		&out.Priority, &out.DueDate, &out.Tags, &out.Assignee, &out.Status,
		&out.CreatedAt); err != nil {
		return nil, classify(op, err)
	}
	out.SourceMetadata = t.SourceMetadata

	if err := appendChange(ctx, tx, changeInput{
		TableName: "tasks", Operation: models.OpInsert, EntityID: out.TaskID,
		EntityType: "task", NewData: out, Metadata: meta,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// UpdateTaskStatus advances a task's status (spec §4.6 update_task_status —
// requires an existing MessageTaskLink(trigger), enforced by the caller).
func (g *Gateway) UpdateTaskStatus(ctx context.Context, taskID, newStatus string) error {
	const op = "storage.UpdateTaskStatus"
	res, err := g.db.ExecContext(ctx, `UPDATE tasks SET status = $2 WHERE task_id = $1`, taskID, newStatus)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return classify(op, sql.ErrNoRows)
	}
	return nil
}

// CreateCalendarEvent inserts a rule-produced calendar event (spec §4.6
// create_calendar_event).
func (g *Gateway) CreateCalendarEvent(ctx context.Context, e models.CalendarEvent) (*models.CalendarEvent, error) {
	const op = "storage.CreateCalendarEvent"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		INSERT INTO calendar_events (event_id, space_id, title, start_time, end_time,
		                              location, conference_url, attendees, recurrence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING event_id, space_id, title, start_time, end_time, location,
		          conference_url, attendees, recurrence, created_at`,
		e.EventID, e.SpaceID, e.Title, e.StartTime, e.EndTime, e.Location,
		e.ConferenceURL, e.Attendees, e.Recurrence)

	var out models.CalendarEvent
	if err := row.Scan(&out.EventID, &out.SpaceID, &out.Title, &out.StartTime, &out.EndTime,
		&out.Location, &out.ConferenceURL, &out.Attendees, &out.Recurrence,
		&out.CreatedAt); err != nil {
		return nil, classify(op, err)
	}

	if err := appendChange(ctx, tx, changeInput{
		TableName: "calendar_events", Operation: models.OpInsert, EntityID: out.EventID,
		EntityType: "calendar_event", NewData: out,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// CreateBill inserts one rule-produced bill row; the multi-bill branch in
// pkg/action calls this once per vendor+amount pair (spec §4.6 create_bill).
func (g *Gateway) CreateBill(ctx context.Context, b models.Bill) (*models.Bill, error) {
	const op = "storage.CreateBill"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		INSERT INTO bills (bill_id, space_id, vendor, amount, currency, due_date, category,
		                    is_recurring, recurrence_type, recurrence_interval,
		                    recurrence_end_date, next_due_date, auto_pay_enabled, priority,
		                    tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		RETURNING bill_id, space_id, vendor, amount, currency, due_date, category,
		          is_recurring, recurrence_type, recurrence_interval, recurrence_end_date,
		          next_due_date, auto_pay_enabled, priority, tags, created_at`,
		b.BillID, b.SpaceID, b.Vendor, b.Amount, b.Currency, b.DueDate, b.Category,
		b.IsRecurring, b.RecurrenceType, b.RecurrenceInterval, b.RecurrenceEndDate,
		b.NextDueDate, b.AutoPayEnabled, orDefault(b.Priority, "medium"), b.Tags)

	var out models.Bill
	if err := row.Scan(&out.BillID, &out.SpaceID, &out.Vendor, &out.Amount, &out.Currency,
		&out.DueDate, &out.Category, &out.IsRecurring, &out.RecurrenceType,
		&out.RecurrenceInterval, &out.RecurrenceEndDate, &out.NextDueDate,
		&out.AutoPayEnabled, &out.Priority, &out.Tags, &out.CreatedAt); err != nil {
		return nil, classify(op, err)
	}

	if err := appendChange(ctx, tx, changeInput{
		TableName: "bills", Operation: models.OpInsert, EntityID: out.BillID,
		EntityType: "bill", NewData: out,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// CreateNote inserts a rule-produced note (spec §4.6 create_note).
func (g *Gateway) CreateNote(ctx context.Context, n models.Note) (*models.Note, error) {
	const op = "storage.CreateNote"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		INSERT INTO notes (note_id, space_id, title, content, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING note_id, space_id, title, content, tags, created_at`,
		n.NoteID, n.SpaceID, n.Title, n.Content, n.Tags)

	var out models.Note
	if err := row.Scan(&out.NoteID, &out.SpaceID, &out.Title, &out.Content,
		&out.Tags, &out.CreatedAt); err != nil {
		return nil, classify(op, err)
	}

	if err := appendChange(ctx, tx, changeInput{
		TableName: "notes", Operation: models.OpInsert, EntityID: out.NoteID,
		EntityType: "note", NewData: out,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
