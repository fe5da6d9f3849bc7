package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"whatsdrip/internal/models"
	"whatsdrip/internal/testutil"
)

var stepColumns = []string{
	"id", "company_id", "template_id", "day_number", "sequence", "message_type", "message",
	"media_url", "file_name", "mime_type", "use_clock_time", "clock_hour", "clock_minute",
	"delay_after", "add_tags", "remove_tags", "status",
}

func TestTemplateRepository_GetActive(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT company_id, template_id, name, status, created_at, updated_at\\s+FROM followup_templates").
		WithArgs("0123", "welcome").
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "template_id", "name", "status", "created_at", "updated_at"}).
			AddRow("0123", "welcome", "Welcome Drip", "active", now, now))

	mock.ExpectQuery("FROM followup_steps").
		WithArgs("0123", "welcome").
		WillReturnRows(sqlmock.NewRows(stepColumns).
			AddRow(1, "0123", "welcome", 1, 1, "text", "Hi {first_name}", "", "", "", false, 0, 0,
				`{"value":1,"unit":"minute"}`, "{lead,day1}", "{}", "active").
			AddRow(2, "0123", "welcome", 2, 1, "image", "Morning!", "https://cdn/x.png", "", "image/png", true, 9, 0,
				"", "{}", "{lead}", "active"))

	repo := NewTemplateRepository(db)
	template, err := repo.GetActive(context.Background(), "0123", "welcome")

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, template.Name, "Welcome Drip")
	testutil.AssertEqual(t, template.Status, models.TemplateStatusActive)
	testutil.AssertEqual(t, len(template.Steps), 2)

	first := template.Steps[0]
	testutil.AssertEqual(t, first.DelayAfter, `{"value":1,"unit":"minute"}`)
	testutil.AssertEqual(t, len(first.AddTags), 2)
	testutil.AssertEqual(t, first.AddTags[1], "day1")
	testutil.AssertEqual(t, len(first.RemoveTags), 0)

	second := template.Steps[1]
	testutil.AssertEqual(t, second.UseClockTime, true)
	testutil.AssertEqual(t, second.ClockHour, 9)
	testutil.AssertEqual(t, second.ContentType, models.ContentImage)
	testutil.AssertEqual(t, second.RemoveTags[0], "lead")

	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepository_GetActive_NotFound(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectQuery("FROM followup_templates").
		WithArgs("0123", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "template_id", "name", "status", "created_at", "updated_at"}))

	repo := NewTemplateRepository(db)
	_, err := repo.GetActive(context.Background(), "0123", "missing")

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound but got %v", err)
	}
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepository_GetActive_StepQueryFails(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM followup_templates").
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "template_id", "name", "status", "created_at", "updated_at"}).
			AddRow("0123", "welcome", "Welcome Drip", "active", now, now))
	mock.ExpectQuery("FROM followup_steps").WillReturnError(errors.New("connection reset"))

	repo := NewTemplateRepository(db)
	_, err := repo.GetActive(context.Background(), "0123", "welcome")

	testutil.AssertContains(t, err.Error(), "connection reset")
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepository_ListActiveIDs(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT template_id\\s+FROM followup_templates").
		WithArgs("0123").
		WillReturnRows(sqlmock.NewRows([]string{"template_id"}).AddRow("onboarding").AddRow("welcome"))

	repo := NewTemplateRepository(db)
	ids, err := repo.ListActiveIDs(context.Background(), "0123")

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(ids), 2)
	testutil.AssertEqual(t, ids[0], "onboarding")
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}
