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

var effectColumns = []string{
	"id", "company_id", "contact_id", "template_id", "action", "tags", "fire_at",
	"status", "retry_count", "last_error", "created_at", "updated_at",
}

func TestTagEffectRepository_Create(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	fireAt := time.Date(2024, 1, 1, 10, 0, 55, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery("INSERT INTO tag_effects").
		WithArgs("eff-1", "0123", "0123-601111", "welcome", models.TagActionAdd, sqlmock.AnyArg(), fireAt, models.TagEffectPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	repo := NewTagEffectRepository(db)
	effect := &models.TagEffect{
		ID:         "eff-1",
		CompanyID:  "0123",
		ContactID:  "0123-601111",
		TemplateID: "welcome",
		Action:     models.TagActionAdd,
		Tags:       []string{"lead"},
		FireAt:     fireAt,
		Status:     models.TagEffectPending,
	}

	testutil.AssertNoError(t, repo.Create(context.Background(), effect))
	testutil.AssertEqual(t, effect.CreatedAt, now)
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_GetByID(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, company_id, contact_id").
		WithArgs("eff-1").
		WillReturnRows(sqlmock.NewRows(effectColumns).
			AddRow("eff-1", "0123", "0123-601111", "welcome", "remove", "{lead,cold}", now, "queued", 1, "timeout", now, now))

	repo := NewTagEffectRepository(db)
	effect, err := repo.GetByID(context.Background(), "eff-1")

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, effect.Action, models.TagActionRemove)
	testutil.AssertEqual(t, len(effect.Tags), 2)
	testutil.AssertEqual(t, effect.Status, models.TagEffectQueued)
	testutil.AssertEqual(t, effect.RetryCount, 1)
	testutil.AssertEqual(t, *effect.LastError, "timeout")
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_GetByID_NotFound(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectQuery("FROM tag_effects WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(effectColumns))

	repo := NewTagEffectRepository(db)
	_, err := repo.GetByID(context.Background(), "nope")

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound but got %v", err)
	}
}

func TestTagEffectRepository_Claim(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectExec("UPDATE tag_effects\\s+SET status = 'queued'").
		WithArgs("eff-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tag_effects\\s+SET status = 'queued'").
		WithArgs("eff-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTagEffectRepository(db)

	won, err := repo.Claim(context.Background(), "eff-1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, won, true)

	won, err = repo.Claim(context.Background(), "eff-1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, won, false)

	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_ClaimDue(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	now := time.Now()
	staleBefore := now.Add(-10 * time.Minute)
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(now, staleBefore, 50).
		WillReturnRows(sqlmock.NewRows(effectColumns).
			AddRow("eff-1", "0123", "0123-601111", "welcome", "add", "{lead}", now.Add(-time.Minute), "queued", 0, nil, now, now).
			AddRow("eff-2", "0123", "0123-602222", "welcome", "add", "{lead}", now.Add(-time.Second), "queued", 0, nil, now, now))

	repo := NewTagEffectRepository(db)
	effects, err := repo.ClaimDue(context.Background(), now, staleBefore, 50)

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(effects), 2)
	testutil.AssertEqual(t, effects[1].ContactID, "0123-602222")
	if effects[0].LastError != nil {
		t.Errorf("Expected nil last error, got %v", *effects[0].LastError)
	}
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_CancelPending(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectExec("SET status = 'cancelled'").
		WithArgs("0123", "0123-601111").
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewTagEffectRepository(db)
	n, err := repo.CancelPending(context.Background(), "0123", "0123-601111")

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, int64(3))
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_ClaimDue_ReclaimsStaleQueued(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	now := time.Now()
	staleBefore := now.Add(-10 * time.Minute)
	mock.ExpectQuery("status = 'queued' AND updated_at < \\$2").
		WithArgs(now, staleBefore, 10).
		WillReturnRows(sqlmock.NewRows(effectColumns).
			AddRow("eff-stuck", "0123", "0123-601111", "welcome", "add", "{lead}", now.Add(-time.Hour), "queued", 0, nil, now.Add(-time.Hour), now))

	repo := NewTagEffectRepository(db)
	effects, err := repo.ClaimDue(context.Background(), now, staleBefore, 10)

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(effects), 1)
	testutil.AssertEqual(t, effects[0].ID, "eff-stuck")
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_MarkFailed(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectExec("SET status = 'failed'").
		WithArgs("503 from tag api", "eff-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewTagEffectRepository(db)
	testutil.AssertNoError(t, repo.MarkFailed(context.Background(), "eff-1", "503 from tag api"))
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_Reschedule(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	retryAt := time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC)
	mock.ExpectExec("SET status = 'pending',\\s+retry_count = retry_count \\+ 1").
		WithArgs("503 from tag api", retryAt, "eff-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewTagEffectRepository(db)
	testutil.AssertNoError(t, repo.Reschedule(context.Background(), "eff-1", "503 from tag api", retryAt))
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestTagEffectRepository_MarkApplied_NotFound(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	defer db.Close()

	mock.ExpectExec("SET status = 'applied'").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTagEffectRepository(db)
	err := repo.MarkApplied(context.Background(), "gone")

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound but got %v", err)
	}
}
