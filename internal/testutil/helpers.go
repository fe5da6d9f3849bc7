// Package testutil holds assertion helpers and fixtures shared by package tests.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"whatsdrip/internal/models"
)

// AssertNoError checks that no error occurred
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

// AssertContains checks if string contains substring
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("Expected %q to contain %q", haystack, needle)
	}
}

// NewMockDB creates a mock database for testing
func NewMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	return db, mock
}

// NewJSONRequest creates an HTTP request with JSON body
func NewJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal JSON: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// ParseJSONResponse parses JSON response body
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertStatusCode checks HTTP response status code
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Errorf("Expected status code %d but got %d (body: %s)", want, resp.Code, resp.Body.String())
	}
}

// NewTestContact creates a contact for company "0123"
func NewTestContact() models.Contact {
	return models.NewContact("0123", "+60 12-345 6789", "Aina", 0)
}

// NewTestTemplate builds the three-step drip used across tests:
// one minute, then instantaneous, then 09:00 on day two.
func NewTestTemplate(id string) *models.Template {
	return &models.Template{
		CompanyID: "0123",
		ID:        id,
		Name:      "Template " + id,
		Status:    models.TemplateStatusActive,
		Steps: []models.Step{
			{ID: 1, TemplateID: id, DayNumber: 1, Sequence: 1, ContentType: models.ContentText,
				Message: "Hi {first_name}!", DelayAfter: `{"value":1,"unit":"minute"}`, AddTags: []string{"drip-" + id}},
			{ID: 2, TemplateID: id, DayNumber: 1, Sequence: 2, ContentType: models.ContentImage,
				Message: "Our menu", MediaURL: "https://cdn.example.com/menu.png", DelayAfter: `{"isInstantaneous":true}`},
			{ID: 3, TemplateID: id, DayNumber: 2, Sequence: 1, ContentType: models.ContentDocument,
				Message: "Brochure for {phone}", MediaURL: "https://cdn.example.com/b.pdf", FileName: "brochure.pdf",
				MimeType: "application/pdf", UseClockTime: true, ClockHour: 9, ClockMinute: 0, RemoveTags: []string{"drip-" + id}},
		},
	}
}
