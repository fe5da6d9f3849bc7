package tagapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"whatsdrip/internal/models"
	"whatsdrip/internal/testutil"
)

func TestClient_Apply(t *testing.T) {
	var path string
	var body tagsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zerolog.Nop())
	err := client.Apply(context.Background(), "0123", "0123-601111", models.TagActionRemove, []string{"drip", "new"})

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, path, "/api/contacts/0123/0123-601111/tags/remove")
	testutil.AssertEqual(t, len(body.Tags), 2)
	testutil.AssertEqual(t, body.Tags[0], "drip")
}

func TestClient_Apply_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "contact not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zerolog.Nop())
	err := client.Apply(context.Background(), "0123", "0123-601111", models.TagActionAdd, []string{"drip"})

	if err == nil {
		t.Fatal("Expected error for 404")
	}
	testutil.AssertContains(t, err.Error(), "contact not found")
}

func TestClient_Apply_NoTagsOrBadAction(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zerolog.Nop())

	testutil.AssertNoError(t, client.Apply(context.Background(), "0123", "c", models.TagActionAdd, nil))
	if err := client.Apply(context.Background(), "0123", "c", models.TagAction("toggle"), []string{"x"}); err == nil {
		t.Error("Expected error for unknown action")
	}
	testutil.AssertEqual(t, calls, 0)
}
