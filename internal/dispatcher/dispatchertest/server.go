// Package dispatchertest provides an in-memory scheduled-send service that
// speaks the dispatcher HTTP contract, for tests.
package dispatchertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"whatsdrip/internal/models"
)

// Server is an httptest server backed by a map of scheduled sends
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	sends map[string]*models.ScheduledSend
	order []string

	// FailSubmitAt makes the n-th submission (1-based) fail with a 500.
	FailSubmitAt int
	// FailCancel makes every cancellation fail with a 503.
	FailCancel bool

	submits int
	Cancels int
}

// NewServer starts a new in-memory dispatcher
func NewServer() *Server {
	s := &Server{sends: map[string]*models.ScheduledSend{}}

	router := mux.NewRouter()
	router.HandleFunc("/api/schedule-message/{companyId}", s.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/api/schedule-message/{companyId}/template/{templateId}/contact/{contactId}", s.handleCancel).Methods(http.MethodDelete)
	router.HandleFunc("/api/schedule-message/{companyId}/{messageId}", s.handleUpdate).Methods(http.MethodPut)

	s.Server = httptest.NewServer(router)
	return s
}

// Add stores a send directly and returns its id
func (s *Server) Add(send models.ScheduledSend) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(send)
}

func (s *Server) store(send models.ScheduledSend) string {
	if send.ID == "" {
		send.ID = uuid.NewString()
	}
	if _, exists := s.sends[send.ID]; !exists {
		s.order = append(s.order, send.ID)
	}
	s.sends[send.ID] = &send
	return send.ID
}

// Get returns a copy of a stored send
func (s *Server) Get(id string) (models.ScheduledSend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	send, ok := s.sends[id]
	if !ok {
		return models.ScheduledSend{}, false
	}
	return *send, true
}

// Active returns copies of the non-completed sends of a template that still
// target chatID, ordered by scheduled time.
func (s *Server) Active(templateID, chatID string) []models.ScheduledSend {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ScheduledSend
	for _, id := range s.order {
		send := s.sends[id]
		if send.TemplateID == templateID && send.IsActive() && send.HasRecipient(chatID) {
			out = append(out, *send)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ScheduledTime, out[j].ScheduledTime
		if a.Seconds != b.Seconds {
			return a.Seconds < b.Seconds
		}
		return a.Nanoseconds < b.Nanoseconds
	})
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var send models.ScheduledSend
	if err := json.NewDecoder(r.Body).Decode(&send); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if send.CompanyID != mux.Vars(r)["companyId"] || len(send.ChatIDs) == 0 {
		http.Error(w, "companyId mismatch or no chatIds", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	if s.FailSubmitAt > 0 && s.submits == s.FailSubmitAt {
		http.Error(w, "firestore unavailable", http.StatusInternalServerError)
		return
	}

	send.ID = ""
	id := s.store(send)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var send models.ScheduledSend
	if err := json.NewDecoder(r.Body).Decode(&send); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sends[vars["messageId"]]; !ok {
		http.Error(w, "scheduled message not found", http.StatusNotFound)
		return
	}
	send.ID = vars["messageId"]
	s.store(send)
	writeJSON(w, http.StatusOK, map[string]string{"id": send.ID})
}

// handleCancel removes the contact's chat id from every active send of the
// template. Sends that still have recipients keep their status.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID, ok := models.ChatIDForContact(vars["companyId"], vars["contactId"])
	if !ok {
		http.Error(w, "contact does not belong to company", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cancels++
	if s.FailCancel {
		http.Error(w, "dispatcher overloaded", http.StatusServiceUnavailable)
		return
	}

	removed := 0
	for _, id := range s.order {
		send := s.sends[id]
		if send.CompanyID != vars["companyId"] || send.TemplateID != vars["templateId"] || !send.IsActive() {
			continue
		}
		if send.RemoveRecipient(chatID) {
			removed++
		}
	}

	if removed == 0 {
		http.Error(w, "no scheduled messages found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
