package collector

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// maxBody caps request bodies; a page dump can be large.
const maxBody = 32 << 20

// SessionSummary is the inspection view of a session.
type SessionSummary struct {
	TabID    string `json:"tabId"`
	URL      string `json:"url"`
	FileName string `json:"filename,omitempty"`
	Loading  bool   `json:"loading"`
	Events   int    `json:"events"`
}

// Summaries returns one summary per session, ordered by tab id.
func (c *Collector) Summaries() []SessionSummary {
	sessions := c.Sessions()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{
			TabID:    s.TabID,
			URL:      s.URL,
			FileName: s.FileName,
			Loading:  s.Loading,
			Events:   len(s.Events),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

// Handler exposes the collector over HTTP for observers running in other
// processes:
//
//	POST   /tabs/{tabID}/messages    one transport message
//	POST   /tabs/{tabID}/navigation  {"url": ..., "status": "loading"|"complete"}
//	POST   /tabs/{tabID}/activated
//	DELETE /tabs/{tabID}
//	GET    /sessions
//	GET    /sessions/{tabID}
//	GET    /healthz
func (c *Collector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tabs/{tabID}", func(r chi.Router) {
		r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
			var msg mutation.Message
			if err := decode(w, r, &msg); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if msg.Type == "" {
				writeError(w, http.StatusBadRequest, errors.New("message type required"))
				return
			}
			c.OnMessage(chi.URLParam(r, "tabID"), msg)
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/navigation", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				URL    string `json:"url"`
				Status string `json:"status"`
			}
			if err := decode(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			c.OnNavigation(r.Context(), chi.URLParam(r, "tabID"), req.URL, req.Status)
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/activated", func(w http.ResponseWriter, r *http.Request) {
			c.OnTabActivated(chi.URLParam(r, "tabID"))
			w.WriteHeader(http.StatusNoContent)
		})

		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			c.OnTabClosed(r.Context(), chi.URLParam(r, "tabID"))
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Summaries())
	})

	r.Get("/sessions/{tabID}", func(w http.ResponseWriter, r *http.Request) {
		s, ok := c.Session(chi.URLParam(r, "tabID"))
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown tab"))
			return
		}
		writeJSON(w, http.StatusOK, s)
	})

	return r
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
