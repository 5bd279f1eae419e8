package srv

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/opd-ai/bookmaker/bookcompiler"
	"github.com/opd-ai/bookmaker/manifest"
)

type chapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Format  string `json:"format,omitempty"` // "text" (default) or "markdown"
}

type bookRequest struct {
	Title     string           `json:"title"`
	Author    string           `json:"author"`
	Cover     string           `json:"cover"` // base64
	CoverName string           `json:"coverName"`
	Chapters  []chapterRequest `json:"chapters"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (req bookRequest) book() (bookcompiler.Book, error) {
	book := bookcompiler.Book{
		Title:  strings.TrimSpace(req.Title),
		Author: strings.TrimSpace(req.Author),
	}

	if req.Cover != "" {
		data, err := base64.StdEncoding.DecodeString(req.Cover)
		if err != nil {
			return book, &manifest.ValidationError{Field: "cover", Msg: "is not valid base64"}
		}
		name := req.CoverName
		if name == "" {
			name = "cover"
		}
		book.Cover = &bookcompiler.CoverImage{Name: name, Data: data}
	}

	for i, ch := range req.Chapters {
		chapter := bookcompiler.Chapter{Title: strings.TrimSpace(ch.Title)}
		switch strings.ToLower(ch.Format) {
		case "", "text":
			chapter.Content = manifest.SplitLines(ch.Content)
		case "markdown", "md":
			flat, err := manifest.FlattenMarkdown([]byte(ch.Content), false)
			if err != nil {
				return book, &manifest.ValidationError{Field: fmt.Sprintf("chapters[%d].content", i), Msg: err.Error()}
			}
			chapter.Content = flat.Lines
		default:
			return book, &manifest.ValidationError{Field: fmt.Sprintf("chapters[%d].format", i), Msg: fmt.Sprintf("unknown format %q", ch.Format)}
		}
		book.Chapters = append(book.Chapters, chapter)
	}

	return book, manifest.Validate(book)
}

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	var (
		verr  *manifest.ValidationError
		rerr  *bookcompiler.RenderError
		maxed *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxed):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, bookcompiler.ErrMissingCover),
		errors.Is(err, bookcompiler.ErrNoChapters),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &rerr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fieldErrors lists the field names of the validation errors in err.
func fieldErrors(err error) []string {
	var fields []string
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			fields = append(fields, verr.Field)
		}
	}
	walk(err)
	return fields
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Fields: fieldErrors(err)})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req bookRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxed *http.MaxBytesError
		if errors.As(err, &maxed) {
			s.metrics.reject("too_large")
			s.writeError(w, r, err)
			return
		}
		s.metrics.reject("malformed")
		s.writeError(w, r, &manifest.ValidationError{Field: "body", Msg: err.Error()})
		return
	}

	book, err := req.book()
	if err != nil {
		s.metrics.reject("invalid")
		s.writeError(w, r, err)
		return
	}

	job, err := s.jobs.Submit(book)
	if err != nil {
		s.metrics.reject("queue_full")
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/books/"+job.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
		return nil, false
	}
	job, ok := s.jobs.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
		return nil, false
	}
	return job, true
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.Status())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	job.mu.RLock()
	state, jobErr, path := job.State, job.Err, job.Path
	job.mu.RUnlock()

	switch state {
	case StateCompleted:
	case StateError:
		s.writeError(w, r, jobErr)
		return
	default:
		writeJSON(w, http.StatusConflict, errorResponse{Error: fmt.Sprintf("job is %s", state)})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=book-%s.pdf", job.ID))
	http.ServeFile(w, r, path)
	hlog.FromRequest(r).Info().Str("job", job.ID).Msg("document downloaded")
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
