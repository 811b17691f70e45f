package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
)

type createTaskRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Column         string   `json:"col"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
	DueDate        string   `json:"dueDate"`
	EstimatedHours *float64 `json:"estimatedHours"`
}

// updateTaskRequest distinguishes absent fields from explicit nulls, which
// clear the due date and estimate.
type updateTaskRequest struct {
	Title          *string         `json:"title"`
	Description    *string         `json:"description"`
	Column         *string         `json:"col"`
	Priority       *string         `json:"priority"`
	Tags           *[]string       `json:"tags"`
	DueDate        json.RawMessage `json:"dueDate"`
	EstimatedHours json.RawMessage `json:"estimatedHours"`
}

type moveRequest struct {
	Column string `json:"col"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBoardError maps validation failures to 400 and everything else to 500.
func (s *Server) writeBoardError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, model.ErrInvalidColumn) || errors.Is(err, model.ErrInvalidPriority) || errors.Is(err, model.ErrEmptyTitle) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("board operation failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func taskID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func parseDue(s string) (*time.Time, error) {
	ts, err := model.ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("invalid dueDate: %w", err)
	}
	t := ts.Time
	return &t, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Status())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f kanban.Filter
	if c := q.Get("col"); c != "" {
		col, err := model.ParseColumn(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Column = col
	}
	if p := q.Get("priority"); p != "" {
		pri, err := model.ParsePriority(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Priority = pri
	}
	f.Tag = q.Get("tag")
	writeJSON(w, http.StatusOK, s.board.Filter(f))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, ok := s.board.FindByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	in := kanban.NewTask{
		Title:          req.Title,
		Description:    req.Description,
		Column:         req.Column,
		Priority:       req.Priority,
		Tags:           req.Tags,
		EstimatedHours: req.EstimatedHours,
	}
	if req.DueDate != "" {
		due, err := parseDue(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.DueDate = due
	}

	task, err := s.board.Create(r.Context(), in)
	if err != nil {
		s.writeBoardError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ch := kanban.Changes{
		Title:       req.Title,
		Description: req.Description,
		Column:      req.Column,
		Priority:    req.Priority,
	}
	if req.Tags != nil {
		ch.Tags = *req.Tags
		ch.SetTags = true
	}
	if len(req.DueDate) > 0 {
		var raw *string
		if err := json.Unmarshal(req.DueDate, &raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid dueDate")
			return
		}
		if raw == nil || *raw == "" {
			ch.ClearDueDate = true
		} else {
			due, err := parseDue(*raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			ch.DueDate = due
		}
	}
	if len(req.EstimatedHours) > 0 {
		var est *float64
		if err := json.Unmarshal(req.EstimatedHours, &est); err != nil {
			writeError(w, http.StatusBadRequest, "invalid estimatedHours")
			return
		}
		if est == nil {
			ch.ClearEstimate = true
		} else {
			ch.EstimatedHours = est
		}
	}

	task, err := s.board.Update(r.Context(), id, ch)
	if err != nil {
		s.writeBoardError(w, "update", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Column == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"col\": \"<column>\"}")
		return
	}

	task, err := s.board.Move(r.Context(), id, req.Column)
	if err != nil {
		s.writeBoardError(w, "move", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	ok, err := s.board.Delete(r.Context(), id)
	if err != nil {
		s.writeBoardError(w, "delete", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, s.board.Tasks(), s.now()); err != nil {
		s.logger.Error("render board page", "err", err)
		http.Error(w, "could not render board", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
