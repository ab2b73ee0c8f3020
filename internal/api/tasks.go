package api

import (
	"net/http"
	"strconv"

	"github.com/nextlevelbuilder/dispatchd/internal/engine"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var draft engine.TaskDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	task, err := s.engine.CreateTask(r.Context(), user.ID, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": task.ID})
}

func (s *Server) handleCreateTasksBulk(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var drafts []engine.TaskDraft
	if !decodeJSON(w, r, &drafts) {
		return
	}

	ids := s.engine.CreateTasks(r.Context(), user.ID, drafts)
	writeJSON(w, http.StatusOK, map[string]any{"task_ids": ids})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	tasks, err := s.engine.ListTasks(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	dicts := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		dicts = append(dicts, tasks[i].ToDict())
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": dicts})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := s.engine.GetTask(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task.ToDict())
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.engine.DeleteTask(r.Context(), id, user.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "deleted"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	stats, err := s.engine.Stats(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// pathID parses the {id} path segment. Non-numeric ids are treated as an
// absent resource, not a schema error.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		return 0, false
	}
	return id, true
}
