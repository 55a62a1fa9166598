package server

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xlsmart/talenthub/internal/ingest"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/service"
	"github.com/xlsmart/talenthub/internal/store"
)

// Sessions

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	filter := store.SessionFilter{
		Kind:      models.SessionKind(q.Get("kind")),
		Status:    models.SessionStatus(q.Get("status")),
		CreatedBy: q.Get("createdBy"),
		Limit:     limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, badRequest("unknown status %q", filter.Status))
		return
	}

	sessions, err := s.deps.Store.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"sessions": sessions})
}

// getSession answers the progress query.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Store.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	report := sess.Report()
	writeOK(w, envelope{
		"sessionId": report.SessionID,
		"status":    report.Status,
		"progress":  report.Progress,
		"error":     report.Error,
		"running":   s.deps.Pipeline.Sessions().IsRunning(sess.ID),
		"session":   sess,
	})
}

type assignRequest struct {
	EmployeeIDs []string `json:"employeeIds" validate:"required,min=1,max=5000,unique,dive,required"`
	AutoAssign  bool     `json:"autoAssign"`
}

func (s *Server) assignSessionRoles(w http.ResponseWriter, r *http.Request, user string) {
	var body struct {
		AutoAssign bool `json:"autoAssign"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, err)
			return
		}
	}
	sess, err := s.deps.Pipeline.AssignSessionRoles(r.Context(), mux.Vars(r)["id"], user, service.ParseAssignMode(body.AutoAssign))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"sessionId": sess.ID, "session": sess})
}

// Employees

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	filter := store.EmployeeFilter{
		SessionID: q.Get("sessionId"),
		Status:    models.RoleAssignmentStatus(q.Get("status")),
		Limit:     limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, badRequest("unknown assignment status %q", filter.Status))
		return
	}

	employees, err := s.deps.Store.ListEmployees(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"employees": employees})
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Store.GetEmployee(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"employee": e})
}

func (s *Server) bulkAssign(w http.ResponseWriter, r *http.Request, user string) {
	var body assignRequest
	if err := decodeValid(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Pipeline.BulkAssign(r.Context(), body.EmployeeIDs, user, service.ParseAssignMode(body.AutoAssign))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"sessionId": sess.ID, "session": sess})
}

func (s *Server) assessSkills(w http.ResponseWriter, r *http.Request, user string) {
	var body assignRequest
	if err := decodeValid(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Pipeline.AssessSkills(r.Context(), body.EmployeeIDs, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"sessionId": sess.ID, "session": sess})
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request, _ string) {
	var body struct {
		RoleID string `json:"roleId" validate:"required"`
	}
	if err := decodeValid(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.deps.Pipeline.AssignRole(r.Context(), mux.Vars(r)["id"], body.RoleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"employee": e})
}

// Roles

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.deps.Store.ListStandardRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"roles": roles})
}

// seedRoles adds roles from a JSON {"roles": [...]} body or a YAML catalog.
func (s *Server) seedRoles(w http.ResponseWriter, r *http.Request, _ string) {
	var roles []models.StandardRole
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		var err error
		roles, err = ingest.ReadRoleCatalog(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			writeError(w, badRequest("%v", err))
			return
		}
	default:
		var body struct {
			Roles []models.StandardRole `json:"roles"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, err)
			return
		}
		roles = body.Roles
	}
	if len(roles) == 0 {
		writeError(w, badRequest("no roles given"))
		return
	}

	added, err := s.deps.Pipeline.SeedRoles(r.Context(), roles)
	if err != nil {
		writeError(w, err)
		return
	}
	if added == nil {
		added = []models.StandardRole{}
	}
	writeOK(w, envelope{"roles": added, "added": len(added), "skipped": len(roles) - len(added)})
}

func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.deps.Store.ListRoleMappings(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"mappings": mappings})
}

func (s *Server) generateJobDescription(w http.ResponseWriter, r *http.Request, _ string) {
	jd, err := s.deps.Pipeline.GenerateJobDescription(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"jobDescription": jd})
}

func (s *Server) listJobDescriptions(w http.ResponseWriter, r *http.Request) {
	jds, err := s.deps.Store.ListJobDescriptions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, envelope{"jobDescriptions": jds})
}

// decodeValid decodes a JSON body and runs its validate tags.
func decodeValid(w http.ResponseWriter, r *http.Request, v any) error {
	if err := decodeJSON(w, r, v); err != nil {
		return err
	}
	if err := models.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}
