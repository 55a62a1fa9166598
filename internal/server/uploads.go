package server

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xlsmart/talenthub/internal/ingest"
	"github.com/xlsmart/talenthub/internal/service"
)

// uploadBody is the JSON form of a spreadsheet upload: the rows already
// decoded client side.
type uploadBody struct {
	SessionName string           `json:"sessionName"`
	FileName    string           `json:"fileName"`
	ExcelData   []map[string]any `json:"excelData"`
	AutoAssign  bool             `json:"autoAssign"`
}

type upload struct {
	sessionName string
	fileName    string
	autoAssign  bool
	rows        []ingest.Row
}

// readUpload accepts either a multipart form with a "file" part or a JSON
// body carrying excelData.
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return readMultipart(w, r)
	}

	var body uploadBody
	if err := decodeJSON(w, r, &body); err != nil {
		return nil, err
	}
	rows, err := ingest.FromRecords(body.ExcelData)
	if err != nil {
		return nil, err
	}
	up := &upload{
		sessionName: strings.TrimSpace(body.SessionName),
		fileName:    strings.TrimSpace(body.FileName),
		autoAssign:  body.AutoAssign,
		rows:        rows,
	}
	if up.fileName == "" {
		up.fileName = "excel-data.json"
	}
	if up.sessionName == "" {
		return nil, badRequest("sessionName is required")
	}
	return up, nil
}

func readMultipart(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, badRequest("invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("file part is required")
	}
	defer file.Close()

	rows, err := ingest.ReadFile(file, header.Filename)
	if err != nil {
		return nil, err
	}

	up := &upload{
		sessionName: strings.TrimSpace(r.FormValue("sessionName")),
		fileName:    filepath.Base(header.Filename),
		rows:        rows,
	}
	if up.sessionName == "" {
		up.sessionName = strings.TrimSuffix(up.fileName, filepath.Ext(up.fileName))
	}
	if raw := r.FormValue("autoAssign"); raw != "" {
		if up.autoAssign, err = strconv.ParseBool(raw); err != nil {
			return nil, badRequest("autoAssign must be a boolean")
		}
	}
	return up, nil
}

func (s *Server) uploadEmployees(w http.ResponseWriter, r *http.Request, user string) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	employees, rowErrs := ingest.Employees(up.rows)
	if len(employees) == 0 {
		writeJSON(w, http.StatusBadRequest, envelope{
			"success":   false,
			"error":     "no valid employee rows",
			"rowErrors": rowErrs,
		})
		return
	}

	sess, err := s.deps.Pipeline.UploadEmployees(r.Context(), service.EmployeeUpload{
		SessionName: up.sessionName,
		FileName:    up.fileName,
		CreatedBy:   user,
		Employees:   employees,
		AutoAssign:  up.autoAssign,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeOK(w, envelope{
		"sessionId": sess.ID,
		"session":   sess,
		"accepted":  len(employees),
		"rowErrors": nonNilRowErrors(rowErrs),
		"message":   "employees stored, role assignment started",
	})
}

func (s *Server) uploadRoles(w http.ResponseWriter, r *http.Request, user string) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	roles, rowErrs := ingest.SourceRoles(up.rows)
	if len(roles) == 0 {
		writeJSON(w, http.StatusBadRequest, envelope{
			"success":   false,
			"error":     "no valid role rows",
			"rowErrors": rowErrs,
		})
		return
	}

	sess, err := s.deps.Pipeline.StandardizeRoles(r.Context(), service.RoleUpload{
		SessionName: up.sessionName,
		FileName:    up.fileName,
		CreatedBy:   user,
		Roles:       roles,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeOK(w, envelope{
		"sessionId": sess.ID,
		"session":   sess,
		"accepted":  len(roles),
		"rowErrors": nonNilRowErrors(rowErrs),
		"message":   "roles stored, standardization started",
	})
}

func nonNilRowErrors(errs []ingest.RowError) []ingest.RowError {
	if errs == nil {
		return []ingest.RowError{}
	}
	return errs
}
