package server

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bimmerbailey/logsheet/internal/job"
	"github.com/bimmerbailey/logsheet/internal/logging"
	"github.com/bimmerbailey/logsheet/internal/workbook"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

const (
	actionParse     = "parseLogFile"
	maxRequestBytes = 1 << 20
)

// request is a decoded job request.
type request struct {
	Dir  string
	Name string
	Opts job.Options
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	data, err := requestData(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.runJob(w, r, data)
}

func (s *Server) handleServlet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, &job.ParamError{Msg: "malformed form"})
		return
	}
	if action := r.Form.Get("actionName"); action != actionParse {
		s.fail(w, r, &job.ParamError{Msg: "unknown action " + strconv.Quote(action)})
		return
	}
	s.runJob(w, r, []byte(r.Form.Get("data")))
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request, data []byte) {
	req, err := s.decode(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	dir, err := s.confine(req.Dir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	files, output, err := job.Resolve(dir, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := job.Run(r.Context(), files, req.Opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf, res.Batches); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", workbook.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": output}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	setDownloadCookie(w, true)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("workbook not delivered", "job_id", res.ID, "error", err)
	}
}

// requestData returns the job JSON from a JSON body or a "data" form field.
func requestData(r *http.Request) ([]byte, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			return nil, errors.Wrap(err, "read request body")
		}
		return data, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, &job.ParamError{Msg: "malformed form"}
	}
	return []byte(r.Form.Get("data")), nil
}

// decode parses job parameters. Missing fields keep the configured
// defaults; booleans and integers are also accepted as strings.
func (s *Server) decode(data []byte) (request, error) {
	req := request{Opts: job.OptionsFromConfig(s.cfg)}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, &job.ParamError{Msg: "missing job parameters"}
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return req, &job.ParamError{Msg: "invalid job parameters: " + err.Error()}
	}
	if v.Type() != fastjson.TypeObject {
		return req, &job.ParamError{Msg: "job parameters must be a JSON object"}
	}

	o := &req.Opts
	o.UniqueRecords = optBool(v, "isUniqRecords", o.UniqueRecords)
	o.GatherMessages = optBool(v, "isGatherMessages", o.GatherMessages)
	o.ErrorsOnly = optBool(v, "isErrorsOnly", o.ErrorsOnly)
	o.TraceOnly = optBool(v, "isTeStackTraceOnly", o.TraceOnly)
	if o.StartRow, err = optInt(v, "startRow", o.StartRow); err != nil {
		return req, err
	}
	if o.FinishRow, err = optInt(v, "finishRow", o.FinishRow); err != nil {
		return req, err
	}
	req.Dir = string(v.GetStringBytes("filePath"))
	req.Name = string(v.GetStringBytes("fileName"))

	if strings.ContainsAny(req.Name, `/\`) || req.Name == ".." {
		return req, &job.ParamError{Msg: "file name must not contain a path"}
	}
	return req, o.Validate()
}

// confine resolves dir against the configured root and rejects paths
// that leave it.
func (s *Server) confine(dir string) (string, error) {
	root := s.cfg.Server.Root
	if root == "" || dir == "" {
		return dir, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(filepath.Clean(root), dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &job.ParamError{Msg: "source path is outside the served root"}
	}
	return dir, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var paramErr *job.ParamError
	if errors.As(err, &paramErr) {
		status = http.StatusBadRequest
	}
	logging.FromContext(r.Context()).Error("job request failed", "status", status, "error", err)

	setDownloadCookie(w, false)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func setDownloadCookie(w http.ResponseWriter, ok bool) {
	http.SetCookie(w, &http.Cookie{Name: "fileDownload", Value: strconv.FormatBool(ok), Path: "/"})
}

func optBool(v *fastjson.Value, key string, def bool) bool {
	f := v.Get(key)
	if f == nil {
		return def
	}
	switch f.Type() {
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeString:
		return strings.EqualFold(string(f.GetStringBytes()), "true")
	default:
		return def
	}
}

func optInt(v *fastjson.Value, key string, def int) (int, error) {
	f := v.Get(key)
	if f == nil {
		return def, nil
	}
	switch f.Type() {
	case fastjson.TypeNumber:
		n, err := f.Int()
		if err != nil {
			return 0, &job.ParamError{Msg: key + " must be an integer"}
		}
		return n, nil
	case fastjson.TypeString:
		s := strings.TrimSpace(string(f.GetStringBytes()))
		if s == "" {
			return def, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, &job.ParamError{Msg: key + " must be an integer"}
		}
		return n, nil
	case fastjson.TypeNull:
		return def, nil
	default:
		return 0, &job.ParamError{Msg: key + " must be an integer"}
	}
}
