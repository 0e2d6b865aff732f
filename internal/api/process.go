package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dunamismax/imagersharp/internal/pipeline"
)

const (
	// multipartMemory is how much of a form is buffered before spilling
	// file parts to disk.
	multipartMemory = 32 << 20
	// multipartOverhead covers boundaries and the small text fields that
	// travel with the file part.
	multipartOverhead = 64 << 10
)

// handleProcess runs one synchronous edit over a multipart upload and
// responds with the encoded image.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxBytes > 0 {
		limit := s.limits.MaxBytes + multipartOverhead
		if r.ContentLength > limit {
			s.writeEditError(w, "", fmt.Errorf("%w: request body of %d bytes over %d", pipeline.ErrSourceTooLarge, r.ContentLength, limit))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeEditError(w, "", fmt.Errorf("%w: request body over %d bytes", pipeline.ErrSourceTooLarge, tooLarge.Limit))
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected a multipart/form-data body"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	source, err := readFormFile(r, "file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params, err := parseProcessForm(r)
	format := r.FormValue("format")
	if err != nil {
		s.writeEditError(w, format, err)
		return
	}
	format = params.Output.Format.String()

	if _, err := s.limits.Check(source); err != nil {
		s.metrics.observeEdit(format, pipeline.Result{}, err)
		s.writeEditError(w, format, err)
		return
	}

	res, err := pipeline.Run(r.Context(), source, params)
	s.metrics.observeEdit(format, res, err)
	if err != nil {
		s.writeEditError(w, format, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Disposition", pipeline.ContentDisposition(res.Format))
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("X-Image-Width", strconv.Itoa(res.Width))
	h.Set("X-Image-Height", strconv.Itoa(res.Height))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		s.logger.Printf("write edit response failed err=%v", err)
	}
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("form field %q is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read form field %q: %w", field, err)
	}
	return data, nil
}

// parseProcessForm maps the form fields onto Params. Missing adjustments
// stay neutral; quality and format fall back to their defaults.
func parseProcessForm(r *http.Request) (pipeline.Params, error) {
	params := pipeline.Params{
		Adjustments: pipeline.NeutralAdjustments(),
		Output: pipeline.OutputSpec{
			Format:  pipeline.DefaultFormat,
			Quality: pipeline.DefaultQuality,
		},
		AutoOrient: r.FormValue("auto_orient") == "true",
	}

	rawCrop := strings.TrimSpace(r.FormValue("crop"))
	if rawCrop == "" {
		return pipeline.Params{}, fmt.Errorf("%w: crop is required", pipeline.ErrInvalidCrop)
	}
	if err := json.Unmarshal([]byte(rawCrop), &params.Crop); err != nil {
		return pipeline.Params{}, fmt.Errorf("%w: %w", pipeline.ErrInvalidCrop, err)
	}

	if v := strings.TrimSpace(r.FormValue("format")); v != "" {
		f, err := pipeline.ParseFormat(v)
		if err != nil {
			return pipeline.Params{}, err
		}
		params.Output.Format = f
	}
	if v := strings.TrimSpace(r.FormValue("quality")); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return pipeline.Params{}, fmt.Errorf("%w: quality %q is not an integer", pipeline.ErrInvalidParams, v)
		}
		params.Output.Quality = q
	}

	floats := []struct {
		field string
		into  *float64
	}{
		{"brightness", &params.Adjustments.Brightness},
		{"saturation", &params.Adjustments.Saturation},
		{"contrast", &params.Adjustments.Contrast},
		{"blur", &params.Adjustments.BlurRadius},
	}
	for _, f := range floats {
		v := strings.TrimSpace(r.FormValue(f.field))
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return pipeline.Params{}, fmt.Errorf("%w: %s %q is not a number", pipeline.ErrInvalidParams, f.field, v)
		}
		*f.into = parsed
	}
	return params, nil
}

func (s *Server) writeEditError(w http.ResponseWriter, format string, err error) {
	kind := pipeline.ErrorKind(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("edit failed format=%s kind=%s err=%v", format, kind, err)
	}

	msg := err.Error()
	if kind == pipeline.KindInternal {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}

func statusForKind(kind string) int {
	switch kind {
	case pipeline.KindDecode, pipeline.KindInvalidParams:
		return http.StatusBadRequest
	case pipeline.KindInvalidCrop:
		return http.StatusUnprocessableEntity
	case pipeline.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case pipeline.KindSourceTooLarge:
		return http.StatusRequestEntityTooLarge
	case pipeline.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
