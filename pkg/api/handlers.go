package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/illumorae/patchfill/pkg/buildinfo"
	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// Response headers describing an infill result.
const (
	SeedHeader  = "X-Patchfill-Seed"
	CacheHeader = "X-Patchfill-Cache"
)

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Stats.Snapshot())
}

func (s *Server) handleInfill(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeError(w, r, &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		if StatusFor(err) != http.StatusRequestEntityTooLarge {
			err = errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart form")
		}
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.parseOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := pipeline.Input{Name: RequestID(r.Context())}
	if in.Image, err = formFile(r, "image", true); err != nil {
		writeError(w, r, err)
		return
	}
	// A missing mask is reported by the pipeline unless it comes from alpha.
	if in.Mask, err = formFile(r, "mask", false); err != nil {
		writeError(w, r, err)
		return
	}

	opts.Logger = s.logger.With("request_id", RequestID(r.Context()))
	res, err := s.runner.Execute(r.Context(), in, opts)
	if ctxErr := r.Context().Err(); ctxErr != nil {
		// The timeout middleware answers 504; a client that left reads nothing.
		s.logger.Warn("infill abandoned", "request_id", RequestID(r.Context()), "reason", ctxErr)
		return
	}
	if err != nil {
		if StatusFor(err) == http.StatusInternalServerError {
			s.logger.Error("infill failed", "request_id", RequestID(r.Context()), "error", err)
		}
		writeError(w, r, err)
		return
	}

	cacheState := "miss"
	if res.CacheInfo.ResultHit {
		cacheState = "hit"
	} else if !res.CacheInfo.Cacheable {
		cacheState = "bypass"
	}
	w.Header().Set("Content-Type", contentTypes[res.Format])
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Encoded)))
	w.Header().Set(SeedHeader, strconv.FormatUint(res.Seed, 10))
	w.Header().Set(CacheHeader, cacheState)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Encoded)
}

// parseOptions reads option form fields over the server defaults.
func (s *Server) parseOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.cfg.Defaults
	opts.Logger = nil

	ints := []struct {
		field string
		dst   *int
	}{
		{"patch_size", &opts.PatchSize},
		{"iterations", &opts.Iterations},
		{"pyramid_floor", &opts.PyramidFloor},
		{"search_cap", &opts.SearchCap},
	}
	for _, f := range ints {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidOptions, "%s must be an integer, got %q", f.field, v)
		}
		*f.dst = n
	}

	if v := r.FormValue("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidOptions, "seed must be an unsigned integer, got %q", v)
		}
		opts.Seed = &seed
	}
	if v := r.FormValue("mask_threshold"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil || n == 0 {
			return opts, errors.New(errors.ErrCodeInvalidOptions, "mask_threshold must be in 1..255, got %q", v)
		}
		opts.MaskThreshold = uint8(n)
	}

	bools := []struct {
		field string
		dst   *bool
	}{
		{"mask_invert", &opts.MaskInvert},
		{"mask_from_alpha", &opts.MaskFromAlpha},
	}
	for _, f := range bools {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidOptions, "%s must be a boolean, got %q", f.field, v)
		}
		*f.dst = b
	}

	if v := r.FormValue("format"); v != "" {
		opts.Format = v
	}
	return opts, nil
}

// formFile reads an uploaded file. A missing optional file yields nil.
func formFile(r *http.Request, field string, required bool) ([]byte, error) {
	f, hdr, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		if required {
			return nil, errors.New(errors.ErrCodeInvalidInput, "missing %q file", field)
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %q file", field)
	}
	defer f.Close()
	if err := errors.ValidateUploadName(hdr.Filename); err != nil {
		return nil, err
	}
	return readAll(f)
}

func readAll(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
	}
	return data, nil
}
