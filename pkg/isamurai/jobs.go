package isamurai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// JobKind names a job family.
type JobKind string

const (
	KindFaceSwap   JobKind = "face_swap"
	KindMultiSwap  JobKind = "multi_swap"
	KindSlowMotion JobKind = "slow_motion"
	KindRestore    JobKind = "restore"
)

// Multi reports whether the kind is polled through the multi swap endpoint.
func (k JobKind) Multi() bool { return k == KindMultiSwap }

const (
	pathFaceSwap   = "/full-process-swap/"
	pathMultiSwap  = "/multi-face-swap/"
	pathSlowMotion = "/slow-motion/"
	pathRestore    = "/restore/"

	defaultJobName = "SDK Job"
)

// FaceSwapRequest swaps the face in SourcePath onto TargetPath (image or video).
type FaceSwapRequest struct {
	SourcePath string
	TargetPath string
	Quality    Quality
	Name       string
}

// MultiSwapRequest swaps several source faces onto one target.
type MultiSwapRequest struct {
	SourcePaths []string
	TargetPath  string
	Quality     Quality
	Name        string
}

// SlowMotionRequest renders TargetPath slowed down by Factor (2, 4 or 8).
type SlowMotionRequest struct {
	TargetPath string
	Factor     int
	Name       string
}

// RestoreRequest enhances the faces in TargetPath.
type RestoreRequest struct {
	TargetPath string
	Name       string
}

// ProcessFaceSwap submits a face swap job.
func (c *Client) ProcessFaceSwap(ctx context.Context, req FaceSwapRequest) (JobID, error) {
	quality, err := qualityOrDefault(req.Quality)
	if err != nil {
		return "", err
	}
	return c.submit(ctx, submission{
		kind:  KindFaceSwap,
		path:  pathFaceSwap,
		key:   "faceswap",
		files: []formFile{{"source_image", req.SourcePath}, {"target_media", req.TargetPath}},
		fields: []formField{
			{"gquality", string(quality)},
			{"name", nameOrDefault(req.Name)},
		},
	})
}

// ProcessMultiSwap submits a multi face swap job.
func (c *Client) ProcessMultiSwap(ctx context.Context, req MultiSwapRequest) (JobID, error) {
	if len(req.SourcePaths) == 0 {
		return "", fmt.Errorf("%w: at least one source image is required", ErrInvalidArgument)
	}
	quality, err := qualityOrDefault(req.Quality)
	if err != nil {
		return "", err
	}

	files := make([]formFile, 0, len(req.SourcePaths)+1)
	for _, p := range req.SourcePaths {
		files = append(files, formFile{"source_images", p})
	}
	files = append(files, formFile{"target_media", req.TargetPath})

	return c.submit(ctx, submission{
		kind:  KindMultiSwap,
		path:  pathMultiSwap,
		key:   "multi_faceswap",
		files: files,
		fields: []formField{
			{"gquality", string(quality)},
			{"name", nameOrDefault(req.Name)},
		},
	})
}

// ProcessSlowMotion submits a slow motion render.
func (c *Client) ProcessSlowMotion(ctx context.Context, req SlowMotionRequest) (JobID, error) {
	factor := req.Factor
	if factor == 0 {
		factor = 2
	}
	if factor != 2 && factor != 4 && factor != 8 {
		return "", fmt.Errorf("%w: slow motion factor must be 2, 4 or 8, got %d", ErrInvalidArgument, req.Factor)
	}
	return c.submit(ctx, submission{
		kind:  KindSlowMotion,
		path:  pathSlowMotion,
		key:   "slowmotion",
		files: []formFile{{"target_media", req.TargetPath}},
		fields: []formField{
			{"factor", strconv.Itoa(factor)},
			{"name", nameOrDefault(req.Name)},
		},
	})
}

// ProcessRestore submits a face restoration job.
func (c *Client) ProcessRestore(ctx context.Context, req RestoreRequest) (JobID, error) {
	return c.submit(ctx, submission{
		kind:   KindRestore,
		path:   pathRestore,
		key:    "restore",
		files:  []formFile{{"target_media", req.TargetPath}},
		fields: []formField{{"name", nameOrDefault(req.Name)}},
	})
}

type formFile struct {
	field string
	path  string
}

type formField struct {
	name  string
	value string
}

type submission struct {
	kind   JobKind
	path   string
	key    string
	files  []formFile
	fields []formField
}

func (c *Client) submit(ctx context.Context, s submission) (JobID, error) {
	opened, err := openFiles(s.files)
	if err != nil {
		return "", err
	}

	// The body streams through a pipe so large videos are never buffered.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, s, opened))
	}()

	var resp map[string]json.RawMessage
	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        s.path,
		body:        pr,
		contentType: mw.FormDataContentType(),
	}, &resp)
	// Unblocks the writer if the request never drained the body.
	pr.Close()
	if err != nil {
		return "", err
	}

	id, err := jobIDFrom(resp, s.key)
	if err != nil {
		return "", err
	}

	c.metrics.recordSubmit(string(s.kind))
	c.logger.Info("isamurai.job.submitted", "kind", s.kind, "job_id", id)
	return id, nil
}

func openFiles(files []formFile) ([]*os.File, error) {
	opened := make([]*os.File, 0, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.path) == "" {
			closeAll(opened)
			return nil, fmt.Errorf("%w: %s path is empty", ErrInvalidArgument, f.field)
		}
		fh, err := os.Open(f.path)
		if err != nil {
			closeAll(opened)
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, f.path)
			}
			return nil, fmt.Errorf("open %s: %w", f.path, err)
		}
		opened = append(opened, fh)
	}
	return opened, nil
}

func writeForm(mw *multipart.Writer, s submission, opened []*os.File) error {
	defer closeAll(opened)

	for i, f := range s.files {
		part, err := mw.CreateFormFile(f.field, filepath.Base(f.path))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, opened[i]); err != nil {
			return fmt.Errorf("copy %s: %w", f.path, err)
		}
	}
	for _, f := range s.fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	return mw.Close()
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

func jobIDFrom(resp map[string]json.RawMessage, key string) (JobID, error) {
	raw, ok := resp[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q in response", ErrUnexpectedResponse, key)
	}
	var ref struct {
		ID flexString `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnexpectedResponse, key, err)
	}
	if ref.ID == "" {
		return "", fmt.Errorf("%w: %q has no id", ErrUnexpectedResponse, key)
	}
	return JobID(ref.ID), nil
}

func qualityOrDefault(q Quality) (Quality, error) {
	if q == "" {
		return DefaultQuality, nil
	}
	if !q.valid() {
		return "", fmt.Errorf("%w: unsupported quality %q", ErrInvalidArgument, q)
	}
	return q, nil
}

func nameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultJobName
	}
	return name
}
