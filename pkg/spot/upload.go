package spot

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// FileUpload describes a program source upload. Path is a single source file,
// or a directory when Folder is set. Main names the entry point file and
// defaults to "main.py".
type FileUpload struct {
	Path   string
	Folder bool
	Main   string
}

// UploadFile sends program sources to the control server's file endpoint and
// returns the validity flag it reports. Preconditions are checked before any
// request is made.
func (r *Robot) UploadFile(ctx context.Context, upload FileUpload) (bool, error) {
	files, err := r.collectUpload(&upload)
	if err != nil {
		return false, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("folder", strconv.FormatBool(upload.Folder)); err != nil {
		return false, err
	}
	if err := writer.WriteField("main", upload.Main); err != nil {
		return false, err
	}
	for _, file := range files {
		if err := writeFilePart(writer, file.field, file.path); err != nil {
			return false, err
		}
	}
	if err := writer.Close(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoints.File, &body)
	if err != nil {
		return false, &TransportError{Op: "upload file", URL: r.endpoints.File, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	valid, err := doValidRequest(r.cfg.HTTPClient, req, "upload file")
	if err != nil {
		r.logger.Warn("file upload failed", zap.String("path", upload.Path), zap.Error(err))
		return false, err
	}
	r.logger.Info("file uploaded",
		zap.String("path", upload.Path),
		zap.Bool("folder", upload.Folder),
		zap.String("main", upload.Main),
		zap.Int("files", len(files)),
		zap.Bool("valid", valid),
	)
	return valid, nil
}

type uploadPart struct {
	field string
	path  string
}

func (r *Robot) collectUpload(upload *FileUpload) ([]uploadPart, error) {
	upload.Main = strings.TrimSpace(upload.Main)
	if upload.Main == "" {
		upload.Main = "main.py"
	}
	if !r.hasSourceExt(upload.Main) {
		return nil, invalidArgument("main file %q must end in one of %v", upload.Main, r.cfg.SourceExtensions)
	}
	if strings.TrimSpace(upload.Path) == "" {
		return nil, invalidArgument("upload path is empty")
	}

	info, err := os.Stat(upload.Path)
	if err != nil {
		return nil, invalidArgument("upload path %q: %v", upload.Path, err)
	}

	if !upload.Folder {
		if info.IsDir() {
			return nil, invalidArgument("upload path %q is a directory", upload.Path)
		}
		if !r.hasSourceExt(upload.Path) {
			return nil, invalidArgument("file %q must end in one of %v", upload.Path, r.cfg.SourceExtensions)
		}
		return []uploadPart{{field: "file", path: upload.Path}}, nil
	}

	if !info.IsDir() {
		return nil, invalidArgument("upload path %q is not a directory", upload.Path)
	}
	entries, err := os.ReadDir(upload.Path)
	if err != nil {
		return nil, invalidArgument("read directory %q: %v", upload.Path, err)
	}
	parts := make([]uploadPart, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		parts = append(parts, uploadPart{field: entry.Name(), path: filepath.Join(upload.Path, entry.Name())})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].field < parts[j].field })
	return parts, nil
}

func (r *Robot) hasSourceExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range r.cfg.SourceExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func writeFilePart(writer *multipart.Writer, field string, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
