// Package api publishes saved sessions to a remote session archive.
package api

import (
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/turnkernel/internal/session"
)

// UploadPath is the archive endpoint that accepts a session.
const UploadPath = "/api/v1/sessions"

// Client handles communication with the session archive.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the archive is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadSession sends a saved session directory as one multipart form: the manifest
// fields, then the manifest, the event log and every snapshot file.
func (c *Client) UploadSession(dir, tag string) (*session.Manifest, error) {
	m, err := session.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	files := []string{session.ManifestFile, m.EventLog}
	snaps, err := snapshotFiles(dir, m.Snapshots)
	if err != nil {
		return nil, err
	}
	files = append(files, snaps...)

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		err := writeForm(writer, dir, files, c.apiKey, tag, m)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		pr.Close()
		<-errCh
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		<-errCh
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// The archive may answer before reading the whole form.
	pr.Close()
	writeErr := <-errCh
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	if writeErr != nil {
		return nil, writeErr
	}
	return m, nil
}

func writeForm(w *multipart.Writer, dir string, files []string, secret, tag string, m *session.Manifest) error {
	fields := [][2]string{
		{"secret", secret},
		{"sessionId", m.SessionID},
		{"scenario", m.Scenario},
		{"players", strings.Join(playerNames(m), ",")},
		{"turns", strconv.FormatUint(uint64(m.CurrentTurn), 10)},
		{"events", strconv.Itoa(m.Events)},
		{"ended", strconv.FormatBool(m.Ended)},
		{"tag", tag},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	for _, name := range files {
		if err := copyPart(w, dir, name); err != nil {
			return err
		}
	}
	return nil
}

func copyPart(w *multipart.Writer, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile("file", filepath.ToSlash(name))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	return nil
}

// snapshotFiles lists the regular files below dir/sub relative to dir. A missing
// snapshot directory is not an error.
func snapshotFiles(dir, sub string) ([]string, error) {
	root := filepath.Join(dir, sub)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}

func playerNames(m *session.Manifest) []string {
	out := make([]string, len(m.Players))
	for i, p := range m.Players {
		out[i] = string(p)
	}
	return out
}
