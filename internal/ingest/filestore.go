// Package ingest stores uploaded study files on local disk. It is the file
// storage collaborator behind the analysis core: uploads land in a per-study
// directory, zip archives are unpacked in place, and study deletion releases
// the whole directory.
package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// dicomMagic is the DICM marker found at byte offset 128 of a DICOM part-10
// file.
var dicomMagic = []byte("DICM")

const dicomMagicOffset = 128

// LocalStore keeps uploaded files under baseDir/<study-id>/.
type LocalStore struct {
	logger  *logrus.Logger
	baseDir string
}

// NewLocalStore creates the store, making sure the base directory exists.
func NewLocalStore(baseDir string, logger *logrus.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{logger: logger, baseDir: baseDir}, nil
}

// StudyDir returns the directory holding a study's files.
func (s *LocalStore) StudyDir(studyID string) string {
	return filepath.Join(s.baseDir, studyID)
}

// Save writes one uploaded file into the study's directory and returns the
// stored paths. A .zip upload is unpacked in place and the archive discarded;
// the returned paths are then the extracted files.
func (s *LocalStore) Save(studyID, filename string, r io.Reader) ([]string, error) {
	dir := s.StudyDir(studyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating study directory: %w", err)
	}

	// Uploaded names are untrusted; keep only the base component.
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid upload filename %q", filename)
	}
	target := filepath.Join(dir, name)

	out, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return nil, fmt.Errorf("writing upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing upload file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		extracted, err := s.extractArchive(target, dir)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(target); err != nil {
			s.logger.WithField("path", target).Warn("Failed to remove extracted archive")
		}
		s.logger.WithFields(logrus.Fields{
			"study_id":  studyID,
			"archive":   name,
			"num_files": len(extracted),
		}).Info("Extracted uploaded archive")
		return extracted, nil
	}

	return []string{target}, nil
}

// extractArchive unpacks a zip file into dir, rejecting entries that would
// escape it.
func (s *LocalStore) extractArchive(archivePath, dir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer reader.Close()

	var extracted []string
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(dir, filepath.Clean(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
			return nil, fmt.Errorf("archive entry %q escapes the study directory", entry.Name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("creating archive entry directory: %w", err)
		}

		src, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("opening archive entry: %w", err)
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("creating archive entry file: %w", err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			dst.Close()
			return nil, fmt.Errorf("extracting archive entry: %w", err)
		}
		src.Close()
		if err := dst.Close(); err != nil {
			return nil, fmt.Errorf("closing archive entry file: %w", err)
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}

// ListFiles returns the stored file paths for a study, walking nested
// directories produced by archive extraction.
func (s *LocalStore) ListFiles(studyID string) ([]string, error) {
	dir := s.StudyDir(studyID)
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing study files: %w", err)
	}
	return files, nil
}

// IsDICOMFile sniffs the DICM marker. Files too short to carry the marker are
// not DICOM.
func IsDICOMFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, len(dicomMagic))
	if _, err := f.ReadAt(magic, dicomMagicOffset); err != nil {
		return false
	}
	return bytes.Equal(magic, dicomMagic)
}

// Release removes every stored file for a study. Releasing a study that has
// no stored files is a no-op.
func (s *LocalStore) Release(studyID string) error {
	dir := s.StudyDir(studyID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing study directory: %w", err)
	}
	s.logger.WithField("study_id", studyID).Debug("Released stored study files")
	return nil
}
