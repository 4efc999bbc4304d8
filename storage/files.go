package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrFileTooLarge: Upload überschreitet die konfigurierte Obergrenze.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	// ErrNotPDF: Upload ist kein PDF (Endung oder Magic-Bytes passen nicht).
	ErrNotPDF = errors.New("only PDF files are allowed")
	// ErrOutsideRoot: berechneter Pfad liegt außerhalb der Upload-Wurzel.
	ErrOutsideRoot = errors.New("path resolves outside the storage root")
)

var pdfMagic = []byte("%PDF")

// FileStore verwaltet die Binärdateien unterhalb einer festen Wurzel.
// Dateinamen werden kollisionsfrei generiert, Löschungen werden nur
// innerhalb der Wurzel ausgeführt.
type FileStore struct {
	Root    string
	MaxSize int64
	Logger  *zap.Logger
}

// NewFileStore legt die Upload-Wurzel an und gibt den Store zurück.
func NewFileStore(root string, maxSize int64, logger *zap.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{Root: abs, MaxSize: maxSize, Logger: logger}, nil
}

// SaveUpload prüft Größe und Typ, speichert die Datei unter einem generierten
// Namen und gibt den relativen Pfad zurück. Größen- und Typfehler sind
// unterscheidbar und werden vor dem Schreiben gemeldet.
func (s *FileStore) SaveUpload(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.MaxSize {
		return "", ErrFileTooLarge
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return "", ErrNotPDF
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(src, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return "", ErrNotPDF
	}

	name := fmt.Sprintf("%d-%s.pdf", time.Now().UnixNano(), uuid.NewString())
	dst, err := os.Create(filepath.Join(s.Root, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := dst.Write(head); err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return name, nil
}

// Resolve macht aus dem gespeicherten relativen Pfad einen absoluten und
// weist alles zurück, was außerhalb der Wurzel landet.
func (s *FileStore) Resolve(relPath string) (string, error) {
	full := filepath.Join(s.Root, relPath)
	rel, err := filepath.Rel(s.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// Remove löscht die referenzierte Datei. Pfade außerhalb der Wurzel werden
// geloggt und verweigert statt gelöscht.
func (s *FileStore) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	full, err := s.Resolve(relPath)
	if err != nil {
		s.Logger.Warn("Refusing to delete file outside storage root", zap.String("path", relPath))
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep entfernt Dateien unterhalb der Wurzel, die von keinem Datensatz mehr
// referenziert werden, und gibt die Anzahl der Löschungen zurück.
func (s *FileStore) Sweep(referenced map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := referenced[e.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.Root, e.Name())); err != nil {
			s.Logger.Warn("Failed to remove orphaned file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		s.Logger.Info("Removed orphaned file", zap.String("file", e.Name()))
		removed++
	}
	return removed, nil
}
