// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"atlas/internal/store"
)

// ArtifactStager moves the auxiliary, non-relational files a release
// produces alongside its rows: per-group structure diagrams and the
// graphml descriptor used to render a release's supergroup layout.
// Failures here are logged and never fail a commit.
type ArtifactStager interface {
	// StageGraph rewrites path's Group_<n> placeholders to the
	// committed motif id for each group labelToMotifID maps, and
	// returns the flattened contents for persisting on the release row.
	StageGraph(path string, labelToMotifID map[string]string) (string, error)

	// StageStructureFiles copies each group's .mat and .png files,
	// named for their pre-commit group label, to files named for their
	// committed motif ids (the .png files go into a per-release
	// directory).
	StageStructureFiles(typ store.ReleaseType, releaseID string, labelToMotifID map[string]string) error
}

// FileStager is the filesystem-backed ArtifactStager used outside tests.
type FileStager struct {
	// SourceDir holds the clustering run's per-group .mat files.
	SourceDir string
	// MatDestDir is the directory committed .mat files are copied into.
	MatDestDir string
	// DiagramSourceDir holds the clustering run's per-group .png files.
	DiagramSourceDir string
	// DiagramDestRoot is the parent directory under which one
	// per-release subdirectory of .png files is created.
	DiagramDestRoot string
}

// StageGraph implements ArtifactStager.
func (f *FileStager) StageGraph(path string, labelToMotifID map[string]string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("motifs: reading graph descriptor %s: %w", path, err)
	}

	// Longer labels first, so Group_1 cannot rewrite the prefix of Group_10.
	labels := make([]string, 0, len(labelToMotifID))
	for label := range labelToMotifID {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return len(labels[i]) > len(labels[j]) })

	text := string(contents)
	for _, label := range labels {
		motifID := labelToMotifID[label]
		parts := strings.SplitN(label, "_", 2)
		if len(parts) != 2 {
			continue
		}
		text = strings.ReplaceAll(text, "Group_"+parts[1], motifID)
	}
	text = strings.ReplaceAll(text, "\n", "")
	return text, nil
}

// StageStructureFiles implements ArtifactStager.
func (f *FileStager) StageStructureFiles(typ store.ReleaseType, releaseID string, labelToMotifID map[string]string) error {
	if f.MatDestDir != "" {
		if err := os.MkdirAll(f.MatDestDir, 0o755); err != nil {
			return fmt.Errorf("motifs: creating %s: %w", f.MatDestDir, err)
		}
	}

	imgDir := filepath.Join(f.DiagramDestRoot, string(typ)+releaseID)
	if f.DiagramDestRoot != "" {
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return fmt.Errorf("motifs: creating %s: %w", imgDir, err)
		}
	}

	var errs []error
	for label, motifID := range labelToMotifID {
		if f.SourceDir != "" && f.MatDestDir != "" {
			src := filepath.Join(f.SourceDir, label+".mat")
			dst := filepath.Join(f.MatDestDir, motifID+".mat")
			if err := copyIfExists(src, dst); err != nil {
				errs = append(errs, err)
			}
		}
		if f.DiagramSourceDir != "" && f.DiagramDestRoot != "" {
			src := filepath.Join(f.DiagramSourceDir, label+".png")
			dst := filepath.Join(imgDir, motifID+".png")
			if err := copyIfExists(src, dst); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("motifs: staging structure files: %d of %d copies failed: %w", len(errs), len(labelToMotifID)*2, errs[0])
	}
	return nil
}

func copyIfExists(src, dst string) error {
	// nolint:gosec // G304: src/dst are release-directory paths composed from operator config.
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("motifs: opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("motifs: creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("motifs: copying %s to %s: %w", src, dst, err)
	}
	return nil
}
