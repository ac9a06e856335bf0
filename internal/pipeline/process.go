package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

// process walks the candidate products in catalog order and returns the
// rendered frame paths, also in catalog order. Per-product problems are
// recorded on the report and never abort the loop; only scratch I/O errors
// are fatal.
func (p *Pipeline) process(ctx context.Context, products []domain.ProductRef, scratch string, report *domain.Report) ([]string, error) {
	framesDir := filepath.Join(scratch, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames directory: %w", err)
	}

	stride := p.opts.SampleStride
	if stride < 1 {
		stride = 1
	}

	var framePaths []string
	for i, product := range products {
		idx := i + 1 // catalog positions are 1-based

		var outcome domain.Outcome
		switch {
		case p.rangeExcludes(idx):
			outcome = domain.Skip(idx, product, domain.ReasonOutOfRange)
		case (idx-1)%stride != 0:
			outcome = domain.Skip(idx, product, domain.ReasonSampledOut)
		case product.QualityDegraded():
			p.deps.Logger.Warn("skipping product with degraded quality metadata",
				"index", idx, "product", product.ID, "quality", product.Quality)
			outcome = domain.Skip(idx, product, domain.ReasonQualityMetadata)
		default:
			var frames []string
			outcome, frames = p.processProduct(ctx, idx, product, scratch, framesDir)
			framePaths = append(framePaths, frames...)
		}

		if outcome.Status == domain.StatusFailed {
			p.deps.Logger.Error("product failed, continuing",
				"index", idx, "product", product.ID, "error", outcome.Err)
		}
		report.Add(outcome)
		p.deps.Metrics.ProductOutcomes.WithLabelValues(string(outcome.Status)).Inc()
		if outcome.Frames > 0 {
			p.deps.Metrics.FramesRendered.Add(float64(outcome.Frames))
		}
	}
	return framePaths, nil
}

// rangeExcludes applies the optional debug index sub-range. Each bound
// works independently; zero means unbounded.
func (p *Pipeline) rangeExcludes(idx int) bool {
	if p.opts.RangeFrom > 0 && idx < p.opts.RangeFrom {
		return true
	}
	return p.opts.RangeTo > 0 && idx > p.opts.RangeTo
}

// processProduct downloads, extracts, and renders one product. Its scratch
// directory is removed before returning so disk usage stays bounded by one
// product at a time; rendered frames live under framesDir and survive.
func (p *Pipeline) processProduct(ctx context.Context, idx int, product domain.ProductRef, scratch, framesDir string) (domain.Outcome, []string) {
	log := p.deps.Logger.With("index", idx, "product", product.ID)

	dir := filepath.Join(scratch, fmt.Sprintf("product_%04d", idx))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Fail(idx, product, fmt.Errorf("create product directory: %w", err)), nil
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove product directory", "path", dir, "error", err)
		}
	}()

	archivePath := filepath.Join(dir, "product.zip")
	dlStart := time.Now()
	if err := p.deps.Catalog.Download(ctx, product, archivePath); err != nil {
		return domain.Fail(idx, product, fmt.Errorf("download archive: %w", err)), nil
	}
	p.deps.Metrics.DownloadDuration.Observe(time.Since(dlStart).Seconds())

	if err := extractArchive(archivePath, dir); err != nil {
		return domain.Fail(idx, product, fmt.Errorf("extract archive: %w", err)), nil
	}

	rawFiles, err := findRawFiles(dir)
	if err != nil {
		return domain.Fail(idx, product, err), nil
	}
	if len(rawFiles) == 0 {
		log.Warn("archive contains no raw sensor files")
		return domain.Skip(idx, product, domain.ReasonNoRawFiles), nil
	}

	var (
		frames          []string
		qualityRejected int
		renderFailures  int
	)
	for j, rawPath := range rawFiles {
		framePath := filepath.Join(framesDir, fmt.Sprintf("frame_%04d_%02d.png", idx, j))

		decStart := time.Now()
		warnings, err := p.deps.Renderer.Render(rawPath, framePath)
		p.deps.Metrics.DecodeDuration.Observe(time.Since(decStart).Seconds())
		if err != nil {
			log.Warn("failed to render raw file", "file", filepath.Base(rawPath), "error", err)
			renderFailures++
			continue
		}
		if w, flagged := qualityWarning(warnings); flagged {
			log.Warn("discarding frame with raised quality flag",
				"file", filepath.Base(rawPath), "warning", w)
			if rmErr := os.Remove(framePath); rmErr != nil {
				log.Warn("failed to remove rejected frame", "path", framePath, "error", rmErr)
			}
			qualityRejected++
			continue
		}
		frames = append(frames, framePath)
	}

	switch {
	case len(frames) > 0:
		log.Info("product rendered", "frames", len(frames),
			"quality_rejected", qualityRejected, "render_failures", renderFailures)
		return domain.Ok(idx, product, len(frames)), frames
	case qualityRejected > 0 && renderFailures == 0:
		return domain.Skip(idx, product, domain.ReasonQualityWarning), nil
	default:
		return domain.Fail(idx, product,
			fmt.Errorf("no frames rendered: %d of %d raw files failed to decode", renderFailures, len(rawFiles))), nil
	}
}

// extractArchive unpacks a product zip into destDir, refusing entries that
// would escape it.
func extractArchive(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(destDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction directory", f.Name)
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create extracted file: %w", err)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extract archive entry %q: %w", f.Name, err)
	}
	return nil
}

// findRawFiles lists the .nat files under dir in lexical order, which for
// this collection matches sensing order.
func findRawFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".nat") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan extracted files: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// qualityWarning reports whether any decode warning indicates a raised
// quality flag, returning the first matching warning text.
func qualityWarning(warnings []string) (string, bool) {
	for _, w := range warnings {
		if strings.Contains(strings.ToLower(w), "quality flag") {
			return w, true
		}
	}
	return "", false
}
