package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"blindtest/internal/config"
	"blindtest/internal/fileutil"
	"blindtest/internal/logging"
	"blindtest/internal/project"
	"blindtest/internal/textutil"
)

const (
	// DocumentName is the archive entry holding the project document.
	DocumentName = "save.bt"
	// Extension is appended to archives created without an explicit path.
	Extension = ".bta"
	// DefaultOpenDir is where Unpack extracts when no folder is given.
	DefaultOpenDir = "bt_archive"

	countdownDir = "countdown"
)

var (
	ErrMissingMedia = errors.New("media path missing")
	ErrNoDocument   = errors.New("archive has no project document")
	ErrUnsafeEntry  = fileutil.ErrUnsafePath
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Options tune archive creation.
type Options struct {
	// Compression is config.CompressionNone or config.CompressionZstd.
	Compression string
	Logger      *slog.Logger
}

// Summary describes a created archive.
type Summary struct {
	Path       string
	Clips      int
	Files      int
	Bytes      int64
	Compressed bool
}

// DefaultArchivePath returns the archive path used when none is given: the
// document's stem with the archive extension, next to the document.
func DefaultArchivePath(docPath string) string {
	base := filepath.Base(docPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(docPath), stem+Extension)
}

// Pack writes the project at docPath and its media into archivePath. Relative
// media paths resolve against the document's directory. The archive is
// written to a temporary file and renamed into place on success.
func Pack(ctx context.Context, docPath, archivePath string, opts Options) (Summary, error) {
	logger := logging.NewComponentLogger(opts.Logger, "archive")
	compress := false
	switch strings.ToLower(strings.TrimSpace(opts.Compression)) {
	case "", config.CompressionNone:
	case config.CompressionZstd:
		compress = true
	default:
		return Summary{}, fmt.Errorf("unsupported archive compression %q", opts.Compression)
	}

	doc, err := project.Load(docPath)
	if err != nil {
		return Summary{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".blindtest-archive-*.tmp")
	if err != nil {
		return Summary{}, fmt.Errorf("create archive: %w", err)
	}
	var encoder *zstd.Encoder
	committed := false
	defer func() {
		if !committed {
			if encoder != nil {
				_ = encoder.Close()
			}
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buffered := bufio.NewWriterSize(tmp, 256*1024)
	var sink io.Writer = buffered
	if compress {
		encoder, err = zstd.NewWriter(buffered)
		if err != nil {
			return Summary{}, fmt.Errorf("create zstd encoder: %w", err)
		}
		sink = encoder
	}

	p := &packer{
		ctx:     ctx,
		tw:      tar.NewWriter(sink),
		baseDir: filepath.Dir(docPath),
		now:     time.Now(),
	}
	summary := Summary{Path: archivePath, Clips: len(doc.Clips), Compressed: compress}

	taken := map[string]struct{}{strings.ToLower(countdownDir): {}, strings.ToLower(DocumentName): {}}
	for i := range doc.Clips {
		clip := &doc.Clips[i]
		folder := textutil.UniqueName(textutil.FolderName(clip.Title), taken)
		music, err := p.addMedia(clip.MusicPath, path.Join(folder, "music"))
		if err != nil {
			return Summary{}, fmt.Errorf("clip %q music: %w", clip.Title, err)
		}
		image, err := p.addMedia(clip.ImagePath, path.Join(folder, "image"))
		if err != nil {
			return Summary{}, fmt.Errorf("clip %q image: %w", clip.Title, err)
		}
		clip.MusicPath = music
		clip.ImagePath = image
	}
	if countdown := doc.Countdown(); countdown != "" {
		name, err := p.addMedia(countdown, countdownDir)
		if err != nil {
			return Summary{}, fmt.Errorf("countdown: %w", err)
		}
		doc.Settings.Countdown = &name
	}

	var encoded bytes.Buffer
	if err := doc.Encode(&encoded); err != nil {
		return Summary{}, err
	}
	if err := p.addBytes(DocumentName, encoded.Bytes()); err != nil {
		return Summary{}, err
	}

	if err := p.tw.Close(); err != nil {
		return Summary{}, fmt.Errorf("finish tar: %w", err)
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return Summary{}, fmt.Errorf("finish zstd: %w", err)
		}
	}
	if err := buffered.Flush(); err != nil {
		return Summary{}, fmt.Errorf("flush archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Summary{}, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), archivePath); err != nil {
		_ = os.Remove(tmp.Name())
		committed = true
		return Summary{}, fmt.Errorf("commit archive: %w", err)
	}
	committed = true

	summary.Files = p.files
	summary.Bytes = p.bytes
	logger.Info("archive created",
		logging.String("archive", archivePath),
		logging.Int("clips", summary.Clips),
		logging.Int("files", summary.Files),
		logging.Bool("compressed", compress),
	)
	return summary, nil
}

type packer struct {
	ctx     context.Context
	tw      *tar.Writer
	baseDir string
	now     time.Time
	files   int
	bytes   int64
}

// addMedia stores the file at src under dir and returns its entry name.
func (p *packer) addMedia(src, dir string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", ErrMissingMedia
	}
	if err := p.ctx.Err(); err != nil {
		return "", err
	}
	if !filepath.IsAbs(src) {
		src = filepath.Join(p.baseDir, src)
	}
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", src)
	}
	name := path.Join(dir, entryName(src, dir))

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return "", err
	}
	hdr.Name = name
	hdr.Format = tar.FormatPAX
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	if err := p.tw.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("write header %s: %w", name, err)
	}
	n, err := io.Copy(p.tw, f)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	p.files++
	p.bytes += n
	return name, nil
}

// entryName returns the sanitized base name of src. When sanitizing leaves no
// stem it falls back to the last element of dir plus the original extension.
func entryName(src, dir string) string {
	name := textutil.SanitizeFileName(filepath.Base(src))
	if stem := strings.TrimSuffix(name, filepath.Ext(name)); strings.Trim(stem, ".") != "" {
		return name
	}
	ext := textutil.SanitizeFileName(filepath.Ext(src))
	if strings.Trim(ext, ".") == "" {
		ext = ""
	}
	return path.Base(dir) + ext
}

func (p *packer) addBytes(name string, data []byte) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  p.now,
		Format:   tar.FormatPAX,
	}
	if err := p.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := p.tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	p.files++
	p.bytes += int64(len(data))
	return nil
}

// Unpack extracts archivePath into destDir, rewrites the document's media
// paths to absolute paths under destDir and stores it back. It returns the
// path of the extracted document.
func Unpack(ctx context.Context, archivePath, destDir string, logger *slog.Logger) (string, error) {
	logger = logging.NewComponentLogger(logger, "archive")

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 256*1024)
	var src io.Reader = br
	if magic, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("open zstd stream: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	base, err := filepath.Abs(destDir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}

	files := 0
	tr := tar.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read archive: %w", err)
		}
		target, err := fileutil.SafeJoin(base, hdr.Name)
		if err != nil {
			return "", err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			mode := os.FileMode(hdr.Mode).Perm() | 0o600
			if err := fileutil.WriteVerified(target, tr, hdr.Size, mode); err != nil {
				return "", fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			files++
		case tar.TypeSymlink, tar.TypeLink:
			return "", fmt.Errorf("%w: link entry %q", ErrUnsafeEntry, hdr.Name)
		default:
			logger.Debug("skipping archive entry", logging.String("name", hdr.Name), logging.Int("type", int(hdr.Typeflag)))
		}
	}

	docPath := filepath.Join(base, DocumentName)
	doc, err := project.Load(docPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoDocument
		}
		return "", err
	}
	if err := doc.RewritePaths(func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		return fileutil.SafeJoin(base, p)
	}); err != nil {
		return "", err
	}
	if err := doc.Store(docPath); err != nil {
		return "", err
	}

	logger.Info("archive opened",
		logging.String("archive", archivePath),
		logging.String("folder", base),
		logging.Int("files", files),
	)
	return docPath, nil
}
