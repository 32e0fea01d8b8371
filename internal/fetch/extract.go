package fetch

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Format is a recognized archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatTarGzip
	FormatTarXz
	FormatZip
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicXz   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZip  = []byte{'P', 'K', 0x03, 0x04}
)

// Detect identifies an archive format from its leading bytes.
func Detect(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return FormatTarGzip
	case bytes.HasPrefix(head, magicXz):
		return FormatTarXz
	case bytes.HasPrefix(head, magicZip):
		return FormatZip
	}
	return FormatUnknown
}

// ExtractArchive unpacks archive into dest, dropping up to strip leading
// directory components of every entry. A file's own name is never stripped,
// so a bare binary at the top of an archive still lands in dest. Directory
// entries consumed entirely by strip are skipped.
func (f *Fetcher) ExtractArchive(archive, dest string, strip int) error {
	file, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	head, err := br.Peek(len(magicXz))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading %s: %w", archive, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	switch Detect(head) {
	case FormatTarGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("reading gzip stream of %s: %w", archive, err)
		}
		defer zr.Close()
		return extractTar(zr, dest, strip)
	case FormatTarXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("reading xz stream of %s: %w", archive, err)
		}
		return extractTar(xr, dest, strip)
	case FormatZip:
		info, err := file.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", archive, err)
		}
		zr, err := zip.NewReader(file, info.Size())
		if err != nil {
			return fmt.Errorf("reading zip %s: %w", archive, err)
		}
		return extractZip(zr, dest, strip)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedArchive, archive)
}

func extractTar(r io.Reader, dest string, strip int) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}
		rel, ok, err := entryPath(hdr.Name, strip, hdr.Typeflag == tar.TypeDir)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := checkParents(dest, rel); err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		mode := hdr.FileInfo().Mode()

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, mode.Perm()|0o700); err != nil {
				return fmt.Errorf("creating dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, mode.Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(rel, hdr.Linkname); err != nil {
				return err
			}
			if err := symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			src, ok, err := entryPath(hdr.Linkname, strip, false)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: hard link %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := checkParents(dest, src); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Link(filepath.Join(dest, src), target); err != nil {
				return fmt.Errorf("linking %s: %w", target, err)
			}
		}
	}
}

func extractZip(zr *zip.Reader, dest string, strip int) error {
	for _, zf := range zr.File {
		rel, ok, err := entryPath(zf.Name, strip, zf.Mode().IsDir())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := checkParents(dest, rel); err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		mode := zf.Mode()

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating dir %s: %w", target, err)
			}
		case mode&os.ModeSymlink != 0:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", zf.Name, err)
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return fmt.Errorf("reading %s: %w", zf.Name, err)
			}
			if err := checkLink(rel, string(link)); err != nil {
				return err
			}
			if err := symlink(string(link), target); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", zf.Name, err)
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0o644
			}
			err = writeFile(target, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// entryPath strips leading components from an archive entry name and
// reports whether anything is left. Names that would escape the destination
// are rejected.
func entryPath(name string, strip int, dir bool) (string, bool, error) {
	clean := path.Clean(strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), "./"))
	if clean == "." || clean == "" {
		return "", false, nil
	}
	if path.IsAbs(clean) || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	parts := strings.Split(clean, "/")
	if len(parts) <= strip {
		if dir {
			return "", false, nil
		}
		strip = len(parts) - 1
	}
	return filepath.FromSlash(path.Join(parts[strip:]...)), true, nil
}

// checkLink rejects a symlink at rel whose target, resolved against the
// link's own directory, leaves the destination.
func checkLink(rel, linkname string) error {
	name := filepath.FromSlash(strings.ReplaceAll(linkname, `\`, "/"))
	if filepath.IsAbs(name) || strings.HasPrefix(linkname, "/") ||
		!filepath.IsLocal(filepath.Join(filepath.Dir(rel), name)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, rel, linkname)
	}
	return nil
}

// checkParents rejects rel when a directory between dest and rel already
// exists as a symlink, since writing through it could land outside dest.
func checkParents(dest, rel string) error {
	dir := filepath.Dir(rel)
	if dir == "." {
		return nil
	}
	cur := dest
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", cur, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is written through symlink %s", ErrUnsafePath, rel, cur)
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", target, err)
	}
	// Replace rather than truncate so an earlier link entry is not written through.
	if info, err := os.Lstat(target); err == nil && !info.IsDir() {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replacing %s: %w", target, err)
		}
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}

func symlink(oldname, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", target, err)
	}
	os.Remove(target)
	if err := os.Symlink(oldname, target); err != nil {
		return fmt.Errorf("symlinking %s -> %s: %w", target, oldname, err)
	}
	return nil
}
