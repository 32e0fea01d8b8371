package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name string
	body string
	link string
	dir  bool
	mode int64
}

// releaseEntries mimics a typical release tarball with a versioned top dir.
var releaseEntries = []entry{
	{name: "tool-1.0/", dir: true},
	{name: "tool-1.0/bin/", dir: true},
	{name: "tool-1.0/bin/tool", body: "#!/bin/sh\necho tool\n", mode: 0o755},
	{name: "tool-1.0/README", body: "readme", mode: 0o644},
	{name: "tool-1.0/bin/alias", link: "tool"},
}

func writeTar(t *testing.T, w *tar.Writer, entries []entry) {
	t.Helper()
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := w.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func tarGz(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	writeTar(t, tar.NewWriter(zw), entries)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tarXz(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	writeTar(t, tar.NewWriter(xw), entries)
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipOf(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		body := e.body
		switch {
		case e.dir:
			hdr.SetMode(os.ModeDir | 0o755)
		case e.link != "":
			hdr.SetMode(os.ModeSymlink | 0o777)
			body = e.link
		default:
			hdr.SetMode(os.FileMode(e.mode))
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if !e.dir {
			if _, err := w.Write([]byte(body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "archive")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading %s: %v", p, err)
	}
	return string(data)
}

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		head []byte
		want Format
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08}, FormatTarGzip},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0x00}, FormatTarXz},
		{"zip", []byte("PK\x03\x04rest"), FormatZip},
		{"text", []byte("#!/bin/sh"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tt.head); got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractArchive_StripsTopDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	t.Parallel()

	tests := []struct {
		name string
		data func(*testing.T, []entry) []byte
	}{
		{"tar.gz", tarGz},
		{"tar.xz", tarXz},
		{"zip", zipOf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			archive := writeArchive(t, tt.data(t, releaseEntries))
			dest := filepath.Join(t.TempDir(), "out")

			if err := New().ExtractArchive(archive, dest, 1); err != nil {
				t.Fatalf("ExtractArchive: %v", err)
			}
			if got := readFile(t, filepath.Join(dest, "bin", "tool")); got != "#!/bin/sh\necho tool\n" {
				t.Errorf("bin/tool = %q", got)
			}
			if got := readFile(t, filepath.Join(dest, "README")); got != "readme" {
				t.Errorf("README = %q", got)
			}
			info, err := os.Stat(filepath.Join(dest, "bin", "tool"))
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm()&0o100 == 0 {
				t.Errorf("bin/tool mode = %v, want owner-executable", info.Mode())
			}
			if _, err := os.Stat(filepath.Join(dest, "tool-1.0")); !os.IsNotExist(err) {
				t.Error("top-level directory should have been stripped")
			}
			if got, err := os.Readlink(filepath.Join(dest, "bin", "alias")); err != nil || got != "tool" {
				t.Errorf("bin/alias -> %q, %v; want tool", got, err)
			}
		})
	}
}

func TestExtractArchive_NoStrip(t *testing.T) {
	t.Parallel()
	archive := writeArchive(t, tarGz(t, []entry{{name: "server.jar", body: "jar", mode: 0o644}}))
	dest := t.TempDir()
	if err := New().ExtractArchive(archive, dest, 0); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dest, "server.jar")); got != "jar" {
		t.Errorf("server.jar = %q", got)
	}
}

func TestExtractArchive_StripKeepsFileNames(t *testing.T) {
	t.Parallel()
	archive := writeArchive(t, tarGz(t, []entry{
		{name: "mprocs", body: "bin", mode: 0o755},
		{name: "pkg/", dir: true},
		{name: "pkg/lib.so", body: "lib", mode: 0o644},
	}))
	dest := t.TempDir()
	if err := New().ExtractArchive(archive, dest, 1); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dest, "lib.so")); got != "lib" {
		t.Errorf("lib.so = %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "mprocs")); got != "bin" {
		t.Errorf("a top-level file must keep its name, mprocs = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "pkg")); !os.IsNotExist(err) {
		t.Error("a directory consumed entirely by strip must be skipped")
	}
}

func TestExtractArchive_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data func(*testing.T) []byte
		want error
	}{
		{
			name: "parent traversal",
			data: func(t *testing.T) []byte {
				return tarGz(t, []entry{{name: "../evil", body: "x", mode: 0o644}})
			},
			want: ErrUnsafePath,
		},
		{
			name: "absolute path",
			data: func(t *testing.T) []byte {
				return tarGz(t, []entry{{name: "/etc/evil", body: "x", mode: 0o644}})
			},
			want: ErrUnsafePath,
		},
		{
			name: "absolute symlink",
			data: func(t *testing.T) []byte {
				return tarGz(t, []entry{{name: "pkg/evil", link: "/tmp/outside"}})
			},
			want: ErrUnsafePath,
		},
		{
			name: "relative symlink leaving dest",
			data: func(t *testing.T) []byte {
				return tarGz(t, []entry{{name: "pkg/evil", link: "../../outside"}})
			},
			want: ErrUnsafePath,
		},
		{
			name: "zip symlink leaving dest",
			data: func(t *testing.T) []byte {
				return zipOf(t, []entry{{name: "evil", link: "../outside"}})
			},
			want: ErrUnsafePath,
		},
		{
			name: "write through symlinked dir",
			data: func(t *testing.T) []byte {
				return tarGz(t, []entry{
					{name: "pkg/", dir: true},
					{name: "pkg/real/", dir: true},
					{name: "pkg/alias", link: "real"},
					{name: "pkg/alias/owned.txt", body: "x", mode: 0o644},
				})
			},
			want: ErrUnsafePath,
		},
		{
			name: "not an archive",
			data: func(*testing.T) []byte { return []byte("#!/bin/sh\necho hi\n") },
			want: ErrUnsupportedArchive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			archive := writeArchive(t, tt.data(t))
			err := New().ExtractArchive(archive, t.TempDir(), 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractArchive_SymlinkEscapeWritesNothingOutside(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	t.Parallel()
	outside := t.TempDir()
	archive := writeArchive(t, tarGz(t, []entry{
		{name: "pkg/evil", link: outside},
		{name: "pkg/evil/owned.txt", body: "x", mode: 0o644},
	}))
	err := New().ExtractArchive(archive, t.TempDir(), 1)
	if !errors.Is(err, ErrUnsafePath) {
		t.Errorf("err = %v, want ErrUnsafePath", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "owned.txt")); !os.IsNotExist(err) {
		t.Error("owned.txt was written outside the destination")
	}
}
