package files

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"
)

type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252", "latin1":
		return EncodingWindows1252, nil
	}
	return "", fmt.Errorf("unsupported encoding %q", s)
}

type CSVOptions struct {
	Encoding  Encoding
	Delimiter rune
}

// ParseDelimiter reads a single-character delimiter. "tab" and "\t" mean a tab; blank
// means a comma.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return runes[0], nil
}

func (o CSVOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// ReadCSV decodes a vintage export into a frame where every column is a string. Types are
// resolved later by the normalizer so that a single bad cell never rejects a whole column.
func ReadCSV(r io.Reader, opts CSVOptions) (dataframe.DataFrame, error) {
	if opts.Encoding == EncodingWindows1252 {
		r = charmap.Windows1252.NewDecoder().Reader(r)
	}

	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(opts.delimiter()),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Error() != nil {
		return dataframe.DataFrame{}, df.Error()
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("dataframe is empty")
	}

	return df, nil
}

func OpenFileAndDecode(path string, opts CSVOptions) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	df, err := ReadCSV(file, opts)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return df, nil
}

// OpenArchive decodes the first CSV entry of a zipped export.
func OpenArchive(zipPath string, opts CSVOptions, appLogger *logger.Logger) (dataframe.DataFrame, error) {
	const component = "ArchiveReader"

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open zip file %s: %w", zipPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			appLogger.Debug(component, "Skipping archive entry: file=%s", f.Name)
			continue
		}
		if !isSafeEntry(f.Name) {
			return dataframe.DataFrame{}, fmt.Errorf("invalid file path detected (possible zip slip): %s", f.Name)
		}

		entry, err := f.Open()
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to open zipped file %s: %w", f.Name, err)
		}
		defer entry.Close()

		appLogger.Info(component, "Reading archive entry: zipPath=%s file=%s size=%d", zipPath, f.Name, f.UncompressedSize64)
		df, err := ReadCSV(entry, opts)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to decode %s: %w", f.Name, err)
		}
		return df, nil
	}

	return dataframe.DataFrame{}, fmt.Errorf("no csv entry found in %s", zipPath)
}

func isSafeEntry(name string) bool {
	clean := filepath.Clean(name)
	return !filepath.IsAbs(clean) && clean != ".." && !strings.HasPrefix(clean, ".."+string(os.PathSeparator))
}
