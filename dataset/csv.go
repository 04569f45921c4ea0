package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadCSV reads one exported table. The dataset is named after the file.
// UTF-8 (with or without BOM) and Windows-1251 are accepted; the separator
// is ';' unless the header only contains ','.
func LoadCSV(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffSeparator(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Newf("%s has no header row", path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return New(name, header, records[1:]), nil
}

func decode(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, nil
	}
	return charmap.Windows1251.NewDecoder().Bytes(raw)
}

func sniffSeparator(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte{','}) > bytes.Count(header, []byte{';'}) {
		return ','
	}
	return ';'
}

// LoadDir loads every *.csv in dir concurrently.
func LoadDir(ctx context.Context, dir string, logger *zap.Logger) ([]*Dataset, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}

	out := make([]*Dataset, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := LoadCSV(p)
			if err != nil {
				return err
			}
			logger.Debug("dataset loaded",
				zap.String("name", d.Name),
				zap.Int("rows", d.Len()),
				zap.Int("columns", len(d.Columns)))
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
