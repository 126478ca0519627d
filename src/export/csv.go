package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/shopspring/decimal"
)

// DefaultPattern matches the download name of the live table.
const DefaultPattern = models.DefaultFilePrefix + "_%Y%m%d_%H%M%S.csv"

// -----------------------------------------------------------------------------

// WriteCSV renders the table with a header row in column order.
// Unknown cells are written empty.
func WriteCSV(w io.Writer, table *models.MEnrichedTable) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(table.Columns); err != nil {
		return err
	}

	record := make([]string, len(table.Columns))
	for i := range table.Rows {
		for j, col := range table.Columns {
			record[j] = FormatValue(table.Value(i, col))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// -----------------------------------------------------------------------------

// FormatValue converts a cell to its CSV text. Numbers keep their source text.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case decimal.Decimal:
		return val.String()
	case decimal.NullDecimal:
		if !val.Valid {
			return ""
		}
		return val.Decimal.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// -----------------------------------------------------------------------------

// FileName expands %Y %m %d %H %M %S in pattern with t.
func FileName(pattern string, t time.Time) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	r := strings.NewReplacer(
		"%Y", fmt.Sprintf("%04d", t.Year()),
		"%m", fmt.Sprintf("%02d", int(t.Month())),
		"%d", fmt.Sprintf("%02d", t.Day()),
		"%H", fmt.Sprintf("%02d", t.Hour()),
		"%M", fmt.Sprintf("%02d", t.Minute()),
		"%S", fmt.Sprintf("%02d", t.Second()),
	)
	return r.Replace(pattern)
}

// -----------------------------------------------------------------------------

// Exporter writes every processed table to <Dir>/<source>/<pattern>.
type Exporter struct {
	Dir     string
	Pattern string
	Logger  *logger.Logger
}

func NewExporter(cfg models.MExportConfig, log *logger.Logger) *Exporter {
	return &Exporter{Dir: cfg.Dir, Pattern: cfg.FilePattern, Logger: log}
}

// -----------------------------------------------------------------------------

// Export writes the table and returns the file path.
func (e *Exporter) Export(table *models.MEnrichedTable) (string, error) {
	stamp := table.FetchedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	dir := filepath.Join(e.Dir, table.Source)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir '%s': %w", dir, err)
	}

	path := filepath.Join(dir, FileName(e.Pattern, stamp))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file '%s': %w", path, err)
	}

	if err := WriteCSV(f, table); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write export file '%s': %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	e.Logger.Info("Exported %d rows of %s tick %d to %s", len(table.Rows), table.Source, table.Tick, path)
	return path, nil
}
