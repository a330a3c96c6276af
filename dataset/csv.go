package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"slices"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// LoadOption configures LoadCSV and ReadCSV.
type LoadOption func(*loadConfig)

type loadConfig struct {
	comma       rune
	categorical map[string]bool
	naValues    []string
	logger      log.Logger
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) LoadOption {
	return func(c *loadConfig) {
		c.comma = r
	}
}

// WithCategorical forces the named columns to be categorical even when
// every value parses as a number (coded categories such as MSSubClass).
func WithCategorical(names ...string) LoadOption {
	return func(c *loadConfig) {
		for _, n := range names {
			c.categorical[n] = true
		}
	}
}

// WithNAValues sets the tokens treated as missing. A missing value in a
// numeric column is a parse error; in a categorical column it becomes the
// level MissingLevel. The default is {"NA", ""}.
func WithNAValues(values ...string) LoadOption {
	return func(c *loadConfig) {
		c.naValues = values
	}
}

// WithLogger sets the logger used to report the loaded shape.
func WithLogger(l log.Logger) LoadOption {
	return func(c *loadConfig) {
		c.logger = l
	}
}

// LoadCSV reads a delimited text file with one header row.
func LoadCSV(path string, opts ...LoadOption) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "housecv: open dataset %s", path)
	}
	defer f.Close()
	return ReadCSV(f, path, opts...)
}

// ReadCSV parses delimited text from r with gota. source names the input
// in errors.
//
// gota detects the column types: a column whose non-missing values all
// parse as numbers is numeric, anything else is categorical with its
// distinct values sorted as levels. Missing cells of a categorical column
// become the level MissingLevel.
func ReadCSV(r io.Reader, source string, opts ...LoadOption) (*Frame, error) {
	cfg := &loadConfig{
		comma:       ',',
		categorical: make(map[string]bool),
		naValues:    []string{"NA", ""},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("dataset")
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "housecv: read %s", source)
	}
	// BOM付きUTF-8への対応
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewParseError(source, 1, "", errors.ErrEmptyData)
	}

	types := make(map[string]series.Type, len(cfg.categorical))
	for name := range cfg.categorical {
		types[name] = series.String
	}
	df := dataframe.ReadCSV(bytes.NewReader(raw),
		dataframe.WithDelimiter(cfg.comma),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(cfg.naValues),
		dataframe.WithTypes(types),
	)
	if df.Err != nil {
		return nil, csvError(source, df.Err)
	}
	if err := checkNumericMissing(source, df); err != nil {
		return nil, err
	}
	frame, err := fromDataFrame("ReadCSV", df)
	if err != nil {
		return nil, err
	}

	cfg.logger.Info("dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.SourceKey, source,
		log.SamplesKey, frame.NRows(),
		log.ColumnsKey, frame.NCols(),
	)
	return frame, nil
}

// checkNumericMissing returns a ParseError for the first missing cell of a
// numeric column. Columns where every cell is missing are read as
// categorical and never reach this check.
func checkNumericMissing(source string, df dataframe.DataFrame) error {
	for _, name := range df.Names() {
		col := df.Col(name)
		if t := col.Type(); t != series.Int && t != series.Float {
			continue
		}
		if row := slices.Index(col.IsNaN(), true); row >= 0 {
			// ヘッダ行を1行目として数える
			return errors.NewParseError(source, row+2, name, errors.New("missing value in numeric column"))
		}
	}
	return nil
}

func csvError(source string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errors.NewParseError(source, pe.Line, "", pe.Err)
	}
	// gota はヘッダ行しかない入力を空の DataFrame として拒否する
	return errors.NewParseError(source, 2, "", errors.Wrap(errors.ErrEmptyData, err.Error()))
}
