package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const houses = `Id,LotArea,MSZoning,MSSubClass,Alley,SalePrice
1,8450,RL,60,NA,12.247
2,9600,RL,20,NA,12.109
3,11250,RM,60,Grvl,12.317
4,9550,FV,70,Pave,11.849
5,14260,RL,60,NA,12.429
6,14115,RM,50,Grvl,11.870
`

func readHouses(t *testing.T, opts ...LoadOption) *Frame {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelInfo)
	opts = append([]LoadOption{WithLogger(logger)}, opts...)
	frame, err := ReadCSV(strings.NewReader(houses), "houses.csv", opts...)
	require.NoError(t, err)
	return frame
}

func TestReadCSVInfersKinds(t *testing.T) {
	frame := readHouses(t, WithCategorical("MSSubClass"))

	assert.Equal(t, 6, frame.NRows())
	assert.Equal(t, []string{"Id", "LotArea", "MSZoning", "MSSubClass", "Alley", "SalePrice"}, frame.Names())

	lot, err := frame.Column("LotArea")
	require.NoError(t, err)
	assert.Equal(t, Numeric, lot.Kind)
	assert.Equal(t, 11250.0, lot.Floats[2])

	zoning, _ := frame.Column("MSZoning")
	assert.Equal(t, Categorical, zoning.Kind)
	assert.Equal(t, []string{"FV", "RL", "RM"}, zoning.Levels)
	assert.Equal(t, "RM", zoning.Level(2))

	subclass, _ := frame.Column("MSSubClass")
	assert.Equal(t, Categorical, subclass.Kind)
	assert.Equal(t, []string{"20", "50", "60", "70"}, subclass.Levels)

	// カテゴリ列では NA も水準として扱う
	alley, _ := frame.Column("Alley")
	assert.Equal(t, []string{"Grvl", "NA", "Pave"}, alley.Levels)
}

func TestReadCSVLogsShape(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	_, err := ReadCSV(strings.NewReader(houses), "houses.csv", WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("dataset loaded"))
	assert.True(t, logger.ContainsField(log.SamplesKey, 6.0))
	assert.True(t, logger.ContainsField(log.ColumnsKey, 6.0))
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column string
	}{
		{"empty input", "", 1, ""},
		{"header only", "a,b\n", 2, ""},
		{"ragged row", "a,b\n1,2\n3\n", 3, ""},
		{"missing numeric value", "a,b\n1,2\nNA,3\n", 3, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := log.NewTestLogger(log.LevelInfo)
			_, err := ReadCSV(strings.NewReader(tt.input), "in.csv", WithLogger(logger))
			require.Error(t, err)

			var parseErr *errors.ParseError
			require.True(t, errors.As(err, &parseErr), "got %T: %v", err, err)
			assert.Equal(t, tt.line, parseErr.Line)
			assert.Equal(t, tt.column, parseErr.Column)
		})
	}
}

func TestReadCSVHeaderHandling(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	frame, err := ReadCSV(strings.NewReader("\ufeffx,x,g\n1,2,a\n3,4,b\n"), "bom.csv", WithLogger(logger))
	require.NoError(t, err)

	// BOM は取り除かれ、重複した列名には連番が付く
	assert.Equal(t, []string{"x_0", "x_1", "g"}, frame.Names())
	x1, err := frame.Column("x_1")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, x1.Floats)
}

func TestReadCSVMissingValues(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	input := "a,b,c\n1,?,x\n2,?,?\n3,?,y\n"
	frame, err := ReadCSV(strings.NewReader(input), "na.csv", WithNAValues("?"), WithLogger(logger))
	require.NoError(t, err)

	// 全て欠損の列はカテゴリ列になる
	b, _ := frame.Column("b")
	assert.Equal(t, Categorical, b.Kind)
	assert.Equal(t, []string{MissingLevel}, b.Levels)

	c, _ := frame.Column("c")
	assert.Equal(t, []string{MissingLevel, "x", "y"}, c.Levels)
	assert.Equal(t, MissingLevel, c.Level(1))

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n3,?\n"), "na.csv", WithNAValues("?"), WithLogger(logger))
	var parseErr *errors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 3, parseErr.Line)
	assert.Equal(t, "b", parseErr.Column)
}

func TestReadCSVSemicolon(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	frame, err := ReadCSV(strings.NewReader("x;y\n1;2\n3;4\n"), "semi.csv", WithComma(';'), WithLogger(logger))
	require.NoError(t, err)

	y, err := frame.Column("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, y.Floats)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(houses), 0o600))

	logger, _ := log.NewTestLogger(log.LevelInfo)
	frame, err := LoadCSV(path, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 6, frame.NRows())
	assert.True(t, logger.ContainsField(log.SourceKey, path))

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFrameDropIsImmutable(t *testing.T) {
	frame := readHouses(t)

	dropped, err := frame.Drop("Id", "Alley")
	require.NoError(t, err)

	assert.Equal(t, []string{"LotArea", "MSZoning", "MSSubClass", "SalePrice"}, dropped.Names())
	assert.Equal(t, 6, dropped.NRows())
	assert.Equal(t, 6, frame.NCols(), "original frame must keep all columns")
	assert.True(t, frame.Has("Id"))
}

func TestFrameDropMissingColumn(t *testing.T) {
	frame := readHouses(t)

	_, err := frame.Drop("Id", "Street", "Utilities")
	var colErr *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, []string{"Street", "Utilities"}, colErr.Columns)
}

func TestNewFrameRejectsMismatchedLengths(t *testing.T) {
	_, err := NewFrame(
		&Column{Name: "a", Kind: Numeric, Floats: []float64{1, 2}},
		&Column{Name: "b", Kind: Numeric, Floats: []float64{1}},
	)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = NewFrame(
		&Column{Name: "a", Kind: Numeric, Floats: []float64{1}},
		&Column{Name: "a", Kind: Numeric, Floats: []float64{2}},
	)
	assert.Error(t, err)
}

func TestNewFrameCategorical(t *testing.T) {
	frame, err := NewFrame(
		&Column{Name: "g", Kind: Categorical, Levels: []string{"b", "a", "unused"}, Codes: []int{0, 1, 0}},
		&Column{Name: "y", Kind: Numeric, Floats: []float64{1, 2, 3}},
	)
	require.NoError(t, err)

	// 水準は出現したものだけが整列して残る
	g, err := frame.Column("g")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Levels)
	assert.Equal(t, []int{1, 0, 1}, g.Codes)

	dropped, err := frame.Drop("g", "y")
	require.NoError(t, err)
	assert.Equal(t, 0, dropped.NCols())
	assert.Equal(t, 3, dropped.NRows())
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("SalePrice ~ .")
	require.NoError(t, err)
	assert.Equal(t, All("SalePrice"), f)
	assert.Equal(t, "SalePrice ~ .", f.String())

	f, err = ParseFormula(" SalePrice ~ GrLivArea + LotArea ")
	require.NoError(t, err)
	assert.Equal(t, []string{"GrLivArea", "LotArea"}, f.Features)
	assert.Equal(t, "SalePrice ~ GrLivArea + LotArea", f.String())

	for _, bad := range []string{"SalePrice", "~ a", "y ~", "y ~ a + + b"} {
		_, err := ParseFormula(bad)
		var valErr *errors.ValidationError
		assert.True(t, errors.As(err, &valErr), "input %q", bad)
	}
}

func TestFormulaResolve(t *testing.T) {
	frame := readHouses(t)

	all, err := All("SalePrice").Resolve(frame)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "LotArea", "MSZoning", "MSSubClass", "Alley"}, all.Features)

	_, err = Formula{Target: "SalePrice", Features: []string{"LotArea", "GrLivArea"}}.Resolve(frame)
	var colErr *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, []string{"GrLivArea"}, colErr.Columns)

	_, err = All("Price").Resolve(frame)
	assert.True(t, errors.As(err, &colErr))

	var valErr *errors.ValidationError
	_, err = All("MSZoning").Resolve(frame)
	assert.True(t, errors.As(err, &valErr), "categorical target must be rejected")

	_, err = Formula{Target: "SalePrice", Features: []string{"SalePrice"}}.Resolve(frame)
	assert.True(t, errors.As(err, &valErr))
}

func TestNewDesignTreatmentCoding(t *testing.T) {
	frame := readHouses(t)
	d, err := NewDesign(frame, Formula{Target: "SalePrice", Features: []string{"LotArea", "MSZoning"}})
	require.NoError(t, err)

	// FV が基準水準として落ちる
	assert.Equal(t, []string{"LotArea", "MSZoningRL", "MSZoningRM"}, d.Columns)
	assert.Equal(t, []int{0, 1, 1}, d.Terms)
	assert.Equal(t, 6, d.NRows())
	assert.Equal(t, 3, d.NCols())

	assert.Equal(t, []float64{8450, 1, 0}, d.X.RawRowView(0))
	assert.Equal(t, []float64{11250, 0, 1}, d.X.RawRowView(2))
	assert.Equal(t, []float64{9550, 0, 0}, d.X.RawRowView(3))
	assert.InDelta(t, 12.317, d.Y.AtVec(2), 1e-12)
}

func TestDesignRows(t *testing.T) {
	frame := readHouses(t)
	d, err := NewDesign(frame, Formula{Target: "SalePrice", Features: []string{"LotArea"}})
	require.NoError(t, err)

	X, y := d.Rows([]int{4, 1})
	r, c := X.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 14260.0, X.At(0, 0))
	assert.Equal(t, 9600.0, X.At(1, 0))
	assert.InDelta(t, 12.109, y.AtVec(1), 1e-12)

	// 元の行列は変更されない
	X.Set(0, 0, -1)
	assert.Equal(t, 14260.0, d.X.At(4, 0))
}

func TestDesignCheckLevels(t *testing.T) {
	frame := readHouses(t)
	d, err := NewDesign(frame, Formula{Target: "SalePrice", Features: []string{"LotArea", "MSZoning"}})
	require.NoError(t, err)

	// 学習側に RL と RM があれば問題ない
	assert.NoError(t, d.CheckLevels([]int{0, 2, 3}, []int{1, 5}, 1))

	// FV は行3にしか存在しない
	err = d.CheckLevels([]int{0, 1, 2, 4, 5}, []int{3}, 2)
	var levelErr *errors.UnseenLevelError
	require.True(t, errors.As(err, &levelErr))
	assert.Equal(t, "MSZoning", levelErr.Column)
	assert.Equal(t, "FV", levelErr.Level)
	assert.Equal(t, 2, levelErr.Fold)
}

func TestNewDesignWithLevels(t *testing.T) {
	frame := readHouses(t)
	formula := Formula{Target: "SalePrice", Features: []string{"LotArea", "MSZoning"}}
	levels := map[string][]string{"MSZoning": {"C (all)", "FV", "RH", "RL", "RM"}}

	d, err := NewDesign(frame, formula, WithLevels(levels))
	require.NoError(t, err)
	assert.Equal(t, []string{"LotArea", "MSZoningFV", "MSZoningRH", "MSZoningRL", "MSZoningRM"}, d.Columns)
	assert.Equal(t, []float64{9550, 1, 0, 0, 0}, d.X.RawRowView(3))
	assert.Equal(t, levels, d.Levels())

	_, err = NewDesign(frame, formula, WithLevels(map[string][]string{"MSZoning": {"RL", "RM"}}))
	var levelErr *errors.UnseenLevelError
	require.True(t, errors.As(err, &levelErr))
	assert.Equal(t, "FV", levelErr.Level)
	assert.Equal(t, 0, levelErr.Fold)

	_, err = NewDesign(frame, formula, WithLevels(map[string][]string{"LotArea": {"1"}}))
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestNewDesignRejectsNonFinite(t *testing.T) {
	inf := math.Inf(1)
	frame, err := NewFrame(
		&Column{Name: "x", Kind: Numeric, Floats: []float64{1, inf, 3}},
		&Column{Name: "y", Kind: Numeric, Floats: []float64{1, 2, 3}},
	)
	require.NoError(t, err)

	_, err = NewDesign(frame, All("y"))
	var numErr *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &numErr))
}

func TestNewDesignErrors(t *testing.T) {
	frame := readHouses(t)

	_, err := NewDesign(frame, Formula{Target: "SalePrice", Features: []string{"Nope"}})
	var colErr *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &colErr))

	single, err := NewFrame(
		&Column{Name: "g", Kind: Categorical, Levels: []string{"a"}, Codes: []int{0, 0}},
		&Column{Name: "y", Kind: Numeric, Floats: []float64{1, 2}},
	)
	require.NoError(t, err)
	_, err = NewDesign(single, All("y"))
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	empty, err := NewFrame(&Column{Name: "x", Kind: Numeric}, &Column{Name: "y", Kind: Numeric})
	require.NoError(t, err)
	_, err = NewDesign(empty, All("y"))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
