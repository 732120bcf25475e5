package screener

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

const (
	defaultShortWindow = 10
	defaultLongWindow  = 30
)

// Engine runs formula screens against the analytics store.
type Engine struct {
	conn *sql.DB
}

// New creates a screener Engine over an already-open analytics connection.
func New(conn *sql.DB) *Engine {
	return &Engine{conn: conn}
}

// Request is the input to RunFormulaScreen.
type Request struct {
	Formula     string
	AsOf        string
	Universe    []string
	TopK        int
	RankBy      string
	SortOrder   string
	ShortWindow int
	LongWindow  int
}

// Result is the outcome of a formula screen.
type Result struct {
	Formula       string                   `json:"formula"`
	SQLExpression string                   `json:"sql_expression"`
	Identifiers   []string                 `json:"identifiers"`
	AsOf          string                   `json:"as_of"`
	Universe      []string                 `json:"universe"`
	RankBy        string                   `json:"rank_by"`
	SortOrder     string                   `json:"sort_order"`
	Rows          []map[string]interface{} `json:"rows"`
	Count         int                      `json:"count"`
}

// RunFormulaScreen compiles formula (and rank_by, if given) to SQL and
// evaluates it against the latest-as-of-AsOf row per symbol, materializing
// sma_short/sma_long/sma_gap_pct/day_range_pct/return_1d_pct via window
// functions over market_ohlcv.
func (e *Engine) RunFormulaScreen(req Request) (*Result, error) {
	if req.TopK <= 0 {
		return nil, errkind.New(errkind.Invalid, "top_k must be positive")
	}
	if len(req.Universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "universe must not be empty")
	}
	sortOrder := strings.ToLower(strings.TrimSpace(req.SortOrder))
	if sortOrder == "" {
		sortOrder = "desc"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		return nil, errkind.New(errkind.Invalid, "sort_order must be one of: asc, desc")
	}

	compiled, err := ValidateFormula(req.Formula)
	if err != nil {
		return nil, err
	}

	rankSQL := "close"
	rankBy := "close"
	if strings.TrimSpace(req.RankBy) != "" {
		rankCompiled, err := ValidateFormula(req.RankBy)
		if err != nil {
			return nil, err
		}
		rankSQL = rankCompiled.SQLExpression
		rankBy = req.RankBy
	}

	shortWindow := req.ShortWindow
	if shortWindow <= 0 {
		shortWindow = defaultShortWindow
	}
	longWindow := req.LongWindow
	if longWindow <= 0 {
		longWindow = defaultLongWindow
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(req.Universe)), ",")
	query := fmt.Sprintf(`
	WITH prices AS (
	  SELECT
	    symbol, timestamp, open, high, low, close, volume,
	    ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY timestamp DESC) AS rn,
	    AVG(close) OVER (PARTITION BY symbol ORDER BY timestamp ROWS BETWEEN %d PRECEDING AND CURRENT ROW) AS sma_short,
	    AVG(close) OVER (PARTITION BY symbol ORDER BY timestamp ROWS BETWEEN %d PRECEDING AND CURRENT ROW) AS sma_long,
	    LAG(close) OVER (PARTITION BY symbol ORDER BY timestamp) AS prev_close
	  FROM market_ohlcv
	  WHERE symbol IN (%s) AND timestamp <= ?
	),
	base AS (
	  SELECT
	    symbol, timestamp, open, high, low, close, volume, sma_short, sma_long,
	    CASE WHEN sma_long IS NULL OR sma_long = 0 THEN NULL ELSE ((sma_short - sma_long) / sma_long) * 100.0 END AS sma_gap_pct,
	    CASE WHEN close = 0 THEN NULL ELSE ((high - low) / close) * 100.0 END AS day_range_pct,
	    CASE WHEN prev_close IS NULL OR prev_close = 0 THEN NULL ELSE ((close - prev_close) / prev_close) * 100.0 END AS return_1d_pct
	  FROM prices
	  WHERE rn = 1
	)
	SELECT symbol, timestamp, open, high, low, close, volume, sma_short, sma_long, sma_gap_pct, day_range_pct, return_1d_pct
	FROM base
	WHERE %s
	ORDER BY %s %s, close DESC, symbol ASC
	LIMIT ?`, shortWindow-1, longWindow-1, placeholders, compiled.SQLExpression, rankSQL, strings.ToUpper(sortOrder))

	args := make([]interface{}, 0, len(req.Universe)+2)
	for _, sym := range req.Universe {
		args = append(args, sym)
	}
	args = append(args, req.AsOf, req.TopK)

	rows, err := e.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run formula screen: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read screen result columns: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan screen row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate screen rows: %w", err)
	}

	return &Result{
		Formula: req.Formula, SQLExpression: compiled.SQLExpression, Identifiers: compiled.Identifiers,
		AsOf: req.AsOf, Universe: req.Universe, RankBy: rankBy, SortOrder: sortOrder,
		Rows: out, Count: len(out),
	}, nil
}
