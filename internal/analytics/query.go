package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDate is returned when a query date is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date format")

// AllCities disables the city filter.
const AllCities = "All"

// Time series grains.
const (
	GrainDaily   = "daily"
	GrainWeekly  = "weekly"
	GrainMonthly = "monthly"
)

const topAgents = 10

// Meta describes the filters the dashboard offers.
type Meta struct {
	Cities  []string `json:"cities"`
	MinDate string   `json:"min_date"`
	MaxDate string   `json:"max_date"`
}

// Query selects the transactions to aggregate. From and To are inclusive
// YYYY-MM-DD dates.
type Query struct {
	From  string `json:"date_from"`
	To    string `json:"date_to"`
	City  string `json:"city"`
	Grain string `json:"grain"`
}

// Money is a sales amount. It marshals to a JSON number rather than the
// quoted string decimal.Decimal produces.
type Money struct {
	decimal.Decimal
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// Overview holds the headline figures.
type Overview struct {
	TotalSales   Money `json:"total_sales"`
	AvgSale      Money `json:"avg_sale"`
	Transactions int64 `json:"transactions"`
	UniqueAgents int64 `json:"unique_agents"`
}

// Point is one bucket of the time series.
type Point struct {
	Date       string `json:"date"`
	TotalSales Money  `json:"total_sales"`
}

// AgentTotal is one row of the top agents table.
type AgentTotal struct {
	Agent        string `json:"agent"`
	Transactions int64  `json:"transactions"`
	TotalSales   Money  `json:"total_sales"`
}

// CityTotal is one row of the city breakdown.
type CityTotal struct {
	City         string `json:"city"`
	Transactions int64  `json:"transactions"`
	TotalSales   Money  `json:"total_sales"`
}

// Report is the dashboard payload.
type Report struct {
	Overview      Overview     `json:"overview"`
	Series        []Point      `json:"series"`
	TopAgents     []AgentTotal `json:"top_agents"`
	CityBreakdown []CityTotal  `json:"city_breakdown"`
}

// Meta returns the city list, prefixed with AllCities, and the sampled date
// range.
func (s *Store) Meta(ctx context.Context) (Meta, error) {
	meta := Meta{Cities: []string{AllCities}}

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT city FROM agents ORDER BY city")
	if err != nil {
		return Meta{}, fmt.Errorf("analytics: meta: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return Meta{}, fmt.Errorf("analytics: meta: %w", err)
		}
		meta.Cities = append(meta.Cities, city)
	}
	if err := rows.Err(); err != nil {
		return Meta{}, fmt.Errorf("analytics: meta: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT min_date, max_date FROM sample_range").Scan(&meta.MinDate, &meta.MaxDate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Meta{}, fmt.Errorf("analytics: meta: %w", err)
	}
	return meta, nil
}

// Run aggregates the transactions selected by q.
func (s *Store) Run(ctx context.Context, q Query) (Report, error) {
	from, err := parseDate(q.From)
	if err != nil {
		return Report{}, err
	}
	to, err := parseDate(q.To)
	if err != nil {
		return Report{}, err
	}
	city := strings.TrimSpace(q.City)
	if city == "" {
		city = AllCities
	}
	grain := strings.ToLower(strings.TrimSpace(q.Grain))
	if grain == "" {
		grain = GrainDaily
	}

	where := " FROM transactions t JOIN agents a ON a.id = t.agent_id WHERE t.created_at >= ? AND t.created_at <= ?"
	args := []any{from.Format(dateLayout), to.Format(dateLayout)}
	if city != AllCities {
		where += " AND a.city = ?"
		args = append(args, city)
	}

	report := Report{
		Series:        []Point{},
		TopAgents:     []AgentTotal{},
		CityBreakdown: []CityTotal{},
	}

	var total decimal.NullDecimal
	err = s.db.QueryRowContext(ctx,
		s.rebind("SELECT SUM(t.sale_price), COUNT(*), COUNT(DISTINCT t.agent_id)"+where), args...).
		Scan(&total, &report.Overview.Transactions, &report.Overview.UniqueAgents)
	if err != nil {
		return Report{}, fmt.Errorf("analytics: overview: %w", err)
	}
	if total.Valid {
		report.Overview.TotalSales = Money{total.Decimal}
	}
	if report.Overview.Transactions > 0 {
		report.Overview.AvgSale = Money{report.Overview.TotalSales.
			Div(decimal.NewFromInt(report.Overview.Transactions)).Truncate(0)}
	}

	if report.Series, err = s.series(ctx, where, args, grain); err != nil {
		return Report{}, err
	}

	err = s.each(ctx, s.rebind("SELECT a.full_name, COUNT(*), SUM(t.sale_price)"+where+
		" GROUP BY a.id, a.full_name ORDER BY 3 DESC, 2 DESC, 1"+fmt.Sprintf(" LIMIT %d", topAgents)), args,
		func(rows *sql.Rows) error {
			var row AgentTotal
			if err := rows.Scan(&row.Agent, &row.Transactions, &row.TotalSales); err != nil {
				return err
			}
			report.TopAgents = append(report.TopAgents, row)
			return nil
		})
	if err != nil {
		return Report{}, fmt.Errorf("analytics: top agents: %w", err)
	}

	err = s.each(ctx, s.rebind("SELECT a.city, COUNT(*), SUM(t.sale_price)"+where+
		" GROUP BY a.city ORDER BY 3 DESC, 2 DESC, 1"), args,
		func(rows *sql.Rows) error {
			var row CityTotal
			if err := rows.Scan(&row.City, &row.Transactions, &row.TotalSales); err != nil {
				return err
			}
			report.CityBreakdown = append(report.CityBreakdown, row)
			return nil
		})
	if err != nil {
		return Report{}, fmt.Errorf("analytics: city breakdown: %w", err)
	}

	return report, nil
}

// series sums sales per day in SQL and folds the days into grain buckets.
func (s *Store) series(ctx context.Context, where string, args []any, grain string) ([]Point, error) {
	points := []Point{}
	err := s.each(ctx, s.rebind("SELECT t.created_at, SUM(t.sale_price)"+where+
		" GROUP BY t.created_at ORDER BY t.created_at"), args,
		func(rows *sql.Rows) error {
			var (
				day   string
				total decimal.Decimal
			)
			if err := rows.Scan(&day, &total); err != nil {
				return err
			}
			d, err := time.Parse(dateLayout, day)
			if err != nil {
				return fmt.Errorf("stored date %q: %w", day, err)
			}
			key := bucket(d, grain).Format(dateLayout)
			// days arrive sorted, so a bucket is always the last point
			if n := len(points); n > 0 && points[n-1].Date == key {
				points[n-1].TotalSales = Money{points[n-1].TotalSales.Add(total)}
				return nil
			}
			points = append(points, Point{Date: key, TotalSales: Money{total}})
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("analytics: series: %w", err)
	}
	return points, nil
}

func (s *Store) each(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// bucket maps a day to the first day of its week (Monday) or month. Unknown
// grains are daily.
func bucket(d time.Time, grain string) time.Time {
	switch grain {
	case GrainWeekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case GrainMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}
