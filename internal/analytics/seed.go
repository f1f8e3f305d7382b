package analytics

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Cities are the offices sample agents are assigned to.
var Cities = []string{"Seattle", "Austin", "Chicago", "Miami", "New York", "Dallas", "Los Angeles", "Denver"}

const dateLayout = "2006-01-02"

// SeedOptions controls sample generation.
type SeedOptions struct {
	Agents int
	Days   int
	Seed   int64
	// Today is the last sampled day; zero means the current local date.
	Today time.Time
}

// DefaultSeedOptions matches the dashboard defaults.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{Agents: 28, Days: 180, Seed: 17}
}

type agent struct {
	id   int
	name string
	city string
}

type sale struct {
	agentID int
	price   int64
	day     string
}

// Seed replaces all sample data. The same options always produce the same
// rows.
func (s *Store) Seed(ctx context.Context, opts SeedOptions) error {
	if opts.Agents <= 0 || opts.Days <= 0 {
		return fmt.Errorf("analytics: seed needs positive agents and days, got %d and %d", opts.Agents, opts.Days)
	}
	today := opts.Today
	if today.IsZero() {
		today = time.Now()
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(opts.Days - 1))

	agents, sales := generate(opts, start)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("analytics: seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM transactions", "DELETE FROM agents", "DELETE FROM sample_range"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("analytics: seed: %w", err)
		}
	}

	insertAgent, err := tx.PrepareContext(ctx, s.rebind("INSERT INTO agents (id, full_name, city) VALUES (?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("analytics: seed: %w", err)
	}
	defer func() { _ = insertAgent.Close() }()
	for _, a := range agents {
		if _, err := insertAgent.ExecContext(ctx, a.id, a.name, a.city); err != nil {
			return fmt.Errorf("analytics: insert agent %d: %w", a.id, err)
		}
	}

	insertSale, err := tx.PrepareContext(ctx, s.rebind("INSERT INTO transactions (id, agent_id, sale_price, created_at) VALUES (?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("analytics: seed: %w", err)
	}
	defer func() { _ = insertSale.Close() }()
	for i, sl := range sales {
		if _, err := insertSale.ExecContext(ctx, i+1, sl.agentID, sl.price, sl.day); err != nil {
			return fmt.Errorf("analytics: insert transaction %d: %w", i+1, err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO sample_range (min_date, max_date) VALUES (?, ?)"),
		start.Format(dateLayout), today.Format(dateLayout)); err != nil {
		return fmt.Errorf("analytics: seed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("analytics: seed: %w", err)
	}
	return nil
}

// generate draws agents and daily sales: a normal(8, 3) count per day and
// log-normal prices rounded down to 1000 with a floor of 50000.
func generate(opts SeedOptions, start time.Time) ([]agent, []sale) {
	seed := uint64(opts.Seed) //nolint:gosec // any bit pattern is a valid seed
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	agents := make([]agent, opts.Agents)
	for i := range agents {
		agents[i] = agent{
			id:   i + 1,
			name: fmt.Sprintf("Agent %02d", i+1),
			city: Cities[rng.IntN(len(Cities))],
		}
	}

	var sales []sale
	for d := range opts.Days {
		day := start.AddDate(0, 0, d).Format(dateLayout)
		n := max(0, int(gauss(rng, 8, 3)))
		for range n {
			a := agents[rng.IntN(len(agents))]
			price := int64(math.Floor(math.Exp(gauss(rng, 13.02, 0.35))/1000)) * 1000
			sales = append(sales, sale{agentID: a.id, price: max(50000, price), day: day})
		}
	}
	return agents, sales
}

func gauss(rng *rand.Rand, mean, stddev float64) float64 {
	return mean + rng.NormFloat64()*stddev
}
