package db

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seed constants mirror the analytics domain: four sales regions, three
// customer segments, and a category tree with five products per subcategory.
var (
	seedRegions  = []string{"North", "South", "East", "West"}
	seedSegments = []string{"Enterprise", "SMB", "Consumer"}

	seedCategories = []struct {
		name          string
		subcategories []string
	}{
		{"Electronics", []string{"Laptops", "Phones", "Tablets", "Accessories"}},
		{"Furniture", []string{"Desks", "Chairs", "Storage", "Tables"}},
		{"Office Supplies", []string{"Paper", "Pens", "Organizers", "Binders"}},
	}

	firstNames = []string{"John", "Jane", "Bob", "Alice", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
)

const (
	seedCustomerCount = 100
	seedSalesDays     = 730
)

// Seed populates the analytics tables with deterministic pseudo-random data:
// seasonal revenue with regional and segment weighting plus occasional spike
// and crash days, so trend and comparison queries return interesting shapes.
// Existing rows are removed first, so seeding is repeatable.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	rng := rand.New(rand.NewSource(42))

	if _, err := pool.Exec(ctx, "TRUNCATE sales_data, customers, products RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("reset tables: %w", err)
	}

	productCount, err := seedProducts(ctx, pool, rng)
	if err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	if err := seedCustomers(ctx, pool, rng); err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}
	if err := seedSales(ctx, pool, rng, productCount); err != nil {
		return fmt.Errorf("seed sales: %w", err)
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand) (int, error) {
	var rows [][]any
	for _, cat := range seedCategories {
		for _, sub := range cat.subcategories {
			for i := 0; i < 5; i++ {
				cost := round2(10 + rng.Float64()*490)
				price := round2(cost * (1.2 + rng.Float64()*0.8))
				rows = append(rows, []any{
					fmt.Sprintf("%s Product %d", sub, i+1), cat.name, sub, cost, price,
				})
			}
		}
	}

	_, err := pool.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{"name", "category", "subcategory", "unit_cost", "unit_price"},
		pgx.CopyFromRows(rows))
	return len(rows), err
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	rows := make([][]any, 0, seedCustomerCount)
	for i := 0; i < seedCustomerCount; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		rows = append(rows, []any{
			first + " " + last,
			fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			seedSegments[rng.Intn(len(seedSegments))],
			seedRegions[rng.Intn(len(seedRegions))],
			today.AddDate(0, 0, -(30 + rng.Intn(700))),
			round2(100 + rng.Float64()*49900),
		})
	}

	_, err := pool.CopyFrom(ctx,
		pgx.Identifier{"customers"},
		[]string{"name", "email", "segment", "region", "joined_date", "lifetime_value"},
		pgx.CopyFromRows(rows))
	return err
}

func seedSales(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, productCount int) error {
	regionMultiplier := map[string]float64{
		"North": 1.25, "West": 1.15, "South": 1.0, "East": 0.8,
	}

	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -seedSalesDays)
	var rows [][]any
	for day := 0; day < seedSalesDays; day++ {
		date := start.AddDate(0, 0, day)

		// Annual seasonality plus slow growth over the window.
		seasonal := 1 + 0.4*math.Sin(2*math.Pi*float64(day)/365)
		growth := 1 + 0.5*float64(day)/seedSalesDays

		daily := seasonal * growth
		switch r := rng.Float64(); {
		case r < 0.06:
			daily *= 2.5 + rng.Float64()*1.5 // spike day
		case r < 0.10:
			daily *= 0.2 + rng.Float64()*0.3 // crash day
		}

		orders := int(daily * float64(3+rng.Intn(5)))
		for o := 0; o < orders; o++ {
			region := seedRegions[rng.Intn(len(seedRegions))]
			quantity := 1 + rng.Intn(10)
			unitPrice := round2((20 + rng.Float64()*980) * regionMultiplier[region])
			rows = append(rows, []any{
				date,
				1 + rng.Intn(productCount),
				1 + rng.Intn(seedCustomerCount),
				quantity,
				unitPrice,
				round2(float64(quantity) * unitPrice),
				region,
			})
		}
	}

	_, err := pool.CopyFrom(ctx,
		pgx.Identifier{"sales_data"},
		[]string{"date", "product_id", "customer_id", "quantity", "unit_price", "total_amount", "region"},
		pgx.CopyFromRows(rows))
	return err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
