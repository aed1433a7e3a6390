// Command main runs the database seeder.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"bookshare/internal/bootstrap"
	"bookshare/internal/cache"
	"bookshare/internal/config"
	"bookshare/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of members to create")
	numListings := flag.Int("listings", 80, "Number of listings to create")
	numLoans := flag.Int("loans", 25, "Number of reservations to make")
	shouldClean := flag.Bool("clean", false, "Delete all loans, listings, users and genres first")
	fixtures := flag.String("fixtures", "", "YAML fixture file (defaults to the bundled fixtures)")
	fast := flag.Bool("fast", true, "Hash passwords with the minimum bcrypt cost")
	randSeed := flag.Int64("seed", 0, "Random seed for generated data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fx, err := loadFixtures(*fixtures)
	if err != nil {
		log.Fatalf("Failed to load fixtures: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close(ctx)

	s := seed.NewSeeder(rt.DB, cache.NewCounters(rt.Redis), seed.Options{
		NumUsers:    *numUsers,
		NumListings: *numListings,
		NumLoans:    *numLoans,
		ShouldClean: *shouldClean,
		FastHashing: *fast,
		RandSeed:    *randSeed,
	})
	report, err := s.Run(ctx, fx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d genres, %d users, %d listings, %d loans (%d returned)",
		report.Genres, report.Users, report.Listings, report.Loans, report.Returned)
}

func loadFixtures(path string) (*seed.Fixtures, error) {
	if path == "" {
		return seed.DefaultFixtures()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return seed.LoadFixtures(data)
}
