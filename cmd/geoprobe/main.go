// Command geoprobe calls the TomTom geo provider once and prints the result.
// It reads TOMTOM_API_KEY from the environment or a local .env file.
//
// Usage:
//
//	go run ./cmd/geoprobe -op geocode -q "Kololo Airstrip, Kampala, Uganda"
//	go run ./cmd/geoprobe -op flow -at 0.3476,32.5825
//	go run ./cmd/geoprobe -op route -at 0.3476,32.5825 -to 0.4244,33.2041
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/tomtom"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load(".env.local", ".env")

	op := flag.String("op", "geocode", "operation: geocode, flow or route")
	query := flag.String("q", "", "geocode query")
	at := flag.String("at", domain.DefaultLocation.String(), "coordinate as lat,lon (flow point or route origin)")
	to := flag.String("to", "", "route destination as lat,lon")
	country := flag.String("country", "UG", "geocode country filter")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	key := os.Getenv("TOMTOM_API_KEY")
	if key == "" {
		return domain.ErrMissingAPIKey
	}

	logger := sharedobs.NewLogger("debug", "text")
	client := tomtom.NewClient(key, *timeout, 1, logger, observability.NewMetricsForTesting(), tomtom.WithCountry(*country))
	ctx := context.Background()

	var (
		result any
		ok     bool
	)
	switch *op {
	case "geocode":
		if *query == "" {
			return errors.New("-q is required for geocode")
		}
		result, ok = client.Geocode(ctx, *query)
	case "flow":
		c, err := parseCoordinate(*at)
		if err != nil {
			return err
		}
		result, ok = client.TrafficFlow(ctx, c)
	case "route":
		from, err := parseCoordinate(*at)
		if err != nil {
			return err
		}
		dest, err := parseCoordinate(*to)
		if err != nil {
			return err
		}
		result, ok = client.CalculateRoute(ctx, []domain.Coordinate{from, dest})
	default:
		return fmt.Errorf("unknown -op %q", *op)
	}

	if !ok {
		return domain.ErrNoResults
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func parseCoordinate(s string) (domain.Coordinate, error) {
	latStr, lonStr, found := strings.Cut(s, ",")
	if !found {
		return domain.Coordinate{}, fmt.Errorf("coordinate %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return domain.Coordinate{Lat: lat, Lon: lon}, nil
}
