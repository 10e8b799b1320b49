// Command seed-db loads a product catalog into the database and can mint
// development bearer tokens. The catalog file is JSON, optionally gzipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/shopkart/storefront/internal/domain/product"
	"github.com/shopkart/storefront/internal/repository"
)

const seedWorkers = 8

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
	Image string          `json:"image"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		issueToken   string
		issueAdmin   bool
		jwtSecret    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file (.gz supported)")
	flag.StringVar(&issueToken, "issue-token", "", "user ID to mint a development bearer token for (skips seeding)")
	flag.BoolVar(&issueAdmin, "admin", false, "mint the token with admin rights")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for token minting (or STORE_JWT_SECRET env)")
	flag.Parse()

	if issueToken != "" {
		if jwtSecret == "" {
			jwtSecret = os.Getenv("STORE_JWT_SECRET")
		}
		if jwtSecret == "" {
			slog.Error("JWT secret is required: set --jwt-secret or STORE_JWT_SECRET")
			os.Exit(1)
		}
		token, err := mintToken(jwtSecret, issueToken, issueAdmin)
		if err != nil {
			slog.Error("mint token failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := readProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}

	slog.Info("seeding products", slog.Int("count", len(products)))

	repo := repository.NewProductRepository(pool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedWorkers)
	for _, p := range products {
		g.Go(func() error {
			return repo.Upsert(gctx, product.Product{
				ID:    p.ID,
				Name:  p.Name,
				Price: p.Price,
				Stock: p.Stock,
				Image: p.Image,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

// readProducts parses the catalog file, transparently decompressing .gz.
func readProducts(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer gz.Close()
		r = gz
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

func mintToken(secret, userID string, admin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"is_admin": admin,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
