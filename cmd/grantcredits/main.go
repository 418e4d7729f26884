// Command grantcredits issues purchase or bonus credits to a user account.
// It is the admin-side stand-in for a payment webhook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/adapter/repo"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
)

func main() {
	var (
		userFlag   string
		amountFlag int64
		typeFlag   string
		descFlag   string
	)

	flag.StringVar(&userFlag, "user", "", "user ID to credit (UUID)")
	flag.Int64Var(&amountFlag, "amount", 0, "credits to grant (positive)")
	flag.StringVar(&typeFlag, "type", "purchase", "transaction type (purchase or bonus)")
	flag.StringVar(&descFlag, "desc", "", "ledger description")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	if amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}
	txType := domain.TransactionType(strings.ToLower(strings.TrimSpace(typeFlag)))
	if txType != domain.TransactionTypePurchase && txType != domain.TransactionTypeBonus {
		exitWithError(fmt.Errorf("unsupported transaction type %q", typeFlag))
	}
	description := strings.TrimSpace(descFlag)
	if description == "" {
		description = fmt.Sprintf("manual %s grant", txType)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	ledgerSvc := ledger.NewService(repo.NewAccountRepository(pool))
	if err := ledgerSvc.Grant(ctx, userID, amountFlag, txType, description); err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	account, err := ledgerSvc.Balance(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load balance: %w", err))
	}
	fmt.Printf("Granted %d credits (%s) to %s\n", amountFlag, txType, userID)
	fmt.Printf("balance=%d total_purchased=%d total_spent=%d\n",
		account.Balance, account.TotalPurchased, account.TotalSpent)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
