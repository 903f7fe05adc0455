package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"roulette/application"
	"roulette/auth"
	"roulette/cmd"
	"roulette/config"
	"roulette/database"
	"roulette/domain/services"
	"roulette/events"
	"roulette/repository"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		var err error
		handled := true
		switch os.Args[1] {
		case "migrate":
			err = handleMigrationCommand()
		case "update-balance":
			err = handleBalanceAdjustment()
		case "grant-admin":
			err = handleGrantAdmin()
		case "issue-token":
			err = handleIssueToken()
		case "simulate":
			err = handleSimulate()
		default:
			handled = false
		}
		if handled {
			if err != nil {
				log.Fatalf("%s error: %v", os.Args[1], err)
			}
			return
		}
	}

	// Normal server operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: roulette migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// withAccountHandler connects to the database for a one-off admin command
func withAccountHandler(fn func(ctx context.Context, accounts application.AccountHandler) error) error {
	ctx := context.Background()
	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Events raised here have no subscribers
	uowFactory := repository.NewUnitOfWorkFactory(db, events.NewBus())
	accounts := application.NewAccountHandler(uowFactory, cfg.StartingBalance, application.DefaultOperationTimeout)
	return fn(ctx, accounts)
}

func handleBalanceAdjustment() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: roulette update-balance account-id amount")
	}
	accountID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", os.Args[2], err)
	}
	amount, err := strconv.ParseInt(os.Args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", os.Args[3], err)
	}

	return withAccountHandler(func(ctx context.Context, accounts application.AccountHandler) error {
		account, err := accounts.AdjustBalance(ctx, accountID, amount, 0)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"accountID":  account.ID,
			"amount":     amount,
			"newBalance": account.Balance,
		}).Info("Balance adjusted")
		return nil
	})
}

func handleGrantAdmin() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: roulette grant-admin account-id")
	}
	accountID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", os.Args[2], err)
	}

	return withAccountHandler(func(ctx context.Context, accounts application.AccountHandler) error {
		if err := accounts.GrantAdmin(ctx, accountID); err != nil {
			return err
		}
		log.WithField("accountID", accountID).Info("Admin role granted")
		return nil
	})
}

// handleIssueToken prints a signed token, for local play and admin scripts
func handleIssueToken() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: roulette issue-token account-id [username]")
	}
	accountID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", os.Args[2], err)
	}
	username := ""
	if len(os.Args) > 3 {
		username = os.Args[3]
	}

	cfg := config.Get()
	token, expiresAt, err := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL).Issue(auth.Identity{AccountID: accountID, Username: username})
	if err != nil {
		return err
	}
	fmt.Println(token)
	log.WithField("expiresAt", expiresAt).Info("Token issued")
	return nil
}

// handleSimulate draws the configured wheel offline and prints its payout profile
func handleSimulate() error {
	trials := 100000
	if len(os.Args) > 2 {
		parsed, err := strconv.Atoi(os.Args[2])
		if err != nil {
			return fmt.Errorf("invalid trial count %q: %w", os.Args[2], err)
		}
		trials = parsed
	}

	wheel, err := config.ParseWheel(os.Getenv("WHEEL_SECTORS"), os.Getenv("WHEEL_MULTIPLIERS"))
	if err != nil {
		return err
	}

	analysis, err := cmd.AnalyzeWheel(wheel, trials, services.NewSeededRandomizer(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	cmd.PrintWheelAnalysis(os.Stdout, analysis)
	return nil
}
