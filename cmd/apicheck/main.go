package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/tutorbase/realtime/internal/api"
	"github.com/tutorbase/realtime/internal/auth"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "platform REST base URL")
	userID := flag.Int64("user", 1, "user id to query")
	tokenEnv := flag.String("token-env", "SESSION_TOKEN", "env var holding the session token")
	flag.Parse()

	client := api.NewClient(
		*baseURL,
		auth.FromEnv(*tokenEnv),
		api.WithTimeout(30*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("=== Testing GetBalance ===")
	balance, err := client.GetBalance(ctx, *userID)
	if err != nil {
		log.Fatalf("GetBalance failed: %v", err)
	}
	fmt.Printf("User: %d\n", balance.UserID)
	fmt.Printf("Balance: %s %s\n", balance.Amount, balance.Currency)
	fmt.Printf("Updated: %s\n", balance.UpdatedAt)

	fmt.Println("\n=== Testing GetDashboardMetrics ===")
	metrics, err := client.GetDashboardMetrics(ctx, *userID)
	if err != nil {
		log.Fatalf("GetDashboardMetrics failed: %v", err)
	}
	fmt.Printf("Active students: %d\n", metrics.ActiveStudents)
	fmt.Printf("Lessons today: %d\n", metrics.LessonsToday)
	fmt.Printf("Pending invitations: %d\n", metrics.PendingInvitations)

	fmt.Println("\n=== All API checks passed! ===")
}
