//go:build ignore

// generate_hash.go prints the argon2id hash of the scheduler secret.
// Usage: go run scripts/generate_hash.go <secret>
//
// Put the result in .env as CRON_SECRET_HASH.
package main

import (
	"fmt"
	"os"

	"alchemyst.ke/billing/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/generate_hash.go <secret>")
		os.Exit(1)
	}

	hash, err := auth.HashSecret(os.Args[1])
	if err != nil {
		fmt.Printf("Failed to hash secret: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Secret hash (put it in .env as CRON_SECRET_HASH):")
	fmt.Println(hash)
}
