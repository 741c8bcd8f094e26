package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/samsara/booking-engine/internal/utils"
)

func main() {
	title := color.New(color.FgCyan, color.Bold)
	key := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	title.Println("===========================================")
	title.Println("Secret Generator for the booking engine")
	title.Println("===========================================")
	fmt.Println()

	secrets, err := utils.GenerateEngineSecrets()
	if err != nil {
		color.Red("Failed to generate secrets: %v", err)
		os.Exit(1)
	}

	key.Println("✅ Secrets generated successfully!")
	fmt.Println()
	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secrets.JWTSecret)
	fmt.Printf("GATEWAY_SIGNING_SECRET=%s\n", secrets.SigningSecret)
	fmt.Println()
	warn.Println("⚠️  IMPORTANT: Keep these secrets safe and never commit them to version control!")
	title.Println("===========================================")
}
