package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/b2b-storefront/internal/auth"
)

var (
	tokenUser      string
	tokenEmail     string
	tokenRole      string
	tokenCompanies []string
	tokenIVA       float64
	tokenTTL       time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("JWT_SECRET")
		if len(secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be set and at least 32 characters long")
		}
		svc := auth.NewJWTService(secret, tokenTTL)
		token, expiresAt, err := svc.GenerateAccessToken(auth.TokenRequest{
			UserID:    tokenUser,
			Email:     tokenEmail,
			Role:      tokenRole,
			Companies: tokenCompanies,
			IVA:       tokenIVA,
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "User email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "buyer", "Role (buyer or admin)")
	tokenCmd.Flags().StringSliceVar(&tokenCompanies, "companies", nil, "Companies the user may buy from")
	tokenCmd.Flags().Float64Var(&tokenIVA, "iva", 0, "IVA percent, 0 uses the server default")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
