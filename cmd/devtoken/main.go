// Command devtoken prints a bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/platform/envutil"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
	"github.com/yungbote/freightquote-backend/internal/services"
)

func main() {
	var role, party string
	var ttl time.Duration
	flag.StringVar(&role, "role", "client", "client or carrier")
	flag.StringVar(&party, "party", "", "party uuid (random when empty)")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := envutil.String("JWT_SECRET_KEY", "dev-only-secret")
	issuer := envutil.String("JWT_ISSUER", "freightquote")

	partyID := uuid.New()
	if strings.TrimSpace(party) != "" {
		id, err := uuid.Parse(strings.TrimSpace(party))
		if err != nil {
			fmt.Printf("invalid -party: %v\n", err)
			os.Exit(2)
		}
		partyID = id
	}

	auth := services.NewAuthService(logger.Nop(), secret, issuer)
	token, err := auth.IssueToken(role, partyID, ttl)
	if err != nil {
		fmt.Printf("issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("party_id=%s role=%s\n%s\n", partyID, role, token)
}
