package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/veristry/veristry/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	apiURL    string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veristry",
	Short: "Veristry identity ledger CLI",
	Long: `veristry is the command-line interface for the Veristry identity ledger.

It creates identities, manages verification outcomes and access grants,
and records proof attestations against a ledgerd server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.veristry")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("veristry")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if apiURL == "" {
			apiURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.veristry/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "ledgerd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token (default $VERISTRY_TOKEN or config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(grantsCmd)
	rootCmd.AddCommand(attestCmd)
	rootCmd.AddCommand(attestationsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	return client.New(apiURL, client.WithToken(authToken))
}

// parseCategory accepts a category name or its numeric code.
func parseCategory(s string) (uint8, error) {
	switch s {
	case "government_id":
		return 0, nil
	case "biometric":
		return 1, nil
	case "address":
		return 2, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 2 {
		return 0, fmt.Errorf("unknown category %q (want government_id, biometric, or address)", s)
	}
	return uint8(n), nil
}

// parseStatus accepts a status name or its numeric code.
func parseStatus(s string) (uint8, error) {
	switch s {
	case "pending":
		return 0, nil
	case "verified":
		return 1, nil
	case "rejected":
		return 2, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 2 {
		return 0, fmt.Errorf("unknown status %q (want pending, verified, or rejected)", s)
	}
	return uint8(n), nil
}

// ── login ────────────────────────────────────────────────────────────────────

var (
	loginClientID string
	loginSecret   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange client credentials for a bearer token",
	Long: `login authenticates against the ledgerd token endpoint and prints a
bearer token. Store it for later commands:

  export VERISTRY_TOKEN=$(veristry login --client-id verifier-svc --client-secret s3cret)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(apiURL)
		if err := c.Authenticate(context.Background(), loginClientID, loginSecret); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Println(c.Token())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "API client ID")
	loginCmd.Flags().StringVar(&loginSecret, "client-secret", "", "API client secret")
	_ = loginCmd.MarkFlagRequired("client-id")
	_ = loginCmd.MarkFlagRequired("client-secret")
}

// ── create ───────────────────────────────────────────────────────────────────

var createCmd = &cobra.Command{
	Use:   "create <owner> <data-digest>",
	Short: "Create a new identity",
	Long: `create records a new identity for owner. data-digest is the 64-char hex
SHA-256 digest of the owner's off-ledger identity data.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().CreateIdentity(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		fmt.Printf("✓ Identity created for %s\n", args[0])
		return nil
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <owner> <category> <status>",
	Short: "Set a verification outcome (admin only)",
	Long: `verify sets owner's status for one verification category.

  veristry verify 0xa11ce government_id verified`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := parseCategory(args[1])
		if err != nil {
			return err
		}
		status, err := parseStatus(args[2])
		if err != nil {
			return err
		}
		if err := newClient().UpdateVerification(context.Background(), args[0], category, status); err != nil {
			return fmt.Errorf("update verification: %w", err)
		}
		fmt.Printf("✓ %s: %s → %s\n", args[0], args[1], args[2])
		return nil
	},
}

// ── status ───────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status <owner> <category>",
	Short: "Show a verification status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := parseCategory(args[1])
		if err != nil {
			return err
		}
		status, err := newClient().VerificationStatus(context.Background(), args[0], category)
		if err != nil {
			return fmt.Errorf("verification status: %w", err)
		}
		fmt.Println(status)
		return nil
	},
}

// ── grant ────────────────────────────────────────────────────────────────────

var (
	grantTTL       time.Duration
	grantDataTypes []string
)

var grantCmd = &cobra.Command{
	Use:   "grant <grantor> <grantee>",
	Short: "Grant a grantee time-bounded access",
	Long: `grant creates (or overwrites) the access grant from grantor to grantee.

  veristry grant 0xa11ce 0xb0b --ttl 24h --data-types government_id,address`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		expiresAt := time.Now().Add(grantTTL)
		err := newClient().GrantAccess(context.Background(), args[0], args[1], expiresAt, grantDataTypes)
		if err != nil {
			return fmt.Errorf("grant access: %w", err)
		}
		fmt.Printf("✓ %s granted %s access until %s\n", args[0], args[1], expiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	grantCmd.Flags().DurationVar(&grantTTL, "ttl", 24*time.Hour, "grant lifetime from now")
	grantCmd.Flags().StringSliceVar(&grantDataTypes, "data-types", nil, "data types the grant covers")
}

// ── revoke ───────────────────────────────────────────────────────────────────

var revokeCmd = &cobra.Command{
	Use:   "revoke <grantor> <grantee>",
	Short: "Revoke an access grant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().RevokeAccess(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("revoke access: %w", err)
		}
		fmt.Printf("✓ Revoked %s's access from %s\n", args[1], args[0])
		return nil
	},
}

// ── check ────────────────────────────────────────────────────────────────────

var checkCmd = &cobra.Command{
	Use:   "check <grantee> <grantor>",
	Short: "Check whether grantee currently holds access from grantor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := newClient().CheckAccess(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("check access: %w", err)
		}
		if ok {
			fmt.Println("access: granted")
			return nil
		}
		fmt.Println("access: denied")
		return nil
	},
}

// ── grants ───────────────────────────────────────────────────────────────────

var grantsCmd = &cobra.Command{
	Use:   "grants <grantor>",
	Short: "List a grantor's active grants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grants, err := newClient().ActiveGrants(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list grants: %w", err)
		}
		if len(grants) == 0 {
			fmt.Println("no active grants")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "GRANTEE\tEXPIRES\tDATA TYPES")
		for _, g := range grants {
			expires := time.Unix(g.ExpiresAt, 0).UTC().Format(time.RFC3339)
			types := "-"
			if len(g.AllowedDataTypes) > 0 {
				types = fmt.Sprintf("%v", g.AllowedDataTypes)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", g.Grantee, expires, types)
		}
		return w.Flush()
	},
}

// ── attest ───────────────────────────────────────────────────────────────────

var attestCmd = &cobra.Command{
	Use:   "attest <verifier> <subject> <proof-digest> <data-type>",
	Short: "Record a proof attestation against a subject",
	Long: `attest appends a zero-knowledge proof attestation. The verifier must hold
an active access grant from the subject.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := newClient().RecordAttestation(context.Background(), args[0], args[1], args[2], args[3])
		if err != nil {
			return fmt.Errorf("record attestation: %w", err)
		}
		fmt.Printf("✓ Attestation #%d recorded\n", id)
		return nil
	},
}

// ── attestations ─────────────────────────────────────────────────────────────

var attestationsCmd = &cobra.Command{
	Use:   "attestations <subject>",
	Short: "List attestations recorded for a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		atts, err := newClient().Attestations(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list attestations: %w", err)
		}
		if len(atts) == 0 {
			fmt.Println("no attestations")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERIFIER\tDATA TYPE\tRECORDED\tPROOF")
		for _, a := range atts {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				a.ID, a.Verifier, a.DataType, a.RecordedAt.UTC().Format(time.RFC3339), a.ProofDigest)
		}
		return w.Flush()
	},
}

// ── history ──────────────────────────────────────────────────────────────────

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <owner>",
	Short: "Show an owner's verification history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := newClient().VerificationHistory(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("verification history: %w", err)
		}
		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(evs)
		}
		if len(evs) == 0 {
			fmt.Println("no verification events")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tCATEGORY\tSTATUS")
		for _, e := range evs {
			category, status := "-", "-"
			if e.Category != nil {
				category = categoryName(*e.Category)
			}
			if e.Status != nil {
				status = statusName(*e.Status)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				e.Seq, e.Timestamp.UTC().Format(time.RFC3339), category, status)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output raw JSON events")
}

func categoryName(c uint8) string {
	switch c {
	case 0:
		return "government_id"
	case 1:
		return "biometric"
	case 2:
		return "address"
	}
	return strconv.Itoa(int(c))
}

func statusName(s uint8) string {
	switch s {
	case 0:
		return "pending"
	case 1:
		return "verified"
	case 2:
		return "rejected"
	}
	return strconv.Itoa(int(s))
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veristry %s\n", version)
	},
}
