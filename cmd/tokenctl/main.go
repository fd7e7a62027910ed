package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/congo-pay/token_ledger/internal/config"
	"github.com/congo-pay/token_ledger/internal/identity"
	"github.com/congo-pay/token_ledger/internal/infra"
	"github.com/congo-pay/token_ledger/internal/ledger"
	"github.com/congo-pay/token_ledger/internal/tokens"
)

const commandTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one command line and releases the store afterwards, including
// when the command fails.
func run(args []string, stdout, stderr io.Writer) error {
	e := &env{v: viper.New()}
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer e.close()
	return root.Execute()
}

// env holds what the persistent pre-run opened for a single invocation.
type env struct {
	v      *viper.Viper
	db     *pgxpool.Pool
	store  ledger.Store
	ledger *ledger.Ledger
}

func (e *env) close() {
	if e.store != nil {
		_ = e.store.Close()
		e.store = nil
	}
	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
}

func newRootCmd(e *env) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "tokenctl",
		Short: "Operate a token ledger store directly",
		Long: `tokenctl reads and mutates a token ledger without going through the
HTTP API. The operator's shell is trusted: --caller is taken at face value.

The store is chosen with --driver (bolt, postgres or memory) and the
matching --bolt-path or --database-url. The same settings may come from
STORE_DRIVER, BOLT_PATH and DATABASE_URL or from a config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.v.SetDefault("STORE_DRIVER", config.DriverBolt)
			e.v.SetDefault("BOLT_PATH", "token_ledger.db")
			e.v.AutomaticEnv()
			if cfgFile != "" {
				e.v.SetConfigFile(cfgFile)
				if err := e.v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", cfgFile, err)
				}
			}

			cfg := config.Config{
				StoreDriver: strings.ToLower(e.v.GetString("STORE_DRIVER")),
				DatabaseURL: e.v.GetString("DATABASE_URL"),
				BoltPath:    e.v.GetString("BOLT_PATH"),
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if cfg.StoreDriver == config.DriverPostgres {
				db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, 4)
				if err != nil {
					return err
				}
				e.db = db
			}
			store, err := infra.OpenLedgerStore(ctx, cfg, e.db)
			if err != nil {
				e.close()
				return err
			}
			e.store = store
			e.ledger = ledger.Attach(store)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("driver", "", "store driver: bolt, postgres or memory (default bolt)")
	flags.String("database-url", "", "postgres connection string")
	flags.String("bolt-path", "", "bolt database file (default token_ledger.db)")
	_ = e.v.BindPFlag("STORE_DRIVER", flags.Lookup("driver"))
	_ = e.v.BindPFlag("DATABASE_URL", flags.Lookup("database-url"))
	_ = e.v.BindPFlag("BOLT_PATH", flags.Lookup("bolt-path"))

	root.AddCommand(
		newMigrateCmd(e),
		newDeployCmd(e),
		newInfoCmd(e),
		newSupplyCmd(e),
		newBalanceCmd(e),
		newTransferCmd(e),
		newMintCmd(e),
		newVerifyCmd(e),
	)
	return root
}

// ── migrate ──────────────────────────────────────────────────────────────────

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger and identity schema",
		Long: `migrate prepares the selected store. For postgres it creates the
ledger and identity tables; bolt buckets are created on open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.db != nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
				defer cancel()
				if err := identity.NewPostgresRepository(e.db).Migrate(ctx); err != nil {
					return fmt.Errorf("migrate identity: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

// ── deploy ───────────────────────────────────────────────────────────────────

func newDeployCmd(e *env) *cobra.Command {
	var caller, supply string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create the token with --caller as owner and initial holder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := callerFlag(caller)
			if err != nil {
				return err
			}
			initial, err := ledger.ParseBalance(supply)
			if err != nil {
				return fmt.Errorf("--supply: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if err := e.ledger.Deploy(ctx, c, initial); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deployed: owner %s, total supply %s\n", c.ID(), initial)
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "owner account (required)")
	cmd.Flags().StringVar(&supply, "supply", "0", "initial supply credited to the owner")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

// ── info / supply / balance ──────────────────────────────────────────────────

func newInfoCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the owner and total supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			meta, err := e.ledger.Info(ctx)
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), format, meta)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func printInfo(w io.Writer, format string, meta ledger.Meta) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	case "text":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Owner:\t%s\n", meta.Owner)
		fmt.Fprintf(tw, "Total supply:\t%s\n", meta.TotalSupply)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func newSupplyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "supply",
		Short: "Print the total supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			supply, err := e.ledger.TotalSupply(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), supply)
			return nil
		},
	}
}

func newBalanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Print the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			balance, err := e.ledger.BalanceOf(ctx, ledger.AccountID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance)
			return nil
		},
	}
}

// ── transfer / mint ──────────────────────────────────────────────────────────

func newTransferCmd(e *env) *cobra.Command {
	var caller, to, value string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move --value tokens from --caller to --to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := callerFlag(caller)
			if err != nil {
				return err
			}
			amount, err := ledger.ParseBalance(value)
			if err != nil {
				return fmt.Errorf("--value: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			recipient, err := recipientFlag(to)
			if err != nil {
				return err
			}
			if err := e.ledger.Transfer(ctx, c, recipient, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transferred %s from %s to %s\n", amount, c.ID(), to)
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "sending account (required)")
	cmd.Flags().StringVar(&to, "to", "", "receiving account (required)")
	cmd.Flags().StringVar(&value, "value", "", "amount to move (required)")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newMintCmd(e *env) *cobra.Command {
	var caller, to, amount string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Create --amount new tokens for --to; --caller must be the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := callerFlag(caller)
			if err != nil {
				return err
			}
			n, err := ledger.ParseBalance(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			recipient, err := recipientFlag(to)
			if err != nil {
				return err
			}
			if err := e.ledger.Mint(ctx, c, recipient, n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "minted %s to %s\n", n, to)
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "owner account (required)")
	cmd.Flags().StringVar(&to, "to", "", "receiving account (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to create (required)")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// ── verify ───────────────────────────────────────────────────────────────────

func newVerifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that all balances add up to the total supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if err := e.ledger.Verify(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func callerFlag(raw string) (ledger.Caller, error) {
	id := ledger.AccountID(strings.TrimSpace(raw))
	if !id.Valid() {
		return ledger.Caller{}, errors.New("--caller is required")
	}
	return ledger.AuthenticatedCaller(id), nil
}

func recipientFlag(raw string) (ledger.AccountID, error) {
	id := ledger.AccountID(strings.TrimSpace(raw))
	if !id.Valid() {
		return "", fmt.Errorf("--to: %w", tokens.ErrInvalidAccount)
	}
	return id, nil
}
