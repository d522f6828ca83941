// awctl is the operator CLI for an animewatch deployment. It talks to
// the database directly, so it works even when the API is down.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	catalogstore "github.com/example/animewatch/internal/catalog/store"
	identitystore "github.com/example/animewatch/internal/identity/store"
	"github.com/example/animewatch/internal/platform/db"
	"github.com/example/animewatch/internal/rbac"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:   "awctl",
	Short: "Operator tooling for an animewatch deployment",
	Long: `awctl performs one-off administrative tasks against the animewatch
database: applying schema migrations, promoting admins, curating the
featured carousel and assigning roles.`,
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := db.Migrate(ctx, pool, zap.NewNop()); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		})
	},
}

var revokeAdmin bool

var makeAdminCmd = &cobra.Command{
	Use:   "make-admin <username>",
	Short: "Grant (or with --revoke, remove) admin rights for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			users := identitystore.Store{DB: pool}
			if err := users.SetAdminByUsername(ctx, username, !revokeAdmin); err != nil {
				return err
			}
			if revokeAdmin {
				fmt.Printf("%s is no longer an admin\n", username)
			} else {
				fmt.Printf("%s is now an admin\n", username)
			}
			return nil
		})
	},
}

var featureCmd = &cobra.Command{
	Use:   "feature [show_id...]",
	Short: "Replace the featured carousel with the given show ids",
	Long: `Replaces the whole featured set. With no arguments the carousel is
cleared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			catalog := catalogstore.NewPostgresCatalogStore(pool)
			if err := catalog.SetFeatured(ctx, ids); err != nil {
				return err
			}
			fmt.Printf("featured set now holds %d shows\n", len(ids))
			return nil
		})
	},
}

var grantRoleCmd = &cobra.Command{
	Use:   "grant-role <user_id> [role_id...]",
	Short: "Replace a user's role set with the given role ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			roles := rbac.NewPostgresStore(pool)
			if err := roles.SetUserRoles(ctx, userID, ids); err != nil {
				return err
			}
			fmt.Printf("user %s now holds %d roles\n", userID, len(ids))
			return nil
		})
	},
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	dsn := strings.TrimSpace(databaseURL)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		return fmt.Errorf("database url required: pass --database-url or set DATABASE_URL")
	}
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL (defaults to DATABASE_URL)")
	makeAdminCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "Remove admin rights instead of granting them")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(makeAdminCmd)
	rootCmd.AddCommand(featureCmd)
	rootCmd.AddCommand(grantRoleCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
