package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	cl "tradepost/internal/cli"
	"tradepost/internal/config"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "tpctl",
		Short:        "Tradepost market client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newMeCmd(&apiBase),
		newSectionsCmd(&apiBase),
		newShopCmd(&apiBase),
		newBrowseCmd(&apiBase),
		newTradeCmd(&apiBase, false),
		newTradeCmd(&apiBase, true),
		newSellAllCmd(&apiBase),
		newLimitCmd(&apiBase),
		newAdminCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// session loads the saved login; a session saved against another API base
// wins over the default.
func session(apiBase *string) (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	if sess.BaseURL != "" && *apiBase == config.LoadCLIFromEnv().APIBaseURL {
		*apiBase = sess.BaseURL
	}
	return sess, nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an access token issued by a market admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptSecret("Access token")
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			sess, err := cl.SessionFromToken(token, client.BaseURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			me, err := client.Me(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			sess.Name = me.Player.Name
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			msg := fmt.Sprintf("Logged in as %s.", me.Player.Name)
			if sess.IsAdmin() {
				msg += " Admin commands are available."
			}
			printSuccess(msg)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newMeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show balances, level and inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			me, err := newClient(apiBase).Me(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderMe(me)
			return nil
		},
	}
}

func newSectionsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List shop sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			sections, err := newClient(apiBase).Sections(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderSections(sections)
			return nil
		},
	}
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shop <section>",
		Short: "Show the items of a section with your prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			shop, err := newClient(apiBase).Shop(ctx, sess.AccessToken, args[0])
			if err != nil {
				if cl.IsStatus(err, http.StatusForbidden) {
					printWarn("You do not have access to this section.")
					return nil
				}
				return err
			}
			renderShop(shop)
			return nil
		},
	}
}

func newBrowseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <section>",
		Short: "Browse and trade a section interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			model := newBrowseModel(newClient(apiBase), sess.AccessToken, args[0])
			_, err = tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

func newTradeCmd(apiBase *string, sell bool) *cobra.Command {
	use, short := "buy <item> [quantity]", "Buy units of an item"
	if sell {
		use, short = "sell <item> [quantity]", "Sell units of an item"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			qty := 1
			if len(args) == 2 {
				qty, err = strconv.Atoi(args[1])
				if err != nil || qty < 1 {
					printWarn("Quantity must be a whole number >= 1.")
					if qty, err = promptInt("Quantity", 1); err != nil {
						return err
					}
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			var out cl.Outcome
			if sell {
				out, err = client.Sell(ctx, sess.AccessToken, args[0], qty)
			} else {
				out, err = client.Buy(ctx, sess.AccessToken, args[0], qty)
			}
			if err != nil {
				return err
			}
			renderOutcome(out)
			return nil
		},
	}
}

func newSellAllCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sellall",
		Short: "Sell every sellable good in your inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			res, err := newClient(apiBase).SellAll(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderSellAll(res)
			for _, o := range res.Outcomes {
				if o.Reason != "" {
					printError(fmt.Sprintf("%s: %s", o.ItemID, o.Reason))
				}
			}
			return nil
		},
	}
}

func newLimitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "limit <item>",
		Short: "Show today's purchases against an item's daily limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			l, err := newClient(apiBase).Limit(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			renderLimit(l)
			return nil
		},
	}
}

func newAdminCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Market administration (admin token required)",
	}

	var grantAdmin bool
	tokenCmd := &cobra.Command{
		Use:   "token [name]",
		Short: "Issue an access token for a player",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			} else if name, err = promptRequired("Player name"); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			issued, err := newClient(apiBase).IssueToken(ctx, sess.AccessToken, name, grantAdmin)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Token for %s (%s), expires %s:", name, strings.Join(issued.Roles, ","), issued.ExpiresAt.Local().Format("2006-01-02 15:04")))
			fmt.Println(issued.AccessToken)
			return nil
		},
	}
	tokenCmd.Flags().BoolVar(&grantAdmin, "admin", false, "grant the admin role")

	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Run one stock restoration pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			n, err := newClient(apiBase).Restore(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Restored stock of %d item(s).", n))
			return nil
		},
	}

	priceCmd := &cobra.Command{
		Use:   "price <item> <buy> <sell>",
		Short: "Change an item's base prices",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			buy, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("buy price: %w", err)
			}
			sell, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("sell price: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			it, err := newClient(apiBase).SetPrice(ctx, sess.AccessToken, args[0], buy, sell)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s now buys at %s and sells at %s.", it.ID, it.Buy.String(), it.Sell.String()))
			return nil
		},
	}

	var economyID string
	creditCmd := &cobra.Command{
		Use:   "credit <player> <amount>",
		Short: "Deposit into (or, with a negative amount, withdraw from) a player's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			if _, err := decimal.NewFromString(args[1]); err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			if economyID == "" {
				if economyID, err = promptOptional("Economy (blank for default)"); err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Do(ctx, http.MethodPost, "/v1/admin/players/"+url.PathEscape(args[0])+"/credit", sess.AccessToken, map[string]any{
				"economy": economyID,
				"amount":  args[1],
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s balance: %v", args[0], out["formatted"]))
			return nil
		},
	}
	creditCmd.Flags().StringVar(&economyID, "economy", "", "economy provider id")

	var logPage int
	logsCmd := &cobra.Command{
		Use:   "logs [player]",
		Short: "Show recorded trades, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			actor := ""
			if len(args) == 1 {
				actor = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			page, err := newClient(apiBase).Trades(ctx, sess.AccessToken, actor, logPage)
			if err != nil {
				return err
			}
			renderTrades(page, actor)
			return nil
		},
	}
	logsCmd.Flags().IntVar(&logPage, "page", 1, "page of 10 trades")

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the catalog file on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			sections, items, err := newClient(apiBase).Reload(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Catalog reloaded: %d section(s), %d item(s).", sections, items))
			return nil
		},
	}

	cmd.AddCommand(tokenCmd, restoreCmd, priceCmd, creditCmd, logsCmd, reloadCmd, newSectionCmd(apiBase))
	return cmd
}

func newSectionCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "section",
		Short: "Add or remove catalog sections",
	}

	var in cl.NewSection
	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create an empty section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			in.ID = args[0]
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			sec, err := newClient(apiBase).CreateSection(ctx, sess.AccessToken, in)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Section %s (%s) created, paid in %s.", sec.ID, sec.Name, sec.Economy))
			return nil
		},
	}
	addCmd.Flags().StringVar(&in.Name, "name", "", "display name")
	addCmd.Flags().StringVar(&in.Economy, "economy", "", "economy provider id")
	addCmd.Flags().StringVar(&in.Access, "access", "", "tag a player needs to open the section")
	addCmd.Flags().BoolVar(&in.Dynamic, "dynamic", true, "enable dynamic pricing")

	var yes bool
	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a section and every item in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session(apiBase)
			if err != nil {
				return err
			}
			if !yes {
				answer, err := promptOptional(fmt.Sprintf("Delete section %s and all of its items? (y/N)", args[0]))
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					printInfo("Cancelled.")
					return nil
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			n, err := newClient(apiBase).DeleteSection(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Section %s removed with %d item(s).", args[0], n))
			return nil
		},
	}
	removeCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	cmd.AddCommand(addCmd, removeCmd)
	return cmd
}
