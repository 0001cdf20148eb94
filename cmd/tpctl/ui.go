package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	cl "tradepost/internal/cli"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = cellStyle.Foreground(lipgloss.Color("8"))
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errors.New(label + " is required")
	}
	return text, nil
}

func promptInt(label string, min int) (int, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(text)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderMe(me cl.Me) {
	accent.Printf("\n== %s ==\n", me.Player.Name)
	fmt.Printf("Level:     %d (%s EXP)\n", me.Player.Level, humanize.Comma(int64(me.Player.Experience)))
	fmt.Printf("Playtime:  %s\n", me.Player.Playtime)
	if len(me.Player.Tags) > 0 {
		fmt.Printf("Tags:      %s\n", strings.Join(me.Player.Tags, ", "))
	}
	if me.DiscountLabel != "" {
		fmt.Printf("Discount:  %s\n", success.Sprint(me.DiscountLabel))
	}

	fmt.Println()
	accent.Println("Balances")
	if len(me.Balances) == 0 {
		printInfo("No economies available.")
	} else {
		t := newTable().Headers("ECONOMY", "BALANCE")
		for _, b := range me.Balances {
			t.Row(b.Economy, b.Formatted)
		}
		fmt.Println(t)
	}

	fmt.Println()
	accent.Println("Inventory")
	if len(me.Player.Inventory) == 0 {
		printInfo("Inventory is empty.")
	} else {
		keys := make([]string, 0, len(me.Player.Inventory))
		for k := range me.Player.Inventory {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := newTable().Headers("GOOD", "COUNT")
		for _, k := range keys {
			t.Row(k, humanize.Comma(int64(me.Player.Inventory[k])))
		}
		fmt.Println(t)
	}
	if n := len(me.Player.Ground); n > 0 {
		printWarn(fmt.Sprintf("%d kind(s) of goods did not fit and were dropped.", n))
	}
	fmt.Println()
}

func renderSections(sections []cl.Section) {
	accent.Println("\n== SECTIONS ==")
	if len(sections) == 0 {
		printInfo("No sections configured.")
		return
	}
	t := newTable().Headers("ID", "NAME", "ECONOMY", "ITEMS", "ACCESS")
	for _, s := range sections {
		access := "open"
		if s.Locked {
			access = "locked"
		}
		t.Row(s.ID, truncate(s.Name, 24), s.Economy, strconv.Itoa(s.Items), access)
	}
	fmt.Println(t)
	fmt.Println()
}

func renderShop(shop cl.Shop) {
	accent.Printf("\n== %s ==\n", strings.ToUpper(shop.Name))
	if len(shop.Items) == 0 {
		printInfo("This section has no items.")
		return
	}
	t := newTable().Headers("ITEM", "GOOD", "BUY", "SELL", "STOCK", "LIMIT")
	for _, it := range shop.Items {
		t.Row(
			it.ID,
			truncate(fmt.Sprintf("%dx %s", it.Amount, it.Name), 26),
			withDiscount(it),
			sellLabel(it),
			stockLabel(it),
			limitLabel(it),
		)
	}
	fmt.Println(t)
	fmt.Println()
}

func renderOutcome(out cl.Outcome) {
	verb := "Bought"
	if out.Kind != "buy" {
		verb = "Sold"
	}
	printSuccess(fmt.Sprintf("%s %d x %s for %s", verb, out.Quantity, out.ItemID, out.Formatted))
	if out.Discount.IsPositive() {
		printInfo(fmt.Sprintf("Discount applied: -%s%%", out.Discount.Shift(2).StringFixed(0)))
	}
}

func renderSellAll(res cl.SellAllResult) {
	if res.Units == 0 {
		printInfo("Nothing in your inventory can be sold.")
		return
	}
	printSuccess(fmt.Sprintf("Sold %d unit(s) across %d item(s).", res.Units, res.Kinds))
	economies := make([]string, 0, len(res.Formatted))
	for k := range res.Formatted {
		economies = append(economies, k)
	}
	sort.Strings(economies)
	for _, k := range economies {
		fmt.Printf("  %-14s %s\n", k, res.Formatted[k])
	}
}

func renderLimit(l cl.Limit) {
	if l.Unlimited {
		printInfo(fmt.Sprintf("%s has no daily limit.", l.ItemID))
		return
	}
	msg := fmt.Sprintf("%s: %d/%d used today, %d remaining (%s)", l.ItemID, l.Used, l.Limit, l.Remaining, l.Day)
	if l.Remaining == 0 {
		printWarn(msg)
		return
	}
	printInfo(msg)
}

func renderTrades(page cl.TradePage, actor string) {
	title := "TRADES"
	if actor != "" {
		title += " OF " + strings.ToUpper(actor)
	}
	accent.Printf("\n== %s (page %d) ==\n", title, page.Page)
	if len(page.Records) == 0 {
		printInfo("No trades recorded.")
		return
	}
	t := newTable().Headers("WHEN", "PLAYER", "KIND", "ITEM", "QTY", "TOTAL")
	for _, rec := range page.Records {
		who := rec.ActorName
		if who == "" {
			who = rec.ActorID
		}
		t.Row(
			humanize.Time(rec.At),
			truncate(who, 16),
			rec.Kind,
			rec.ItemID,
			humanize.Comma(int64(rec.Quantity)),
			rec.Price.StringFixed(2)+" "+rec.Currency,
		)
	}
	fmt.Println(t)
	if page.More {
		fmt.Println(dimStyle.Render(fmt.Sprintf("more with --page %d", page.Page+1)))
	}
	fmt.Println()
}

func withDiscount(it cl.ShopItem) string {
	if it.Discount == "" {
		return it.BuyFormatted
	}
	return it.BuyFormatted + " " + it.Discount
}

func sellLabel(it cl.ShopItem) string {
	if !it.Sellable {
		return "-"
	}
	return it.SellFormatted
}

func stockLabel(it cl.ShopItem) string {
	if !it.Dynamic {
		return "-"
	}
	return humanize.Comma(it.Stock) + "/" + humanize.Comma(it.MaxStock)
}

func limitLabel(it cl.ShopItem) string {
	if it.DailyLimit <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", it.Used, it.DailyLimit)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
