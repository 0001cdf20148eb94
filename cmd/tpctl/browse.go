package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	cl "tradepost/internal/cli"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	browseFrame = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
)

type shopLoadedMsg struct {
	shop cl.Shop
	err  error
}

type tradeDoneMsg struct {
	out cl.Outcome
	err error
}

// browseModel is an interactive view of one section: enter buys one unit,
// s sells one, r reloads.
type browseModel struct {
	client  *cl.Client
	token   string
	section string

	shop   cl.Shop
	table  table.Model
	status string
	failed bool
	busy   bool
}

func newBrowseModel(client *cl.Client, token, section string) browseModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Item", Width: 16},
			{Title: "Good", Width: 24},
			{Title: "Buy", Width: 22},
			{Title: "Sell", Width: 16},
			{Title: "Stock", Width: 13},
			{Title: "Limit", Width: 7},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14"))
	t.SetStyles(styles)
	return browseModel{client: client, token: token, section: section, table: t, busy: true}
}

func (m browseModel) Init() tea.Cmd {
	return m.load()
}

func (m browseModel) load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shop, err := m.client.Shop(ctx, m.token, m.section)
		return shopLoadedMsg{shop: shop, err: err}
	}
}

func (m browseModel) trade(sell bool, itemID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var (
			out cl.Outcome
			err error
		)
		if sell {
			out, err = m.client.Sell(ctx, m.token, itemID, 1)
		} else {
			out, err = m.client.Buy(ctx, m.token, itemID, 1)
		}
		return tradeDoneMsg{out: out, err: err}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.busy = true
			return m, m.load()
		case "enter", "b", "s":
			row := m.table.SelectedRow()
			if m.busy || len(row) == 0 {
				return m, nil
			}
			m.busy = true
			sell := msg.String() == "s"
			return m, m.trade(sell, row[0])
		}
	case shopLoadedMsg:
		m.busy = false
		if msg.err != nil {
			m.status, m.failed = msg.err.Error(), true
			return m, nil
		}
		m.shop = msg.shop
		m.table.SetRows(shopRows(msg.shop))
		return m, nil
	case tradeDoneMsg:
		if msg.err != nil {
			m.busy = false
			m.status, m.failed = msg.err.Error(), true
			return m, nil
		}
		verb := "Bought"
		if msg.out.Kind != "buy" {
			verb = "Sold"
		}
		m.status = fmt.Sprintf("%s %d x %s for %s", verb, msg.out.Quantity, msg.out.ItemID, msg.out.Formatted)
		m.failed = false
		return m, m.load()
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	var b strings.Builder
	name := m.shop.Name
	if name == "" {
		name = m.section
	}
	b.WriteString(titleStyle.Render(strings.ToUpper(name)))
	b.WriteString("\n")
	b.WriteString(browseFrame.Render(m.table.View()))
	b.WriteString("\n")
	switch {
	case m.status == "":
	case m.failed:
		b.WriteString(failStyle.Render(m.status))
	default:
		b.WriteString(okStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter/b buy 1 · s sell 1 · r reload · q quit"))
	b.WriteString("\n")
	return b.String()
}

func shopRows(shop cl.Shop) []table.Row {
	rows := make([]table.Row, 0, len(shop.Items))
	for _, it := range shop.Items {
		rows = append(rows, table.Row{
			it.ID,
			truncate(fmt.Sprintf("%dx %s", it.Amount, it.Name), 24),
			withDiscount(it),
			sellLabel(it),
			stockLabel(it),
			limitLabel(it),
		})
	}
	return rows
}
