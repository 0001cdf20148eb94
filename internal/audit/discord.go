package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"tradepost/internal/market"
	"tradepost/internal/metrics"
)

var ErrInvalidWebhook = errors.New("invalid discord webhook url")

const (
	discordQueueSize = 256
	colorBuy         = 0x2ecc71
	colorSell        = 0xf1c40f
)

type webhookSender interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts trade records to a channel webhook. Records are queued and
// sent by one worker paced under the webhook rate limit; a full queue drops.
type Discord struct {
	sender  webhookSender
	id      string
	token   string
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan market.AuditRecord

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDiscord(webhookURL string, logger *slog.Logger) (*Discord, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return newDiscord(session, id, token, rate.NewLimiter(rate.Every(2*time.Second), 5), logger), nil
}

func newDiscord(sender webhookSender, id, token string, limiter *rate.Limiter, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Discord{
		sender:  sender,
		id:      id,
		token:   token,
		limiter: limiter,
		log:     logger,
		queue:   make(chan market.AuditRecord, discordQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhook, raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhook, raw)
}

func (d *Discord) Record(_ context.Context, rec market.AuditRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		metrics.Store().ObserveAudit("discord", "dropped")
		return
	}
	select {
	case d.queue <- rec:
	default:
		d.log.Warn("discord audit queue full", "id", rec.ID)
		metrics.Store().ObserveAudit("discord", "dropped")
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to
// end, whichever comes first.
func (d *Discord) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		d.cancel()
		<-d.done
	}
	d.cancel()
	return nil
}

func (d *Discord) run() {
	defer close(d.done)
	for rec := range d.queue {
		if err := d.limiter.Wait(d.ctx); err != nil {
			metrics.Store().ObserveAudit("discord", "dropped")
			continue
		}
		d.send(rec)
	}
}

func (d *Discord) send(rec market.AuditRecord) {
	params := &discordgo.WebhookParams{
		Username: "tradepost",
		Embeds:   []*discordgo.MessageEmbed{embedFor(rec)},
	}
	if _, err := d.sender.WebhookExecute(d.id, d.token, false, params); err != nil {
		d.log.Error("discord webhook failed", "id", rec.ID, "err", err)
		metrics.Store().ObserveAudit("discord", "error")
		return
	}
	metrics.Store().ObserveAudit("discord", "ok")
}

func embedFor(rec market.AuditRecord) *discordgo.MessageEmbed {
	title, color := "Purchase", colorBuy
	switch rec.Kind {
	case market.KindSell:
		title, color = "Sale", colorSell
	case market.KindSellAll:
		title, color = "Sell-all", colorSell
	}
	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Timestamp: rec.At.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player", Value: rec.ActorName, Inline: true},
			{Name: "Item", Value: rec.ItemID, Inline: true},
			{Name: "Quantity", Value: fmt.Sprintf("%d", rec.Quantity), Inline: true},
			{Name: "Price", Value: strings.TrimSpace(rec.Price.StringFixed(2) + " " + rec.Currency), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: rec.ID.String()},
	}
}
