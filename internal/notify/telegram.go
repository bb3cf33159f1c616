// Package notify sends operational summaries to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/expiration"
)

// sender is the part of *telego.Bot used here.
type sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Telegram posts sweep summaries to the ops chat. A breaker stops calling
// Telegram for a while after repeated failures.
type Telegram struct {
	bot     sender
	chatID  int64
	loc     *time.Location
	breaker *gobreaker.CircuitBreaker[*telego.Message]
}

// NewTelegram creates a notifier for chatID.
func NewTelegram(token string, chatID int64, loc *time.Location) (*Telegram, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegram(bot, chatID, loc), nil
}

func newTelegram(bot sender, chatID int64, loc *time.Location) *Telegram {
	settings := gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
	return &Telegram{
		bot:     bot,
		chatID:  chatID,
		loc:     loc,
		breaker: gobreaker.NewCircuitBreaker[*telego.Message](settings),
	}
}

// Report implements expiration.Reporter.
func (t *Telegram) Report(ctx context.Context, r expiration.Result) error {
	return t.send(ctx, FormatSweep(r, t.loc))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	_, err := t.breaker.Execute(func() (*telego.Message, error) {
		return t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), text))
	})
	return err
}

// FormatSweep renders a sweep summary.
func FormatSweep(r expiration.Result, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expiration sweep %s\n", common.FormatDateTime(r.StartedAt, loc))
	fmt.Fprintf(&b, "Auto-renewed: %d %s\n", r.AutoRenewed, common.Plural(r.AutoRenewed, "package", "packages"))
	fmt.Fprintf(&b, "Expired: %d %s\n", r.Expired, common.Plural(r.Expired, "package", "packages"))
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped: %d\n", r.Skipped)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, "Failed: %d, will retry next run\n", r.Failed)
	}
	fmt.Fprintf(&b, "Took %s", r.Took.Round(time.Millisecond))
	return b.String()
}
