package notifier

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// telegramMessageMaxLength is the Bot API limit for one text message.
const telegramMessageMaxLength = 4096

const (
	discountThresholdWarm = 10
	discountThresholdHot  = 25
	discountThresholdFire = 50
)

// RenderEvent turns a notification event into channel-agnostic text.
func RenderEvent(ev models.NotificationEvent) models.Message {
	p := ev.Product
	store := ev.StoreName
	if store == "" {
		store = ev.StoreID
	}

	var title string
	var lines []string
	switch ev.Kind {
	case models.EventAdded:
		title = fmt.Sprintf("%sNew at %s", discountBadge(p.Price.Discount), store)
		lines = append(lines, p.Name, priceLine(p.Price))
		if p.Condition != "" {
			lines = append(lines, "Condition: "+p.Condition)
		}
		if p.ReasonDiscount != "" {
			lines = append(lines, "Reason: "+p.ReasonDiscount)
		}
	case models.EventRemoved:
		title = fmt.Sprintf("Gone from %s", store)
		lines = append(lines, p.Name, "Last price: "+formatAmount(p.Price.Current, p.Price.Currency))
	case models.EventPriceChanged:
		title = fmt.Sprintf("%sPrice change at %s", discountBadge(p.Price.Discount), store)
		lines = append(lines, p.Name)
		if ev.Previous != nil {
			lines = append(lines, fmt.Sprintf("%s → %s",
				formatAmount(ev.Previous.Price.Current, ev.Previous.Price.Currency),
				formatAmount(p.Price.Current, p.Price.Currency)))
		} else {
			lines = append(lines, priceLine(p.Price))
		}
	default:
		title = store
		lines = append(lines, p.Name)
	}
	if p.URL != "" && ev.Kind != models.EventRemoved {
		lines = append(lines, p.URL)
	}

	return models.Message{Title: title, Body: strings.Join(lines, "\n")}
}

// FormatHTML renders a message as Telegram HTML, escaped and cut to the
// Bot API length limit.
func FormatHTML(msg models.Message) string {
	const boldOpen, boldClose = "<b>", "</b>"
	title := truncate(html.EscapeString(msg.Title), telegramMessageMaxLength-len(boldOpen)-len(boldClose))
	text := boldOpen + title + boldClose

	// The tags stay outside the cut so the markup is always balanced.
	if remaining := telegramMessageMaxLength - utf8.RuneCountInString(text) - 1; msg.Body != "" && remaining > 1 {
		text += "\n" + truncate(html.EscapeString(msg.Body), remaining)
	}
	return text
}

func priceLine(p models.Price) string {
	line := formatAmount(p.Current, p.Currency)
	if p.Original != nil && *p.Original > p.Current {
		line += " (was " + formatAmount(*p.Original, p.Currency) + ")"
	}
	if p.Discount != nil && *p.Discount > 0 {
		line += fmt.Sprintf(" -%d%%", *p.Discount)
	}
	return line
}

func formatAmount(amount float64, currency string) string {
	s := decimal.NewFromFloat(amount).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

func discountBadge(discount *int) string {
	if discount == nil {
		return ""
	}
	switch d := *discount; {
	case d >= discountThresholdFire:
		return "🔥 "
	case d >= discountThresholdHot:
		return "🌶 "
	case d >= discountThresholdWarm:
		return "💸 "
	}
	return ""
}

// truncate cuts s to at most limit runes without splitting a character or
// an HTML entity, ending with an ellipsis when shortened.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit < 1 {
		return ""
	}
	runes := make([]rune, 0, limit)
	for _, r := range s {
		if len(runes) == limit-1 {
			break
		}
		runes = append(runes, r)
	}
	out := string(runes)
	if amp := strings.LastIndexByte(out, '&'); amp >= 0 && !strings.Contains(out[amp:], ";") {
		out = out[:amp]
	}
	return out + "…"
}
