package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const epicPromotionsURL = "https://store-site-backend-static.ak.epicgames.com/freeGamesPromotions?locale=en-US&country=US&allowCountries=US"

// GameOffer is one free game promotion, active or upcoming.
type GameOffer struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Active      bool
}

// EpicClient fetches free game promotions from the Epic Games Store.
type EpicClient struct {
	promotionsURL string
	http          *http.Client
	now           func() time.Time
}

// NewEpicClient creates a client against the public promotions endpoint.
func NewEpicClient() *EpicClient {
	return &EpicClient{promotionsURL: epicPromotionsURL, http: &http.Client{}, now: time.Now}
}

type epicResponse struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []epicElement `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

type epicElement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Promotions  *struct {
		Current  []epicOfferGroup `json:"promotionalOffers"`
		Upcoming []epicOfferGroup `json:"upcomingPromotionalOffers"`
	} `json:"promotions"`
}

type epicOfferGroup struct {
	Offers []struct {
		StartDate       time.Time `json:"startDate"`
		EndDate         time.Time `json:"endDate"`
		DiscountSetting struct {
			DiscountPercentage int `json:"discountPercentage"`
		} `json:"discountSetting"`
	} `json:"promotionalOffers"`
}

// Offers returns free promotions: active ones first, then upcoming ones
// sorted by start date.
func (c *EpicClient) Offers(ctx context.Context) ([]GameOffer, error) {
	body, err := fetchJSON(ctx, c.http, c.promotionsURL)
	if err != nil {
		return nil, fmt.Errorf("epicgames: fetch promotions: %w", err)
	}
	var resp epicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("epicgames: decode promotions: %w", err)
	}

	now := c.now().UTC()
	var active, upcoming []GameOffer
	for _, el := range resp.Data.Catalog.SearchStore.Elements {
		if el.Promotions == nil {
			continue
		}
		if offer, ok := pickFreeOffer(el.Promotions.Current, now, true); ok {
			offer.Title = el.Title
			offer.Description = el.Description
			active = append(active, offer)
			continue
		}
		if offer, ok := pickFreeOffer(el.Promotions.Upcoming, now, false); ok {
			offer.Title = el.Title
			offer.Description = el.Description
			upcoming = append(upcoming, offer)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Start.Before(upcoming[j].Start) })
	return append(active, upcoming...), nil
}

// Digest renders the current and next free games as an HTML message.
func (c *EpicClient) Digest(ctx context.Context) (string, error) {
	offers, err := c.Offers(ctx)
	if err != nil {
		return "", err
	}

	var active, upcoming []GameOffer
	for _, o := range offers {
		if o.Active {
			active = append(active, o)
		} else {
			upcoming = append(upcoming, o)
		}
	}
	if len(active) == 0 {
		return "🎮 <b>Epic Games</b>\n\nNo free games available right now.", nil
	}
	// Epic typically runs one freebie at a time; show it plus the next one.
	active = active[:1]
	if len(upcoming) > 1 {
		upcoming = upcoming[:1]
	}

	lines := []string{"🎮 <b>Epic Games - Free This Week</b>\n"}
	for _, o := range active {
		desc := "<i>No description</i>"
		if o.Description != "" {
			desc = html.EscapeString(truncate(o.Description, 150))
		}
		lines = append(lines, fmt.Sprintf("🎁 <a href='%s'><b>%s</b></a>\n%s\n🗓️ %s → %s\n",
			storeSearchURL(o.Title), html.EscapeString(o.Title), desc, fmtOfferDate(o.Start), fmtOfferDate(o.End)))
	}
	if len(upcoming) > 0 {
		lines = append(lines, "<b>Coming Soon</b>")
		for _, o := range upcoming {
			lines = append(lines, fmt.Sprintf("🗓️ <a href='%s'>%s</a>\n   %s → %s",
				storeSearchURL(o.Title), html.EscapeString(o.Title), fmtOfferDate(o.Start), fmtOfferDate(o.End)))
		}
	}
	lines = append(lines, `<a href="https://store.epicgames.com/free-games">View Store</a>`)
	return strings.Join(lines, "\n"), nil
}

// pickFreeOffer finds a 100%-off offer in the groups. active selects
// offers covering now; otherwise offers starting after now.
func pickFreeOffer(groups []epicOfferGroup, now time.Time, active bool) (GameOffer, bool) {
	for _, group := range groups {
		for _, o := range group.Offers {
			if o.DiscountSetting.DiscountPercentage != 0 {
				continue
			}
			if active && (now.Before(o.StartDate) || !now.Before(o.EndDate)) {
				continue
			}
			if !active && !o.StartDate.After(now) {
				continue
			}
			return GameOffer{Start: o.StartDate, End: o.EndDate, Active: active}, true
		}
	}
	return GameOffer{}, false
}

func storeSearchURL(title string) string {
	if title == "" {
		return "https://store.epicgames.com/free-games"
	}
	return "https://store.epicgames.com/en-US/browse?q=" + url.QueryEscape(title)
}

func fmtOfferDate(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	return t.Format("Jan 2")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
