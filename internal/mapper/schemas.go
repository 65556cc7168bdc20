package mapper

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

func extractUser(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	if !gjson.Valid(rec.Content) {
		return nil, violation(rec, "content", "profile content is not valid JSON")
	}
	profile := gjson.Parse(rec.Content)
	if !profile.IsObject() {
		return nil, violation(rec, "content", "profile content must be a JSON object")
	}

	h.ID = rec.Author
	name := profile.Get("display_name").String()
	if name == "" {
		name = profile.Get("name").String()
	}
	return &domain.User{EntityHeader: h, Name: name}, nil
}

func extractProduct(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	d, err := requireTag(rec, "d")
	if err != nil {
		return nil, err
	}

	priceTag, ok := rec.FindTag("price")
	if !ok {
		return nil, violation(rec, "price", "missing price tag")
	}
	if len(priceTag) < 3 {
		return nil, violation(rec, "price", "price tag needs an amount and a currency")
	}
	price, err := parseNumber(priceTag[1])
	if err != nil || price < 0 {
		return nil, violation(rec, "price", "amount %q is not a non-negative number", priceTag[1])
	}
	currency := strings.TrimSpace(priceTag[2])
	if currency == "" {
		return nil, violation(rec, "price", "missing currency")
	}

	h.ID = rec.Address(d)
	title, _ := rec.TagValue("title")
	category, _ := rec.TagValue("t")
	return &domain.Product{
		EntityHeader: h,
		Title:        title,
		Price:        price,
		Currency:     strings.ToUpper(currency),
		Category:     category,
	}, nil
}

func extractListing(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	d, err := requireTag(rec, "d")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var relays []string
	addRelay := func(url string) {
		url = strings.TrimSpace(url)
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		relays = append(relays, url)
	}
	for _, tag := range rec.Tags {
		if len(tag) == 0 {
			continue
		}
		switch tag[0] {
		case "relays":
			for _, url := range tag[1:] {
				addRelay(url)
			}
		case "r":
			if len(tag) >= 2 {
				addRelay(tag[1])
			}
		}
	}

	h.ID = rec.Address(d)
	return &domain.Listing{EntityHeader: h, MerchantID: rec.Author, Relays: relays}, nil
}

func extractMessage(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	recipient, err := requireTag(rec, "p")
	if err != nil {
		return nil, err
	}

	h.ID = rec.ID
	return &domain.Message{EntityHeader: h, SenderID: rec.Author, RecipientID: recipient}, nil
}

func extractCustomer(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	d, err := requireTag(rec, "d")
	if err != nil {
		return nil, err
	}
	merchant, err := requireTag(rec, "p")
	if err != nil {
		return nil, err
	}

	h.ID = rec.Address(d)
	return &domain.Customer{EntityHeader: h, MerchantID: merchant}, nil
}

func extractShopper(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	d, err := requireTag(rec, "d")
	if err != nil {
		return nil, err
	}

	h.ID = rec.Address(d)
	return &domain.Shopper{EntityHeader: h}, nil
}

func extractInquiry(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	merchant, err := requireTag(rec, "p")
	if err != nil {
		return nil, err
	}
	listing, err := requireTag(rec, "a")
	if err != nil {
		return nil, err
	}

	h.ID = rec.ID
	return &domain.Inquiry{
		EntityHeader: h,
		CustomerID:   rec.Author,
		MerchantID:   merchant,
		ListingID:    listing,
	}, nil
}

func extractTransaction(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	d, err := requireTag(rec, "d")
	if err != nil {
		return nil, err
	}

	funding, ok := rec.TagValue("funding")
	if !ok && gjson.Valid(rec.Content) {
		funding = gjson.Get(rec.Content, "funding_source").String()
	}
	funding = strings.TrimSpace(funding)
	if funding == "" {
		return nil, violation(rec, "funding_source", "missing funding source")
	}

	h.ID = rec.Address(d)
	return &domain.Transaction{EntityHeader: h, FundingSource: funding}, nil
}

func extractReview(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error) {
	d, err := requireTag(rec, "d")
	if err != nil {
		return nil, err
	}

	subject := d
	for _, prefix := range []string{"a:", "p:"} {
		if strings.HasPrefix(subject, prefix) {
			subject = strings.TrimPrefix(subject, prefix)
			break
		}
	}
	if subject == "" {
		return nil, violation(rec, "d", "empty review subject")
	}

	var (
		rating float64
		found  bool
	)
	for _, tag := range rec.Tags {
		if len(tag) < 3 || tag[0] != "rating" || tag[2] != "thumb" {
			continue
		}
		rating, err = parseNumber(tag[1])
		if err != nil || rating < 0 || rating > 1 {
			return nil, violation(rec, "rating", "thumb rating %q must be a number in [0,1]", tag[1])
		}
		found = true
		break
	}
	if !found {
		return nil, violation(rec, "rating", "missing thumb rating")
	}

	h.ID = rec.Address(d)
	return &domain.Review{EntityHeader: h, SubjectID: subject, Rating: rating}, nil
}

// requireTag returns the first non-empty value of the named tag
func requireTag(rec *domain.Record, name string) (string, error) {
	value, ok := rec.TagValue(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", violation(rec, name, "missing %q tag", name)
	}
	return value, nil
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}
