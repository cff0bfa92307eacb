package services

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"listing-search/models"
	"listing-search/utils"
)

const topRatedCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate aggregates rent, rating and facet counts over listings.
func (s *InsightService) Generate(listings []models.Listing) *models.SearchSummary {
	report := &models.SearchSummary{
		TopRated:       []models.Listing{},
		ListingsByCity: make(map[string]int),
		ListingsByType: make(map[string]int),
		ListingsByBeds: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	report.MinRent = listings[0].RentAmount
	report.MaxRent = listings[0].RentAmount
	var total float64

	for _, l := range listings {
		if l.IsNetworkVerified {
			report.VerifiedListings++
		}
		total += l.RentAmount
		if l.RentAmount < report.MinRent {
			report.MinRent = l.RentAmount
		}
		if l.RentAmount > report.MaxRent || report.MostExpensive == nil {
			report.MaxRent = l.RentAmount
			report.MostExpensive = &l
		}
		if l.Address.City != "" {
			report.ListingsByCity[l.Address.City]++
		}
		report.ListingsByType[l.PropertyType]++
		report.ListingsByBeds[BedroomBucket(l.Bedrooms)]++
	}

	report.AverageRent = round2(total / float64(len(listings)))
	report.MinRent = round2(report.MinRent)
	report.MaxRent = round2(report.MaxRent)

	rated := SortListings(listings, models.SortRatingDesc)
	report.TopRated = rated[:min(topRatedCount, len(rated))]

	s.logger.Debug("[insights] Summarised %d listings", report.TotalListings)
	return report
}

// BedroomBucket names the bedroom tag a count falls under.
func BedroomBucket(bedrooms int) string {
	switch {
	case bedrooms <= 0:
		return TagStudio
	case bedrooms >= 4:
		return TagFourOrMore
	}
	return strconv.Itoa(bedrooms)
}

func (s *InsightService) Print(w io.Writer, r *models.SearchSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  RENTAL LISTINGS SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings    : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Network verified  : \033[1m%d\033[0m\n\n", r.VerifiedListings)

	fmt.Fprintf(w, "\033[1;33m  Rent (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalListings > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m$%.2f\033[0m\n", r.AverageRent)
		fmt.Fprintf(w, "  Minimum : \033[1;32m$%.2f\033[0m\n", r.MinRent)
		fmt.Fprintf(w, "  Maximum : \033[1;32m$%.2f\033[0m\n", r.MaxRent)
	} else {
		fmt.Fprintf(w, "  No properties found\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Address.Full)
		fmt.Fprintf(w, "  Rent     : \033[1;31m$%.2f/month\033[0m\n\n", r.MostExpensive.RentAmount)
	}

	fmt.Fprintf(w, "\033[1;33m  Top %d Highest Rated\033[0m\n", topRatedCount)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Fprintf(w, "  No rated listings found\n")
	}
	for i, l := range r.TopRated {
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%.1f ★\033[0m\n", i+1, truncate(l.Title, 38), l.Rating)
	}
	fmt.Fprintln(w)

	printCounts(w, "Listings by City", thin, r.ListingsByCity)
	printCounts(w, "Listings by Type", thin, r.ListingsByType)
	printCounts(w, "Listings by Bedrooms", thin, r.ListingsByBeds)

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title, thin string, counts map[string]int) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	rows := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		rows = append(rows, keyCount{k, c})
	}
	// Sort by count descending, then name for a stable listing
	slices.SortFunc(rows, func(a, b keyCount) int {
		return cmp.Or(cmp.Compare(b.count, a.count), cmp.Compare(a.key, b.key))
	})
	for _, row := range rows {
		bar := strings.Repeat("█", min(row.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(row.key, 28), bar, row.count)
	}
	fmt.Fprintln(w)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
